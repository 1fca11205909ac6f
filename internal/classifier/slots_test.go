package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractAmount(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"Get paid 5000 RWF", 5000, true},
		{"get paid RWF 12,500", 12500, true},
		{"send 1,000,000 frw", 1000000, true},
		{"send 2,000,000 frw", 0, false},
		{"pay 0788123456 300", 300, true},
		{"pay 0 now", 0, false},
		{"nothing here", 0, false},
		{"table for 4 at 7000 francs", 7000, true},
	}
	for _, tc := range cases {
		got, ok := ExtractAmount(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestExtractPhone(t *testing.T) {
	p, ok := ExtractPhone("pay 0788123456 300")
	assert.True(t, ok)
	assert.Equal(t, "250788123456", p)

	p, ok = ExtractPhone("to +250722000111")
	assert.True(t, ok)
	assert.Equal(t, "250722000111", p)

	_, ok = ExtractPhone("no number")
	assert.False(t, ok)
}
