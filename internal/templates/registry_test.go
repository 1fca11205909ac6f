package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogLoads(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)
	assert.NotEmpty(t, r.Version())
	assert.Greater(t, r.Len(), 0)
}

func TestTemplateForMatchesTagInsideDomain(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	tpl, ok := r.TemplateFor("payments")
	require.True(t, ok)
	assert.Equal(t, "payment_reengage", tpl.Name)

	tpl, ok = r.TemplateFor("mobility_driver")
	require.True(t, ok)
	assert.Equal(t, "mobility_reengage", tpl.Name)
}

func TestTemplateForNeverPicksUnrelatedTemplate(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	_, ok := r.TemplateFor("ordering")
	assert.False(t, ok)

	// the listings template is not approved
	_, ok = r.TemplateFor("listings")
	assert.False(t, ok)
}

func TestQuickRepliesRespectsMax(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	got := r.QuickReplies("payments", 3)
	require.Len(t, got, 3)
	assert.Equal(t, "payments.get_paid", got[0].Code)

	assert.Len(t, r.QuickReplies("ordering", 10), 3)
	assert.Empty(t, r.QuickReplies("weather", 3))
	assert.Len(t, r.QuickReplies("payments", 0), 4)
}

func TestParseRejectsInvalidCatalog(t *testing.T) {
	_, err := Parse([]byte(`
templates:
  - {name: a, domain: x, approved: true}
  - {name: a, domain: y, approved: true}
quick_replies:
  - {code: nodot, domain: x, label: L}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `template "a" declared twice`)
	assert.Contains(t, err.Error(), "malformed action code")
}

func TestBindUsesValuesThenDefaults(t *testing.T) {
	tpl := Template{
		Name:      "payment_reengage",
		Variables: []string{"name", "amount"},
		Defaults:  map[string]string{"name": "there"},
	}

	ref, err := tpl.Bind(map[string]string{"amount": "5000"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "there", "amount": "5000"}, ref.Variables)
	assert.Equal(t, []string{"there", "5000"}, ref.Params)

	_, err = tpl.Bind(nil)
	assert.ErrorContains(t, err, "amount")
}
