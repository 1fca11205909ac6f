package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTransactionID(t *testing.T) {
	a, b := NewTransactionID(), NewTransactionID()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, ":")
	assert.Regexp(t, `^TK[0-9A-F]{10}$`, GenerateSecureID("TK"))
}

func TestTransactionIDForIsStable(t *testing.T) {
	a := TransactionIDFor("wamid.HBgM")
	assert.Equal(t, a, TransactionIDFor("wamid.HBgM"))
	assert.NotEqual(t, a, TransactionIDFor("wamid.other"))
	assert.Len(t, a, 32)
}
