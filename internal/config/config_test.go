package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, 0.4, cfg.Router.ClarifyThreshold)
	assert.Equal(t, 24*time.Hour, cfg.Router.SessionWindow)
	assert.Equal(t, 10*time.Second, cfg.Router.MinMessageInterval)
	assert.Equal(t, 2*time.Minute, cfg.Router.ClaimLease)
	assert.Equal(t, 2000, cfg.Router.MaxMessageLength)
	assert.Equal(t, time.Hour, cfg.Router.TransactionTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Learner.Window)
	assert.Equal(t, 3, cfg.Learner.Threshold)
	assert.Equal(t, ProviderLog, cfg.DeliveryProvider)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"CLARIFY_THRESHOLD":    "0.75",
		"SESSION_WINDOW":       "12h",
		"DB_DRIVER":            "sqlite",
		"DELIVERY_PROVIDER":    "twilio",
		"TWILIO_ACCOUNT_SID":   "AC123",
		"TWILIO_AUTH_TOKEN":    "secret",
		"TWILIO_WHATSAPP_FROM": "whatsapp:+14155238886",
	}))
	require.NoError(t, err)

	assert.Equal(t, 0.75, cfg.Router.ClarifyThreshold)
	assert.Equal(t, 12*time.Hour, cfg.Router.SessionWindow)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	_, err := FromEnv(envMap(map[string]string{"CLARIFY_THRESHOLD": "abc"}))
	assert.Error(t, err)

	_, err = FromEnv(envMap(map[string]string{"CLARIFY_THRESHOLD": "1.5"}))
	assert.ErrorContains(t, err, "CLARIFY_THRESHOLD")

	_, err = FromEnv(envMap(map[string]string{"DELIVERY_PROVIDER": "cloud"}))
	assert.ErrorContains(t, err, "WHATSAPP_ACCESS_TOKEN")
}
