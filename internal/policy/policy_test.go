package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ikanisa/easymo-router/internal/models"
	"github.com/ikanisa/easymo-router/internal/templates"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func registry(t *testing.T) *templates.Registry {
	t.Helper()
	r, err := templates.Default()
	require.NoError(t, err)
	return r
}

func TestClarifyBelowThreshold(t *testing.T) {
	r := registry(t)
	for _, c := range []float64{0, 0.1, 0.2, 0.3999} {
		for _, last := range []time.Time{{}, now.Add(-time.Minute), now.Add(-48 * time.Hour)} {
			d := Decide(DefaultConfig(), Input{Confidence: c, LastInboundAt: last, Domain: models.DomainPayments, Now: now}, r, r)
			assert.Equal(t, models.ResponseClarify, d.Type, "confidence %v", c)
			assert.Len(t, d.Options, 3)
		}
	}
}

func TestTemplateOutsideWindow(t *testing.T) {
	r := registry(t)
	d := Decide(DefaultConfig(), Input{Confidence: 1.0, LastInboundAt: now.Add(-26 * time.Hour), Domain: models.DomainPayments, Now: now}, r, r)

	assert.Equal(t, models.ResponseTemplate, d.Type)
	require.NotNil(t, d.Template)
	assert.Equal(t, "payment_reengage", d.Template.Name)
	assert.True(t, d.OutsideWindow)
}

func TestNeverSeenIsOutsideWindow(t *testing.T) {
	r := registry(t)
	d := Decide(DefaultConfig(), Input{Confidence: 0.9, Domain: models.DomainTransport, Now: now}, r, r)
	assert.Equal(t, models.ResponseTemplate, d.Type)
	assert.Equal(t, "ride_reengage", d.Template.Name)
}

func TestInteractiveInsideWindow(t *testing.T) {
	r := registry(t)
	d := Decide(DefaultConfig(), Input{Confidence: 0.8, LastInboundAt: now.Add(-30 * time.Minute), Domain: "ordering", Now: now}, r, r)

	assert.Equal(t, models.ResponseInteractive, d.Type)
	assert.Len(t, d.Options, 3)
	assert.False(t, d.OutsideWindow)
}

func TestOutsideWindowWithoutTemplateFallsThrough(t *testing.T) {
	r := registry(t)
	d := Decide(DefaultConfig(), Input{Confidence: 0.9, LastInboundAt: now.Add(-72 * time.Hour), Domain: "ordering", Now: now}, r, r)
	assert.Equal(t, models.ResponseInteractive, d.Type)
	assert.True(t, d.OutsideWindow)
}

func TestPlainWhenNothingMatches(t *testing.T) {
	r := registry(t)
	d := Decide(DefaultConfig(), Input{Confidence: 0.9, LastInboundAt: now.Add(-time.Hour), Domain: "weather", Now: now}, r, r)
	assert.Equal(t, models.ResponsePlain, d.Type)
}

func TestWindowBoundaryIsInside(t *testing.T) {
	assert.False(t, OutsideWindow(now.Add(-24*time.Hour), now, 24*time.Hour))
	assert.True(t, OutsideWindow(now.Add(-24*time.Hour-time.Second), now, 24*time.Hour))
	assert.True(t, OutsideWindow(time.Time{}, now, 24*time.Hour))
}

func TestAlternativeThreshold(t *testing.T) {
	r := registry(t)
	cfg := DefaultConfig()
	cfg.ClarifyThreshold = 0.75
	d := Decide(cfg, Input{Confidence: 0.6, LastInboundAt: now, Domain: models.DomainPayments, Now: now}, r, r)
	assert.Equal(t, models.ResponseClarify, d.Type)
}

func TestTemplateOnlyOutsideWindowProperty(t *testing.T) {
	r := registry(t)
	domains := []string{"payments", "transport", "commerce", "listings", "support", "ordering", "mobility_driver", "x"}
	for _, dom := range domains {
		for h := 0; h < 60; h += 5 {
			last := now.Add(-time.Duration(h) * time.Hour)
			d := Decide(DefaultConfig(), Input{Confidence: 0.9, LastInboundAt: last, Domain: dom, Now: now}, r, r)
			if d.Type == models.ResponseTemplate {
				assert.True(t, OutsideWindow(last, now, 24*time.Hour), "%s at -%dh", dom, h)
			}
		}
	}
}
