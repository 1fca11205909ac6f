// Package policy decides which kind of reply a classified message gets.
//
// Decide is a pure function of its inputs: the channel only allows free-form
// messages within SessionWindow of the user's last inbound message, so
// outside the window an approved template is preferred when one matches.
package policy

import (
	"time"

	"github.com/ikanisa/easymo-router/internal/models"
	"github.com/ikanisa/easymo-router/internal/templates"
)

// Config holds the decision thresholds.
type Config struct {
	ClarifyThreshold float64
	SessionWindow    time.Duration
	MaxQuickReplies  int
}

// DefaultConfig matches the channel's 24 hour customer-service window.
func DefaultConfig() Config {
	return Config{
		ClarifyThreshold: 0.4,
		SessionWindow:    24 * time.Hour,
		MaxQuickReplies:  3,
	}
}

// Input is everything Decide looks at for one message.
type Input struct {
	Confidence    float64
	LastInboundAt time.Time // zero means never
	Domain        string
	Now           time.Time
}

// TemplateCatalog finds an approved template for a domain.
type TemplateCatalog interface {
	TemplateFor(domain string) (templates.Template, bool)
}

// QuickReplyCatalog lists quick replies for a domain.
type QuickReplyCatalog interface {
	QuickReplies(domain string, max int) []templates.QuickReply
}

// Decision is the selected reply mode and what it is bound to.
type Decision struct {
	Type          models.ResponseType
	Template      *templates.Template
	Options       []models.Option
	OutsideWindow bool
}

// AcknowledgementText is sent when nothing richer is available.
const AcknowledgementText = "Thanks, we received your message. Reply *menu* to see what we can help with."

// ClarifyText prompts the user to pick a top-level category.
const ClarifyText = "Sorry, I didn't quite catch that. What would you like to do?"

// TopLevelOptions are offered whenever the user must disambiguate.
func TopLevelOptions() []models.Option {
	return []models.Option{
		{Code: models.MenuCode(models.DomainPayments), Label: "Payments"},
		{Code: models.MenuCode(models.DomainTransport), Label: "Transport"},
		{Code: models.MenuCode(models.DomainCommerce), Label: "Shopping"},
	}
}

// OutsideWindow reports whether free-form replies are no longer allowed.
func OutsideWindow(last, now time.Time, window time.Duration) bool {
	if last.IsZero() {
		return true
	}
	return now.Sub(last) > window
}

// Decide evaluates, in order: clarify, template, interactive, plain.
func Decide(cfg Config, in Input, tpls TemplateCatalog, replies QuickReplyCatalog) Decision {
	if in.Confidence < cfg.ClarifyThreshold {
		return Decision{Type: models.ResponseClarify, Options: TopLevelOptions()}
	}

	outside := OutsideWindow(in.LastInboundAt, in.Now, cfg.SessionWindow)
	if outside && tpls != nil {
		if t, ok := tpls.TemplateFor(in.Domain); ok {
			return Decision{Type: models.ResponseTemplate, Template: &t, OutsideWindow: true}
		}
	}

	if replies != nil {
		if qr := replies.QuickReplies(in.Domain, cfg.MaxQuickReplies); len(qr) > 0 {
			opts := make([]models.Option, 0, len(qr))
			for _, q := range qr {
				opts = append(opts, models.Option{Code: q.Code, Label: q.Label})
			}
			return Decision{Type: models.ResponseInteractive, Options: opts, OutsideWindow: outside}
		}
	}

	return Decision{Type: models.ResponsePlain, OutsideWindow: outside}
}
