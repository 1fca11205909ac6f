// Package skills routes a classified message to the handler for its domain.
package skills

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ikanisa/easymo-router/internal/models"
	"github.com/ikanisa/easymo-router/internal/policy"
)

// Request is everything a handler sees for one message.
type Request struct {
	Classification models.ClassificationResult
	Message        models.InboundMessage
	Memory         *models.UserMemory
}

// Handler serves one domain.
type Handler interface {
	Domain() string
	Handle(ctx context.Context, req Request) (models.SkillResponse, error)
}

// Result names the skill that answered and its response.
type Result struct {
	Skill    string
	Response models.SkillResponse
}

// FallbackText introduces the generic options menu.
const FallbackText = "Sorry, I didn't catch that. Here are your options:"

// FallbackMenu is the generic reply used when a request cannot be served.
func FallbackMenu() models.SkillResponse {
	return models.SkillResponse{
		Type:    models.ResponseInteractive,
		Text:    FallbackText,
		Options: policy.TopLevelOptions(),
		Stage:   "menu",
	}
}

// Dispatcher is safe for concurrent use once built.
type Dispatcher struct {
	handlers map[string]Handler
	log      *zap.Logger
}

// NewDispatcher registers handlers by domain. A support handler must be
// among them; it serves unknown domains.
func NewDispatcher(log *zap.Logger, handlers ...Handler) *Dispatcher {
	d := &Dispatcher{handlers: make(map[string]Handler, len(handlers)), log: log.Named("skills")}
	for _, h := range handlers {
		d.handlers[h.Domain()] = h
	}
	return d
}

// Handles reports whether a handler is registered for domain.
func (d *Dispatcher) Handles(domain string) bool {
	_, ok := d.handlers[domain]
	return ok
}

// Dispatch never returns an error; failures become FallbackMenu.
func (d *Dispatcher) Dispatch(ctx context.Context, cls models.ClassificationResult, msg models.InboundMessage, mem *models.UserMemory) Result {
	h, ok := d.handlers[cls.Domain]
	if !ok {
		support, hasSupport := d.handlers[models.DomainSupport]
		if !hasSupport {
			return Result{Skill: models.DomainSupport, Response: FallbackMenu()}
		}
		d.log.Debug("unroutable domain, using support menu", zap.String("domain", cls.Domain))
		h = support
		cls = models.ClassificationResult{
			Domain:     models.DomainSupport,
			Intent:     models.MenuAction,
			Confidence: cls.Confidence,
			Source:     cls.Source,
		}
	}

	resp, err := h.Handle(ctx, Request{Classification: cls, Message: msg, Memory: mem})
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			d.log.Info("transaction missing or expired",
				zap.String("sender", msg.SenderID),
				zap.String("action", msg.ActionCode))
		} else {
			d.log.Warn("skill failed, sending fallback menu",
				zap.String("skill", h.Domain()),
				zap.String("intent", cls.Intent),
				zap.Error(err))
		}
		return Result{Skill: h.Domain(), Response: FallbackMenu()}
	}
	return Result{Skill: h.Domain(), Response: resp}
}
