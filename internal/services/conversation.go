package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ikanisa/easymo-router/internal/composer"
	"github.com/ikanisa/easymo-router/internal/ingress"
	"github.com/ikanisa/easymo-router/internal/metrics"
	"github.com/ikanisa/easymo-router/internal/models"
	"github.com/ikanisa/easymo-router/internal/policy"
	"github.com/ikanisa/easymo-router/internal/skills"
	"github.com/ikanisa/easymo-router/internal/storage"
)

// Classifier labels a message, biased by what we know about the sender.
type Classifier interface {
	Classify(ctx context.Context, msg models.InboundMessage, mem *models.UserMemory) models.ClassificationResult
}

// Dispatcher hands a classified message to its skill.
type Dispatcher interface {
	Handles(domain string) bool
	Dispatch(ctx context.Context, cls models.ClassificationResult, msg models.InboundMessage, mem *models.UserMemory) skills.Result
}

// Composer delivers a response unless it repeats the last one.
type Composer interface {
	Compose(ctx context.Context, recipient string, resp models.SkillResponse) (composer.Outcome, error)
}

// Catalog is the template registry as the policy sees it.
type Catalog interface {
	policy.TemplateCatalog
	policy.QuickReplyCatalog
}

// Completer marks inbound messages processed, or gives up the claim on
// one that could not be answered.
type Completer interface {
	Complete(ctx context.Context, messageID string) error
	Release(ctx context.Context, messageID string) error
}

// Reply summarizes how one message was answered.
type Reply struct {
	Classification models.ClassificationResult
	Decision       models.ResponseType
	Skill          string
	Outcome        composer.Outcome
}

// ConversationService runs an admitted message through classification,
// policy, skill dispatch and delivery.
type ConversationService struct {
	store      storage.Store
	gate       Completer
	classifier Classifier
	dispatcher Dispatcher
	composer   Composer
	catalog    Catalog
	policy     policy.Config
	log        *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// ConversationDeps groups the collaborators of a ConversationService.
type ConversationDeps struct {
	Store      storage.Store
	Gate       Completer
	Classifier Classifier
	Dispatcher Dispatcher
	Composer   Composer
	Catalog    Catalog
	Policy     policy.Config
	Log        *zap.Logger
	Metrics    *metrics.Metrics
}

func NewConversationService(deps ConversationDeps) *ConversationService {
	return &ConversationService{
		store:      deps.Store,
		gate:       deps.Gate,
		classifier: deps.Classifier,
		dispatcher: deps.Dispatcher,
		composer:   deps.Composer,
		catalog:    deps.Catalog,
		policy:     deps.Policy,
		log:        deps.Log.Named("conversation"),
		metrics:    deps.Metrics,
		now:        time.Now,
	}
}

// WithClock replaces the service's clock.
func (s *ConversationService) WithClock(now func() time.Time) *ConversationService {
	s.now = now
	return s
}

// Handle answers one admitted message. The inbound message is marked
// processed only after delivery succeeded or was suppressed. A failed send
// releases the message's claim so the provider's retry gets another attempt.
func (s *ConversationService) Handle(ctx context.Context, adm *ingress.Admission) (*Reply, error) {
	msg := adm.Message
	log := s.log.With(zap.String("sender", msg.SenderID), zap.String("message_id", msg.MessageID))

	mem, err := s.store.GetUserMemory(ctx, msg.SenderID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn("user memory unavailable", zap.Error(err))
		}
		mem = nil
	}

	cls := s.classifier.Classify(ctx, msg, mem)
	decision := policy.Decide(s.policy, policy.Input{
		Confidence:    cls.Confidence,
		LastInboundAt: adm.PreviousInboundAt,
		Domain:        cls.Domain,
		Now:           s.now(),
	}, s.catalog, s.catalog)

	reply := &Reply{Classification: cls, Decision: decision.Type}
	var resp models.SkillResponse
	resp, reply.Skill = s.respond(ctx, decision, cls, msg, mem)

	log.Debug("routing decision",
		zap.String("domain", cls.Domain),
		zap.String("intent", cls.Intent),
		zap.Float64("confidence", cls.Confidence),
		zap.String("source", cls.Source),
		zap.String("decision", string(decision.Type)),
		zap.String("response", string(resp.Type)))

	reply.Outcome, err = s.composer.Compose(ctx, msg.SenderID, resp)
	if err != nil {
		if rerr := s.gate.Release(ctx, msg.MessageID); rerr != nil {
			log.Warn("failed to release message claim", zap.Error(rerr))
		}
		return reply, fmt.Errorf("deliver reply to %s: %w", msg.SenderID, err)
	}

	if !reply.Outcome.Suppressed {
		if err := s.store.RecordInteraction(ctx, &models.Interaction{
			Sender:       msg.SenderID,
			MessageID:    msg.MessageID,
			Skill:        reply.Skill,
			Intent:       cls.Intent,
			Confidence:   cls.Confidence,
			Source:       cls.Source,
			ResponseType: resp.Type,
			At:           s.now(),
		}); err != nil {
			log.Warn("failed to record interaction", zap.Error(err))
		}
	}

	if err := s.gate.Complete(ctx, msg.MessageID); err != nil {
		log.Warn("failed to mark message processed", zap.Error(err))
	}
	return reply, nil
}

// respond builds the response for the decided mode and names the skill
// credited with it. Clarifications credit no skill.
func (s *ConversationService) respond(ctx context.Context, d policy.Decision, cls models.ClassificationResult, msg models.InboundMessage, mem *models.UserMemory) (models.SkillResponse, string) {
	switch d.Type {
	case models.ResponseClarify:
		return models.SkillResponse{
			Type:    models.ResponseClarify,
			Text:    policy.ClarifyText,
			Options: d.Options,
			Stage:   "clarify",
		}, ""

	case models.ResponseTemplate:
		vars := make(map[string]string, len(cls.Slots)+1)
		for _, slot := range cls.Slots {
			vars[slot.Key] = slot.Value
		}
		if msg.ContactName != "" {
			vars["name"] = msg.ContactName
		}
		ref, err := d.Template.Bind(vars)
		if err != nil {
			s.log.Error("template binding failed", zap.String("template", d.Template.Name), zap.Error(err))
			return acknowledgement(), cls.Domain
		}
		return models.SkillResponse{
			Type:     models.ResponseTemplate,
			Template: ref,
			Stage:    "reengage",
		}, cls.Domain

	case models.ResponseInteractive:
		if !s.dispatcher.Handles(cls.Domain) {
			return models.SkillResponse{
				Type:    models.ResponseInteractive,
				Text:    "Here's what you can do:",
				Options: d.Options,
				Stage:   cls.Domain + ".menu",
			}, cls.Domain
		}

	default:
		if !s.dispatcher.Handles(cls.Domain) {
			return acknowledgement(), ""
		}
	}

	res := s.dispatcher.Dispatch(ctx, cls, msg, mem)
	return res.Response, res.Skill
}

func acknowledgement() models.SkillResponse {
	return models.SkillResponse{Type: models.ResponsePlain, Text: policy.AcknowledgementText}
}

// HandleBatch answers every admitted message of one webhook call and
// returns how many were delivered or suppressed.
func (s *ConversationService) HandleBatch(ctx context.Context, batch *ingress.Batch) int {
	handled := 0
	for _, adm := range batch.Admitted {
		if _, err := s.Handle(ctx, adm); err != nil {
			s.log.Error("message not answered",
				zap.String("sender", adm.Message.SenderID),
				zap.String("message_id", adm.Message.MessageID),
				zap.Error(err))
			continue
		}
		handled++
	}
	return handled
}
