package handlers

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ikanisa/easymo-router/internal/ingress"
	"github.com/ikanisa/easymo-router/internal/models"
	"github.com/ikanisa/easymo-router/internal/services"
	"github.com/ikanisa/easymo-router/internal/utils"
)

// Conversation answers admitted messages.
type Conversation interface {
	Handle(ctx context.Context, adm *ingress.Admission) (*services.Reply, error)
	HandleBatch(ctx context.Context, batch *ingress.Batch) int
}

// WhatsAppHandler handles WhatsApp webhook requests from the Cloud API and Twilio.
type WhatsAppHandler struct {
	gate         *ingress.Gate
	conversation Conversation
	log          *zap.Logger
}

// NewWhatsAppHandler creates a new WhatsApp handler
func NewWhatsAppHandler(gate *ingress.Gate, conversation Conversation, log *zap.Logger) *WhatsAppHandler {
	return &WhatsAppHandler{gate: gate, conversation: conversation, log: log.Named("webhook")}
}

// Verify answers the Cloud API subscription handshake.
func (h *WhatsAppHandler) Verify(c *fiber.Ctx) error {
	challenge, ok := h.gate.Handshake(c.Query("hub.mode"), c.Query("hub.verify_token"), c.Query("hub.challenge"))
	if !ok {
		return c.SendStatus(fiber.StatusForbidden)
	}
	return c.Status(fiber.StatusOK).SendString(challenge)
}

// HandleWebhook processes a Cloud API webhook call.
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	batch, err := h.gate.Accept(c.UserContext(), c.Body(), c.Get(ingress.SignatureHeader))
	if err != nil {
		return rejectionStatus(c, err)
	}

	for _, st := range batch.Statuses {
		h.log.Debug("status update", zap.String("message_id", st.MessageID), zap.String("status", st.Status))
	}

	answered := h.conversation.HandleBatch(c.UserContext(), batch)
	if answered < len(batch.Admitted) {
		// unanswered messages stay unprocessed until the provider redelivers
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":   "error",
			"admitted": len(batch.Admitted),
			"answered": answered,
		})
	}
	if len(batch.Admitted) == 0 {
		if err := firstRejection(batch.Rejected); err != nil {
			return rejectionStatus(c, err)
		}
	}

	return c.JSON(fiber.Map{
		"status":   "ok",
		"admitted": len(batch.Admitted),
		"answered": answered,
		"rejected": len(batch.Rejected),
		"statuses": len(batch.Statuses),
	})
}

// HandleTwilioWebhook processes a Twilio form post. Signature checking is
// done by middleware.
func (h *WhatsAppHandler) HandleTwilioWebhook(c *fiber.Ctx) error {
	var payload ingress.TwilioPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	if payload.IsStatus() {
		h.log.Debug("status update", zap.String("message_id", payload.MessageSid), zap.String("status", payload.MessageStatus))
		return c.SendStatus(fiber.StatusOK)
	}

	msg, err := h.gate.NormalizeTwilio(payload)
	if err != nil {
		return rejectionStatus(c, err)
	}
	return h.admitAndHandle(c, msg, false)
}

// TestWebhookPayload is the body of the development test endpoint.
type TestWebhookPayload struct {
	From    string `json:"from"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Name    string `json:"name,omitempty"`
}

// HandleTestWebhook runs a message through the full pipeline without a
// channel provider (development only).
func (h *WhatsAppHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload
	if err := c.BodyParser(&payload); err != nil || payload.From == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}

	now := time.Now()
	msg := models.InboundMessage{
		SenderID:    ingress.SenderID(payload.From),
		MessageID:   "test." + utils.NewTransactionID(),
		Type:        models.MessageTypeText,
		Text:        strings.TrimSpace(payload.Message),
		ActionCode:  payload.Action,
		ContactName: payload.Name,
		SentAt:      now,
		ReceivedAt:  now,
	}
	if msg.ActionCode != "" {
		msg.Type = models.MessageTypeInteractive
	}
	h.log.Info("test message", zap.String("from", msg.SenderID), zap.String("text", msg.Text))
	return h.admitAndHandle(c, msg, true)
}

func (h *WhatsAppHandler) admitAndHandle(c *fiber.Ctx, msg models.InboundMessage, verbose bool) error {
	adm, err := h.gate.Admit(c.UserContext(), msg)
	if err != nil {
		return rejectionStatus(c, err)
	}

	reply, err := h.conversation.Handle(c.UserContext(), adm)
	if err != nil {
		h.log.Error("message not answered", zap.String("message_id", msg.MessageID), zap.Error(err))
		if verbose {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"success": false, "error": err.Error()})
		}
		// the provider will redeliver; the message is still unprocessed
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	if !verbose {
		return c.SendStatus(fiber.StatusOK)
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"response":   reply.Outcome.Payload.Body,
		"type":       reply.Outcome.Payload.Response.Type,
		"options":    reply.Outcome.Payload.Response.Options,
		"skill":      reply.Skill,
		"domain":     reply.Classification.Domain,
		"intent":     reply.Classification.Intent,
		"confidence": reply.Classification.Confidence,
		"suppressed": reply.Outcome.Suppressed,
	})
}

// firstRejection returns the first rejection that is not a duplicate or
// already in progress.
func firstRejection(rejected []ingress.Rejection) error {
	for _, r := range rejected {
		if !errors.Is(r.Err, ingress.ErrDuplicate) && !errors.Is(r.Err, ingress.ErrInFlight) {
			return r.Err
		}
	}
	return nil
}

// rejectionStatus maps gate errors onto HTTP responses.
func rejectionStatus(c *fiber.Ctx, err error) error {
	var (
		sigErr   *ingress.SignatureError
		rateErr  *ingress.RateLimitError
		validErr *ingress.ValidationError
	)
	switch {
	case errors.Is(err, ingress.ErrDuplicate):
		return c.JSON(fiber.Map{"status": "duplicate"})
	case errors.Is(err, ingress.ErrInFlight):
		return c.JSON(fiber.Map{"status": "in_progress"})
	case errors.As(err, &sigErr):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid signature"})
	case errors.As(err, &rateErr):
		secs := int(math.Ceil(rateErr.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many messages, slow down"})
	case errors.As(err, &validErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validErr.Error()})
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
