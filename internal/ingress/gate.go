// Package ingress authenticates webhook calls, normalizes channel payloads
// and admits messages past the per-sender rate limit and duplicate check.
package ingress

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ikanisa/easymo-router/internal/metrics"
	"github.com/ikanisa/easymo-router/internal/models"
	"github.com/ikanisa/easymo-router/internal/storage"
	"github.com/ikanisa/easymo-router/internal/utils"
)

// SignatureHeader carries the Cloud API body signature.
const SignatureHeader = "X-Hub-Signature-256"

// Config holds the gate's secrets and limits.
type Config struct {
	AppSecret         string
	VerifyToken       string
	DisableValidation bool
	MinInterval       time.Duration
	MaxLength         int
	// ClaimLease is how long an unfinished attempt keeps other deliveries
	// of the same message id out.
	ClaimLease time.Duration
}

// DefaultClaimLease applies when Config.ClaimLease is zero.
const DefaultClaimLease = 2 * time.Minute

// admitAttempts bounds the retries after losing a session write to another instance.
const admitAttempts = 3

// Gate is safe for concurrent use.
type Gate struct {
	cfg     Config
	store   storage.Store
	locks   *utils.KeyedMutex
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewGate builds a Gate. locks must be shared with the output composer.
func NewGate(cfg Config, store storage.Store, locks *utils.KeyedMutex, log *zap.Logger, m *metrics.Metrics) *Gate {
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = DefaultClaimLease
	}
	return &Gate{
		cfg:     cfg,
		store:   store,
		locks:   locks,
		log:     log.Named("ingress"),
		metrics: m,
		now:     time.Now,
	}
}

// WithClock replaces the gate's clock.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Admission is a message that passed the gate.
type Admission struct {
	Message models.InboundMessage
	// PreviousInboundAt is the sender's last inbound time before this
	// message; zero when the sender was never seen.
	PreviousInboundAt time.Time
	Retry             bool
}

// Rejection is a message the gate refused.
type Rejection struct {
	MessageID string
	Sender    string
	Err       error
}

// Status is a delivery receipt for a message we sent.
type Status struct {
	MessageID   string
	Status      string
	RecipientID string
}

// Batch is the result of accepting one webhook call.
type Batch struct {
	Admitted []*Admission
	Rejected []Rejection
	Statuses []Status
}

// VerifySignature checks a "sha256=<hex>" HMAC of body.
func (g *Gate) VerifySignature(body []byte, header string) error {
	if g.cfg.DisableValidation {
		return nil
	}
	if g.cfg.AppSecret == "" {
		return &SignatureError{Reason: "app secret not configured"}
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok || sig == "" {
		return &SignatureError{Reason: "missing or malformed header"}
	}

	mac := hmac.New(sha256.New, []byte(g.cfg.AppSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(strings.ToLower(sig)), []byte(expected)) {
		return &SignatureError{Reason: "mismatch"}
	}
	return nil
}

// Handshake answers the channel's subscription challenge.
func (g *Gate) Handshake(mode, token, challenge string) (string, bool) {
	if mode == "subscribe" && g.cfg.VerifyToken != "" &&
		hmac.Equal([]byte(token), []byte(g.cfg.VerifyToken)) {
		g.log.Info("webhook verified")
		return challenge, true
	}
	g.log.Warn("webhook verification failed", zap.String("mode", mode))
	return "", false
}

// Accept verifies and parses a Cloud API webhook body, then admits every
// message it carries. A SignatureError or ValidationError for the whole
// body is returned as err; per-message outcomes are in the Batch.
func (g *Gate) Accept(ctx context.Context, body []byte, signature string) (*Batch, error) {
	if err := g.VerifySignature(body, signature); err != nil {
		g.metrics.Inbound("bad_signature")
		g.log.Warn("security: rejected webhook", zap.Error(err), zap.Int("bytes", len(body)))
		return nil, err
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		g.metrics.Inbound("invalid")
		return nil, &ValidationError{Reason: "body is not valid JSON"}
	}

	batch := &Batch{}
	now := g.now()
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			v := change.Value
			for _, st := range v.Statuses {
				g.metrics.Inbound("status")
				batch.Statuses = append(batch.Statuses, Status{MessageID: st.ID, Status: st.Status, RecipientID: st.RecipientID})
				g.log.Debug("delivery status", zap.String("message_id", st.ID), zap.String("status", st.Status))
			}
			for _, raw := range v.Messages {
				msg, err := normalize(raw, contactName(v.Contacts, raw.From), g.cfg.MaxLength, now)
				if err == nil {
					var adm *Admission
					adm, err = g.Admit(ctx, msg)
					if err == nil {
						batch.Admitted = append(batch.Admitted, adm)
						continue
					}
				} else {
					g.metrics.Inbound("invalid")
					g.log.Info("rejected message", zap.String("message_id", raw.ID), zap.Error(err))
				}
				batch.Rejected = append(batch.Rejected, Rejection{MessageID: raw.ID, Sender: raw.From, Err: err})
			}
		}
	}
	return batch, nil
}

func contactName(contacts []waContact, waID string) string {
	for _, c := range contacts {
		if c.WaID == waID {
			return c.Profile.Name
		}
	}
	if len(contacts) == 1 {
		return contacts[0].Profile.Name
	}
	return ""
}

// Admit applies the duplicate check and the per-sender rate limit to one
// normalized message, records it and claims it for processing. A message
// that is logged but unprocessed is admitted again only once its claim is
// released or has gone stale; until then ErrInFlight is returned.
func (g *Gate) Admit(ctx context.Context, msg models.InboundMessage) (*Admission, error) {
	unlock := g.locks.Lock(msg.SenderID)
	defer unlock()

	now := g.now()
	logged, err := g.store.GetInboundLog(ctx, msg.MessageID)
	switch {
	case err == nil && logged.Processed:
		g.metrics.Inbound("duplicate")
		g.log.Info("duplicate delivery ignored", zap.String("message_id", msg.MessageID))
		return nil, ErrDuplicate
	case err == nil:
		return g.readmit(ctx, msg, now)
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("load inbound log: %w", err)
	}

	var prev time.Time
	for attempt := 1; ; attempt++ {
		session, err := g.loadSession(ctx, msg.SenderID)
		if err != nil {
			return nil, err
		}
		if last := session.LastInboundAt; !last.IsZero() && g.cfg.MinInterval > 0 {
			if elapsed := now.Sub(last); elapsed < g.cfg.MinInterval {
				g.metrics.Inbound("rate_limited")
				rl := &RateLimitError{Sender: msg.SenderID, RetryAfter: g.cfg.MinInterval - elapsed}
				g.log.Info("throttled sender", zap.String("sender", msg.SenderID), zap.Duration("retry_after", rl.RetryAfter))
				return nil, rl
			}
		}

		err = g.store.AdvanceInbound(ctx, msg.SenderID, session.InboundSeq, now)
		if err == nil {
			prev = session.LastInboundAt
			break
		}
		if !errors.Is(err, storage.ErrConflict) || attempt >= admitAttempts {
			return nil, fmt.Errorf("save session: %w", err)
		}
	}

	err = g.store.CreateInboundLog(ctx, &models.InboundLog{
		MessageID:  msg.MessageID,
		Sender:     msg.SenderID,
		Type:       msg.Type,
		Content:    msg.Text,
		SentAt:     msg.SentAt,
		ReceivedAt: now,
		ClaimedAt:  now,
	})
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		// another instance logged the same id first
		g.metrics.Inbound("in_flight")
		return nil, ErrInFlight
	case err != nil:
		return nil, fmt.Errorf("write inbound log: %w", err)
	}

	g.metrics.Inbound("accepted")
	return &Admission{Message: msg, PreviousInboundAt: prev}, nil
}

// readmit handles a redelivery of a logged but unprocessed message.
func (g *Gate) readmit(ctx context.Context, msg models.InboundMessage, now time.Time) (*Admission, error) {
	err := g.store.ClaimInbound(ctx, msg.MessageID, now, now.Add(-g.cfg.ClaimLease))
	if errors.Is(err, storage.ErrConflict) {
		g.metrics.Inbound("in_flight")
		g.log.Info("delivery already in progress", zap.String("message_id", msg.MessageID))
		return nil, ErrInFlight
	}
	if err != nil {
		return nil, fmt.Errorf("claim inbound log: %w", err)
	}

	session, err := g.loadSession(ctx, msg.SenderID)
	if err != nil {
		return nil, err
	}
	g.metrics.Inbound("retry")
	return &Admission{Message: msg, PreviousInboundAt: session.PreviousInboundAt, Retry: true}, nil
}

func (g *Gate) loadSession(ctx context.Context, sender string) (*models.SessionState, error) {
	session, err := g.store.GetSession(ctx, sender)
	if errors.Is(err, storage.ErrNotFound) {
		return &models.SessionState{Sender: sender}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

// Release gives up the claim on a message that could not be answered so the
// provider's next delivery is admitted as a retry.
func (g *Gate) Release(ctx context.Context, messageID string) error {
	if err := g.store.ReleaseInbound(ctx, messageID); err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

// Complete marks a message processed so redeliveries are ignored.
func (g *Gate) Complete(ctx context.Context, messageID string) error {
	if err := g.store.MarkInboundProcessed(ctx, messageID, g.now()); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}
