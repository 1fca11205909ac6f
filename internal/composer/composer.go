// Package composer renders skill responses, suppresses repeats of the last
// reply sent to a sender and hands the rest to a delivery gateway.
package composer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ikanisa/easymo-router/internal/metrics"
	"github.com/ikanisa/easymo-router/internal/models"
	"github.com/ikanisa/easymo-router/internal/storage"
	"github.com/ikanisa/easymo-router/internal/utils"
)

// ErrDeliveryFailed wraps any gateway error. Session state is left untouched.
var ErrDeliveryFailed = errors.New("composer: delivery failed")

// Gateway delivers a rendered payload to the channel.
type Gateway interface {
	Send(ctx context.Context, payload models.OutboundPayload) error
}

// SessionStore is the slice of storage the composer needs.
type SessionStore interface {
	GetSession(ctx context.Context, sender string) (*models.SessionState, error)
	RecordOutbound(ctx context.Context, sender, hash, stage string, at time.Time) error
}

// Outcome reports what happened to one response.
type Outcome struct {
	Payload    models.OutboundPayload
	Suppressed bool
}

type Composer struct {
	store   SessionStore
	gateway Gateway
	locks   *utils.KeyedMutex
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New shares locks with the ingress gate so both check-then-write
// sequences for a sender are serialized.
func New(store SessionStore, gateway Gateway, locks *utils.KeyedMutex, log *zap.Logger, m *metrics.Metrics) *Composer {
	return &Composer{
		store:   store,
		gateway: gateway,
		locks:   locks,
		log:     log.Named("composer"),
		metrics: m,
		now:     time.Now,
	}
}

// WithClock replaces the composer's clock.
func (c *Composer) WithClock(now func() time.Time) *Composer {
	c.now = now
	return c
}

// Compose delivers resp to recipient unless it equals the last reply sent.
func (c *Composer) Compose(ctx context.Context, recipient string, resp models.SkillResponse) (Outcome, error) {
	payload := models.OutboundPayload{
		Recipient: recipient,
		Response:  resp,
		Body:      Render(resp),
		Hash:      Hash(resp),
		CreatedAt: c.now(),
	}

	unlock := c.locks.Lock(recipient)
	defer unlock()

	session, err := c.store.GetSession(ctx, recipient)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		session = &models.SessionState{Sender: recipient}
	case err != nil:
		return Outcome{Payload: payload}, fmt.Errorf("load session for %s: %w", recipient, err)
	}

	if session.LastOutboundHash == payload.Hash {
		c.log.Info("duplicate reply suppressed",
			zap.String("recipient", recipient),
			zap.String("hash", payload.Hash))
		c.metrics.Delivery("suppressed")
		return Outcome{Payload: payload, Suppressed: true}, nil
	}

	if err := c.gateway.Send(ctx, payload); err != nil {
		c.log.Error("delivery failed",
			zap.String("recipient", recipient),
			zap.String("type", string(resp.Type)),
			zap.Error(err))
		c.metrics.Delivery("failed")
		return Outcome{Payload: payload}, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	c.metrics.Delivery("sent")
	c.metrics.Response(string(resp.Type))

	if err := c.store.RecordOutbound(ctx, recipient, payload.Hash, resp.Stage, payload.CreatedAt); err != nil {
		// the message is already out; a lost hash only weakens dedup
		c.log.Warn("failed to record outbound hash", zap.String("recipient", recipient), zap.Error(err))
	}
	return Outcome{Payload: payload}, nil
}

type canonical struct {
	Type      models.ResponseType `json:"type"`
	Template  string              `json:"template,omitempty"`
	Variables map[string]string   `json:"variables,omitempty"`
	Text      string              `json:"text,omitempty"`
	Options   []string            `json:"options,omitempty"`
	MediaURL  string              `json:"media_url,omitempty"`
}

// Hash is the hex SHA-256 of the response's canonical JSON form. Labels and
// stage do not take part; option codes do.
func Hash(resp models.SkillResponse) string {
	c := canonical{
		Type:     resp.Type,
		Text:     resp.Text,
		MediaURL: resp.MediaURL,
	}
	if resp.Template != nil {
		c.Template = resp.Template.Name
		c.Variables = resp.Template.Variables
	}
	for _, o := range resp.Options {
		c.Options = append(c.Options, o.Code)
	}
	// map keys are emitted sorted, so the encoding is stable
	data, _ := json.Marshal(c)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
