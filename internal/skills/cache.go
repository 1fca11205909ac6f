package skills

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ikanisa/easymo-router/internal/models"
	"github.com/ikanisa/easymo-router/internal/storage"
)

// ErrTransactionNotFound covers unknown, expired, consumed and foreign entries.
var ErrTransactionNotFound = errors.New("skills: transaction not found")

// TransactionCache stores two-step offers with a TTL.
type TransactionCache struct {
	store storage.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewTransactionCache returns a cache whose entries live for ttl.
func NewTransactionCache(store storage.Store, ttl time.Duration) *TransactionCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TransactionCache{store: store, ttl: ttl, now: time.Now}
}

// WithClock replaces the cache's clock.
func (c *TransactionCache) WithClock(now func() time.Time) *TransactionCache {
	c.now = now
	return c
}

// Offer stores payload under (kind, id).
func (c *TransactionCache) Offer(ctx context.Context, kind, id, sender string, payload map[string]string) (*models.TransactionCacheEntry, error) {
	now := c.now()
	entry := &models.TransactionCacheEntry{
		Kind:          kind,
		TransactionID: id,
		Sender:        sender,
		Payload:       payload,
		CreatedAt:     now,
		TTL:           c.ttl,
		ExpiresAt:     now.Add(c.ttl),
	}
	if err := c.store.PutTransaction(ctx, entry); err != nil {
		return nil, fmt.Errorf("store %s %s: %w", kind, id, err)
	}
	return entry, nil
}

// Consume returns the entry and marks it used by consumer, the inbound
// message id. A redelivery of that same message gets the entry again; any
// other message, or another sender, finds nothing.
func (c *TransactionCache) Consume(ctx context.Context, kind, id, sender, consumer string) (*models.TransactionCacheEntry, error) {
	if id == "" {
		return nil, ErrTransactionNotFound
	}
	entry, err := c.store.ConsumeTransaction(ctx, kind, id, sender, consumer, c.now())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consume %s %s: %w", kind, id, err)
	}
	return entry, nil
}
