package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ikanisa/easymo-router/internal/models"
)

var (
	// ErrNotFound is returned when a keyed record does not exist or has expired.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("storage: duplicate")
	// ErrConflict is returned when a conditional write lost to a concurrent one.
	ErrConflict = errors.New("storage: conflict")
)

// Store defines the interface for storage operations
type Store interface {
	// Session operations. AdvanceInbound moves the inbound window only if
	// the session is still at seq; RecordOutbound touches only the reply
	// columns so it never rewinds a concurrent admission.
	GetSession(ctx context.Context, sender string) (*models.SessionState, error)
	SaveSession(ctx context.Context, session *models.SessionState) error
	AdvanceInbound(ctx context.Context, sender string, seq int64, now time.Time) error
	RecordOutbound(ctx context.Context, sender, hash, stage string, at time.Time) error

	// User memory operations
	GetUserMemory(ctx context.Context, sender string) (*models.UserMemory, error)
	SaveUserMemory(ctx context.Context, memory *models.UserMemory) error

	// Transaction cache operations. ConsumeTransaction marks the entry as
	// used by consumer; the same consumer may consume it again, anyone else
	// gets ErrNotFound, as do missing, expired and foreign entries.
	PutTransaction(ctx context.Context, entry *models.TransactionCacheEntry) error
	ConsumeTransaction(ctx context.Context, kind, id, sender, consumer string, now time.Time) (*models.TransactionCacheEntry, error)
	DeleteExpiredTransactions(ctx context.Context, now time.Time) (int64, error)

	// Inbound log operations
	CreateInboundLog(ctx context.Context, entry *models.InboundLog) error
	GetInboundLog(ctx context.Context, messageID string) (*models.InboundLog, error)
	MarkInboundProcessed(ctx context.Context, messageID string, at time.Time) error
	// ClaimInbound takes over an unprocessed message whose claim is older
	// than staleBefore, or returns ErrConflict.
	ClaimInbound(ctx context.Context, messageID string, now, staleBefore time.Time) error
	ReleaseInbound(ctx context.Context, messageID string) error

	// Interaction operations
	RecordInteraction(ctx context.Context, interaction *models.Interaction) error
	ListInteractionsSince(ctx context.Context, since time.Time) ([]*models.Interaction, error)

	// Support operations
	CreateSupportTicket(ctx context.Context, ticket *models.SupportTicket) (*models.SupportTicket, error)
	GetSupportTicketsBySender(ctx context.Context, sender string) ([]*models.SupportTicket, error)

	Ping(ctx context.Context) error
}
