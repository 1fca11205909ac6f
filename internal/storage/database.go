package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ikanisa/easymo-router/internal/models"
)

// DatabaseStore implements Store on top of gorm (PostgreSQL or SQLite).
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore wraps an open gorm connection.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Session operations
func (d *DatabaseStore) GetSession(ctx context.Context, sender string) (*models.SessionState, error) {
	var s models.SessionState
	if err := d.db.WithContext(ctx).First(&s, "sender = ?", sender).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (d *DatabaseStore) SaveSession(ctx context.Context, session *models.SessionState) error {
	if session == nil || session.Sender == "" {
		return fmt.Errorf("session sender is required")
	}
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(session).Error
}

// AdvanceInbound is a compare-and-swap on inbound_seq, so admissions racing
// on another instance cannot both move the window.
func (d *DatabaseStore) AdvanceInbound(ctx context.Context, sender string, seq int64, now time.Time) error {
	db := d.db.WithContext(ctx)
	res := db.Model(&models.SessionState{}).
		Where("sender = ? AND inbound_seq = ?", sender, seq).
		Updates(map[string]interface{}{
			"previous_inbound_at": gorm.Expr("last_inbound_at"),
			"last_inbound_at":     now,
			"inbound_seq":         gorm.Expr("inbound_seq + 1"),
			"updated_at":          now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if seq != 0 {
		return ErrConflict
	}

	res = db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.SessionState{Sender: sender, LastInboundAt: now, InboundSeq: 1, UpdatedAt: now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (d *DatabaseStore) RecordOutbound(ctx context.Context, sender, hash, stage string, at time.Time) error {
	if sender == "" {
		return fmt.Errorf("session sender is required")
	}
	cols := []string{"last_outbound_hash", "updated_at"}
	if stage != "" {
		cols = append(cols, "stage")
	}
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sender"}},
			DoUpdates: clause.AssignmentColumns(cols),
		}).
		Create(&models.SessionState{Sender: sender, LastOutboundHash: hash, Stage: stage, UpdatedAt: at}).Error
}

// User memory operations
func (d *DatabaseStore) GetUserMemory(ctx context.Context, sender string) (*models.UserMemory, error) {
	var m models.UserMemory
	if err := d.db.WithContext(ctx).First(&m, "sender = ?", sender).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (d *DatabaseStore) SaveUserMemory(ctx context.Context, memory *models.UserMemory) error {
	if memory == nil || memory.Sender == "" {
		return fmt.Errorf("memory sender is required")
	}
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(memory).Error
}

// Transaction cache operations
func (d *DatabaseStore) PutTransaction(ctx context.Context, entry *models.TransactionCacheEntry) error {
	if entry == nil || entry.Kind == "" || entry.TransactionID == "" {
		return fmt.Errorf("transaction kind and id are required")
	}
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(entry).Error
}

func (d *DatabaseStore) ConsumeTransaction(ctx context.Context, kind, id, sender, consumer string, now time.Time) (*models.TransactionCacheEntry, error) {
	var entry models.TransactionCacheEntry
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&entry, "kind = ? AND transaction_id = ?", kind, id).Error; err != nil {
			return err
		}
		if entry.Expired(now) || !consumable(&entry, sender, consumer) {
			return gorm.ErrRecordNotFound
		}
		if entry.ConsumedBy == consumer {
			return nil
		}
		res := tx.Model(&models.TransactionCacheEntry{}).
			Where("kind = ? AND transaction_id = ? AND consumed_by = ?", kind, id, "").
			Update("consumed_by", consumer)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// consumed concurrently
			return gorm.ErrRecordNotFound
		}
		entry.ConsumedBy = consumer
		return nil
	})
	if err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

func (d *DatabaseStore) DeleteExpiredTransactions(ctx context.Context, now time.Time) (int64, error) {
	res := d.db.WithContext(ctx).Delete(&models.TransactionCacheEntry{}, "expires_at <= ?", now)
	return res.RowsAffected, res.Error
}

// Inbound log operations
func (d *DatabaseStore) CreateInboundLog(ctx context.Context, entry *models.InboundLog) error {
	res := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "message_id"}}, DoNothing: true}).
		Create(entry)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (d *DatabaseStore) GetInboundLog(ctx context.Context, messageID string) (*models.InboundLog, error) {
	var entry models.InboundLog
	if err := d.db.WithContext(ctx).First(&entry, "message_id = ?", messageID).Error; err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

func (d *DatabaseStore) MarkInboundProcessed(ctx context.Context, messageID string, at time.Time) error {
	res := d.db.WithContext(ctx).Model(&models.InboundLog{}).
		Where("message_id = ?", messageID).
		Updates(map[string]interface{}{"processed": true, "processed_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DatabaseStore) ClaimInbound(ctx context.Context, messageID string, now, staleBefore time.Time) error {
	res := d.db.WithContext(ctx).Model(&models.InboundLog{}).
		Where("message_id = ? AND processed = ? AND claimed_at < ?", messageID, false, staleBefore).
		Update("claimed_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (d *DatabaseStore) ReleaseInbound(ctx context.Context, messageID string) error {
	res := d.db.WithContext(ctx).Model(&models.InboundLog{}).
		Where("message_id = ?", messageID).
		Update("claimed_at", time.Time{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Interaction operations
func (d *DatabaseStore) RecordInteraction(ctx context.Context, interaction *models.Interaction) error {
	return d.db.WithContext(ctx).Create(interaction).Error
}

func (d *DatabaseStore) ListInteractionsSince(ctx context.Context, since time.Time) ([]*models.Interaction, error) {
	var out []*models.Interaction
	err := d.db.WithContext(ctx).
		Where("at >= ?", since).
		Order("at asc").
		Find(&out).Error
	return out, err
}

// Support operations
func (d *DatabaseStore) CreateSupportTicket(ctx context.Context, ticket *models.SupportTicket) (*models.SupportTicket, error) {
	res := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "ticket_id"}}, DoNothing: true}).
		Create(ticket)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrDuplicate
	}
	return ticket, nil
}

func (d *DatabaseStore) GetSupportTicketsBySender(ctx context.Context, sender string) ([]*models.SupportTicket, error) {
	var out []*models.SupportTicket
	err := d.db.WithContext(ctx).
		Where("sender = ?", sender).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

func (d *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
