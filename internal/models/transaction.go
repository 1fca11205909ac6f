package models

import "time"

// Transaction kinds.
const (
	TxPaymentOffer = "payment_offer"
	TxRideRequest  = "ride_request"
)

// TransactionCacheEntry is short-lived state for a two-step action.
type TransactionCacheEntry struct {
	Kind          string            `json:"kind" gorm:"primaryKey"`
	TransactionID string            `json:"transaction_id" gorm:"primaryKey"`
	Sender        string            `json:"sender" gorm:"index"`
	Payload       map[string]string `json:"payload" gorm:"serializer:json"`
	CreatedAt     time.Time         `json:"created_at"`
	TTL           time.Duration     `json:"ttl"`
	ExpiresAt     time.Time         `json:"expires_at" gorm:"index"`
	ConsumedBy    string            `json:"consumed_by,omitempty" gorm:"not null;default:''"` // inbound message id
}

// Expired reports whether the entry is past its TTL at now.
func (e *TransactionCacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
