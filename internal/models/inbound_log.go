package models

import (
	"time"

	"gorm.io/gorm"
)

// InboundLog records every admitted channel message id.
type InboundLog struct {
	gorm.Model
	MessageID   string     `json:"message_id" gorm:"uniqueIndex;not null"`
	Sender      string     `json:"sender" gorm:"index"`
	Type        string     `json:"type"`
	Content     string     `json:"content"`
	SentAt      time.Time  `json:"sent_at"`
	ReceivedAt  time.Time  `json:"received_at"`
	Processed   bool       `json:"processed" gorm:"default:false"`
	ClaimedAt   time.Time  `json:"claimed_at"` // start of the current processing attempt
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}
