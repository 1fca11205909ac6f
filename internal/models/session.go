package models

import "time"

// SessionState tracks the channel window and the last reply for one sender.
type SessionState struct {
	Sender            string    `json:"sender" gorm:"primaryKey"`
	LastInboundAt     time.Time `json:"last_inbound_at"`
	PreviousInboundAt time.Time `json:"previous_inbound_at"`                   // LastInboundAt before the latest admission
	InboundSeq        int64     `json:"inbound_seq" gorm:"not null;default:0"` // bumped on every admission
	LastOutboundHash  string    `json:"last_outbound_hash"`
	Stage             string    `json:"stage"`
	UpdatedAt         time.Time `json:"updated_at"`
}

