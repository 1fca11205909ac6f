package models

import "time"

// Message types reported by the channel.
const (
	MessageTypeText        = "text"
	MessageTypeInteractive = "interactive"
	MessageTypeButton      = "button"
	MessageTypeReaction    = "reaction"
	MessageTypeImage       = "image"
	MessageTypeVideo       = "video"
	MessageTypeAudio       = "audio"
	MessageTypeDocument    = "document"
	MessageTypeSticker     = "sticker"
	MessageTypeLocation    = "location"
	MessageTypeUnsupported = "unsupported"
)

// InboundMessage is the canonical form of a user message after ingress.
type InboundMessage struct {
	SenderID    string    `json:"sender_id"`
	MessageID   string    `json:"message_id"`
	Type        string    `json:"type"`
	Text        string    `json:"text"`
	ActionCode  string    `json:"action_code,omitempty"` // button or list reply id
	ContactName string    `json:"contact_name,omitempty"`
	SentAt      time.Time `json:"sent_at"`
	ReceivedAt  time.Time `json:"received_at"`
}

// IsAction reports whether the message is a tap on a button or list row.
func (m InboundMessage) IsAction() bool {
	return m.ActionCode != ""
}
