package models

import "time"

// Interaction is one handled message, consumed by the preference learner.
type Interaction struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	Sender       string       `json:"sender" gorm:"index"`
	MessageID    string       `json:"message_id"`
	Skill        string       `json:"skill"`
	Intent       string       `json:"intent"`
	Confidence   float64      `json:"confidence"`
	Source       string       `json:"source"`
	ResponseType ResponseType `json:"response_type"`
	At           time.Time    `json:"at" gorm:"index"`
}
