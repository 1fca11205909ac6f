package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SupportTicket is opened when a user asks to talk to an agent.
type SupportTicket struct {
	gorm.Model
	TicketID    string     `gorm:"uniqueIndex;not null" json:"ticket_id"`
	Sender      string     `gorm:"index;not null" json:"sender"`
	ContactName string     `json:"contact_name,omitempty"`
	IssueType   string     `json:"issue_type"` // payment, transport, commerce, listings, general
	Description string     `json:"description"`
	Status      string     `gorm:"default:'open'" json:"status"` // open, in_progress, resolved, closed
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

const (
	IssueTypePayment   = "payment"
	IssueTypeTransport = "transport"
	IssueTypeCommerce  = "commerce"
	IssueTypeListings  = "listings"
	IssueTypeGeneral   = "general"

	TicketStatusOpen = "open"
)

func (st *SupportTicket) BeforeCreate(tx *gorm.DB) error {
	if st.TicketID == "" {
		st.TicketID = fmt.Sprintf("TK%d", time.Now().UnixNano())
	}
	if st.IssueType == "" {
		st.IssueType = IssueTypeGeneral
	}
	if st.Status == "" {
		st.Status = TicketStatusOpen
	}
	return nil
}
