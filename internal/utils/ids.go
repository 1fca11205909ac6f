package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewTransactionID returns a random id safe to embed in an action code.
func NewTransactionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// GenerateSecureID generates a prefixed random id for tickets and references
func GenerateSecureID(prefix string) string {
	return prefix + strings.ToUpper(NewTransactionID()[:10])
}

// TicketIDFor derives a support ticket id from an inbound message id, so a
// redelivered handoff names the ticket it already opened.
func TicketIDFor(messageID string) string {
	if messageID == "" {
		return GenerateSecureID("TK")
	}
	return "TK" + strings.ToUpper(TransactionIDFor(messageID)[:10])
}

// TransactionIDFor derives a stable transaction id from an inbound message id,
// so a redelivered webhook produces the same offer.
func TransactionIDFor(messageID string) string {
	if messageID == "" {
		return NewTransactionID()
	}
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("easymo:"+messageID))
	return strings.ReplaceAll(id.String(), "-", "")
}
