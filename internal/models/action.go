package models

import "strings"

// MenuAction is the action verb used by top-level menu codes ("menu.payments").
const MenuAction = "menu"

// ActionCode is a parsed button or list id of the form
// "<domain>.<action>[:<transaction id>]" or "menu.<domain>".
type ActionCode struct {
	Domain        string
	Action        string
	TransactionID string
}

// String renders the code back into its wire form.
func (a ActionCode) String() string {
	if a.Action == MenuAction && a.TransactionID == "" {
		return MenuAction + "." + a.Domain
	}
	s := a.Domain + "." + a.Action
	if a.TransactionID != "" {
		s += ":" + a.TransactionID
	}
	return s
}

// NewActionCode builds a code for domain.action, optionally bound to a transaction.
func NewActionCode(domain, action, txID string) string {
	return ActionCode{Domain: domain, Action: action, TransactionID: txID}.String()
}

// MenuCode builds the top-level menu code for a domain.
func MenuCode(domain string) string {
	return MenuAction + "." + domain
}

// ParseActionCode parses raw. ok is false when raw is not a well-formed code.
func ParseActionCode(raw string) (ActionCode, bool) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	head, tx, _ := strings.Cut(raw, ":")
	domain, action, found := strings.Cut(head, ".")
	if !found || domain == "" || action == "" {
		return ActionCode{}, false
	}
	if domain == MenuAction {
		return ActionCode{Domain: action, Action: MenuAction}, true
	}
	return ActionCode{Domain: domain, Action: action, TransactionID: tx}, true
}
