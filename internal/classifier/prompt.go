package classifier

import (
	"fmt"
	"strings"

	"github.com/ikanisa/easymo-router/internal/models"
)

// Intents lists the closed intent set per domain.
var Intents = map[string][]string{
	models.DomainPayments:  {"get_paid", "pay", "check_balance", "menu"},
	models.DomainTransport: {"request_ride", "nearby_drivers", "schedule_trip", "menu"},
	models.DomainCommerce:  {"search", "browse", "order", "track_order", "menu"},
	models.DomainListings:  {"property", "vehicle", "create", "menu"},
	models.DomainSupport:   {"greeting", "help", "agent", "menu"},
}

func knownIntent(domain, intent string) bool {
	for _, i := range Intents[domain] {
		if i == intent {
			return true
		}
	}
	return false
}

// BuildPrompt renders the classification prompt for one message.
func BuildPrompt(text string) string {
	var b strings.Builder
	b.WriteString("You classify WhatsApp messages for easyMO, a Rwandan mobile-money and services assistant.\n")
	b.WriteString("Pick exactly one domain and one intent from this closed set:\n")
	for _, d := range models.KnownDomains {
		fmt.Fprintf(&b, "- %s: %s\n", d, strings.Join(Intents[d], ", "))
	}
	b.WriteString("\nExtract slots when present: amount (integer RWF), phone (MSISDN), query (free text to search for).\n")
	b.WriteString("Reply with a single JSON object and nothing else:\n")
	b.WriteString(`{"domain": "<domain>", "intent": "<intent>", "confidence": <0..1>, "slots": {"amount": "...", "phone": "...", "query": "..."}}`)
	b.WriteString("\nOmit slots you cannot find. Use a low confidence when unsure.\n\n")
	fmt.Fprintf(&b, "Message: %q\n", text)
	return b.String()
}
