package classifier

import (
	"regexp"

	"github.com/ikanisa/easymo-router/internal/models"
)

// RuleConfidence is assigned to every rule-table match.
const RuleConfidence = 0.9

// Rule maps a pattern over normalized text to a domain and intent.
type Rule struct {
	Pattern *regexp.Regexp
	Domain  string
	Intent  string
}

func rule(pattern, domain, intent string) Rule {
	return Rule{Pattern: regexp.MustCompile(`(?i)` + pattern), Domain: domain, Intent: intent}
}

// DefaultRules is evaluated top to bottom; the first match wins.
func DefaultRules() []Rule {
	return []Rule{
		// payments
		rule(`\b(get\s*paid|receive\s+(money|payment)|request\s+payment|generate\s+qr|qr\s*code|nyishyura)\b`, models.DomainPayments, "get_paid"),
		rule(`\b(balance|statement|history)\b`, models.DomainPayments, "check_balance"),
		rule(`\b(pay|payment|send\s+money|transfer|momo|ishyura)\b`, models.DomainPayments, "pay"),

		// listings before transport and commerce, "buy a car" is a listing
		rule(`\b((buy|sell|rent)\s+(a\s+|my\s+)?(car|vehicle|motorbike|truck))\b|\b(car|vehicle|motorbike)s?\s+for\s+(sale|rent)\b`, models.DomainListings, "vehicle"),
		rule(`\b(house|houses|apartment|apartments|property|properties|land|plot|real\s*estate|rent(al)?|inzu)\b`, models.DomainListings, "property"),

		// transport
		rule(`\b(drivers?\s+near(by)?|nearby\s+drivers?)\b`, models.DomainTransport, "nearby_drivers"),
		rule(`\b(schedule|book)\s+(a\s+)?trip\b`, models.DomainTransport, "schedule_trip"),
		rule(`\b(ride|moto|taxi|cab|lift|driver|pick\s*me\s*up|transport|passenger|twende)\b`, models.DomainTransport, "request_ride"),

		// commerce
		rule(`\b(track|where\s+is)\s+(my\s+)?order\b`, models.DomainCommerce, "track_order"),
		rule(`\b(order|cart|checkout)\b`, models.DomainCommerce, "order"),
		rule(`\b(shop|shops|buy|product|products|store|pharmacy|restaurant|bar|hotel|business|market|find)\b`, models.DomainCommerce, "search"),

		// support
		rule(`\b(agent|human|person|complain|complaint|problem|issue)\b`, models.DomainSupport, "agent"),
		rule(`\b(hi|hello|hey|muraho|bonjour|amakuru|good\s+(morning|afternoon|evening)|start|menu)\b`, models.DomainSupport, "greeting"),
		rule(`\b(help|how\s+does|what\s+can\s+you|ubufasha)\b`, models.DomainSupport, "help"),
	}
}

// matchRules returns the first matching rule.
func matchRules(rules []Rule, text string) (Rule, bool) {
	for _, r := range rules {
		if r.Pattern.MatchString(text) {
			return r, true
		}
	}
	return Rule{}, false
}
