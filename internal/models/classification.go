package models

// Domains handled by the router.
const (
	DomainPayments  = "payments"
	DomainTransport = "transport"
	DomainCommerce  = "commerce"
	DomainListings  = "listings"
	DomainSupport   = "support"
)

// KnownDomains is the closed set of domains the classifier may return.
var KnownDomains = []string{
	DomainPayments,
	DomainTransport,
	DomainCommerce,
	DomainListings,
	DomainSupport,
}

// IsKnownDomain reports whether d is one of KnownDomains.
func IsKnownDomain(d string) bool {
	for _, k := range KnownDomains {
		if k == d {
			return true
		}
	}
	return false
}

// Where a classification came from.
const (
	SourceRule     = "rule"
	SourceModel    = "model"
	SourceFallback = "fallback"
	SourceMemory   = "memory"
	SourceAction   = "action"
)

// Slot keys.
const (
	SlotAmount        = "amount"
	SlotTransactionID = "transaction_id"
	SlotPhone         = "phone"
	SlotQuery         = "query"
)

// Slot is one extracted parameter.
type Slot struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ClassificationResult is produced once per message and never mutated.
type ClassificationResult struct {
	Domain     string  `json:"domain"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Slots      []Slot  `json:"slots,omitempty"`
	Source     string  `json:"source"`
}

// Slot returns the value for key and whether it was present.
func (c ClassificationResult) Slot(key string) (string, bool) {
	for _, s := range c.Slots {
		if s.Key == key {
			return s.Value, true
		}
	}
	return "", false
}

// WithSlot returns a copy of c with key set to value.
func (c ClassificationResult) WithSlot(key, value string) ClassificationResult {
	slots := make([]Slot, 0, len(c.Slots)+1)
	replaced := false
	for _, s := range c.Slots {
		if s.Key == key {
			s.Value = value
			replaced = true
		}
		slots = append(slots, s)
	}
	if !replaced {
		slots = append(slots, Slot{Key: key, Value: value})
	}
	c.Slots = slots
	return c
}

// ClampConfidence forces v into [0,1].
func ClampConfidence(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
