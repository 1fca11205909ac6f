package ingress

import (
	"errors"
	"fmt"
	"time"
)

// ErrDuplicate means the message id was already processed; acknowledge it
// to the provider and do nothing else.
var ErrDuplicate = errors.New("ingress: message already processed")

// ErrInFlight means another delivery of the same message id holds the claim.
var ErrInFlight = errors.New("ingress: message is being processed")

// SignatureError rejects a webhook whose signature does not verify.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return "ingress: invalid signature: " + e.Reason
}

// RateLimitError rejects a message that arrived before the minimum interval.
type RateLimitError struct {
	Sender     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("ingress: sender %s rate limited, retry after %s", e.Sender, e.RetryAfter.Round(time.Second))
}

// ValidationError rejects a payload that cannot be normalized.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "ingress: invalid payload: " + e.Reason
	}
	return fmt.Sprintf("ingress: invalid %s: %s", e.Field, e.Reason)
}
