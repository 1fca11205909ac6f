// Package fulfillment calls downstream services (QR generation, business
// search) with bounded timeouts.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ErrUnavailable is returned when a collaborator is not configured.
var ErrUnavailable = errors.New("fulfillment: service not configured")

// timeoutFor caps d by the context deadline.
func timeoutFor(ctx context.Context, d time.Duration) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < d {
			if left <= 0 {
				return 0, context.DeadlineExceeded
			}
			d = left
		}
	}
	return d, nil
}

func agentError(service string, code int, body []byte, errs []error) error {
	if len(errs) > 0 {
		return fmt.Errorf("%s: %w", service, errors.Join(errs...))
	}
	if code < 200 || code >= 300 {
		if len(body) > 200 {
			body = body[:200]
		}
		return fmt.Errorf("%s: status %d: %s", service, code, body)
	}
	return nil
}

func bearer(a *fiber.Agent, token string) {
	if token != "" {
		a.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
}
