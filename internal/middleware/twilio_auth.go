package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/twilio/twilio-go/client"
	"go.uber.org/zap"
)

// TwilioSignatureHeader carries Twilio's request signature.
const TwilioSignatureHeader = "X-Twilio-Signature"

// ValidateTwilioSignature validates that the webhook request is from Twilio.
// publicBaseURL is the externally visible scheme and host; behind a proxy the
// request's own host differs from the one Twilio signed.
func ValidateTwilioSignature(authToken, publicBaseURL string, log *zap.Logger) fiber.Handler {
	validator := client.NewRequestValidator(authToken)
	log = log.Named("twilio_auth")

	return func(c *fiber.Ctx) error {
		signature := c.Get(TwilioSignatureHeader)
		if signature == "" {
			log.Warn("security: missing Twilio signature", zap.String("ip", c.IP()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Twilio signature",
			})
		}
		if authToken == "" {
			log.Error("TWILIO_AUTH_TOKEN not set")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Server configuration error",
			})
		}

		params := make(map[string]string)
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			params[string(key)] = string(value)
		})

		if !validator.Validate(requestURL(c, publicBaseURL), params, signature) {
			log.Warn("security: invalid Twilio signature", zap.String("ip", c.IP()), zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}
		return c.Next()
	}
}

// requestURL rebuilds the URL Twilio signed.
func requestURL(c *fiber.Ctx, publicBaseURL string) string {
	if publicBaseURL != "" {
		return strings.TrimRight(publicBaseURL, "/") + c.OriginalURL()
	}
	return c.Protocol() + "://" + c.Hostname() + c.OriginalURL()
}
