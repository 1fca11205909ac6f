package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ikanisa/easymo-router/internal/handlers"
	"github.com/ikanisa/easymo-router/internal/middleware"
)

// Options controls which routes are mounted.
type Options struct {
	Development       bool
	DisableValidation bool
	TwilioAuthToken   string
	PublicBaseURL     string
	Metrics           prometheus.Gatherer
}

// SetupRoutes configures all routes
func SetupRoutes(app *fiber.App, whatsapp *handlers.WhatsAppHandler, health *handlers.HealthHandler, opts Options, log *zap.Logger) {
	app.Get("/", health.Info)
	app.Get("/health", health.Check)

	if opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Metrics, promhttp.HandlerOpts{})))
	}

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	// Cloud API: the gate verifies X-Hub-Signature-256 itself
	webhooks.Get("/whatsapp", whatsapp.Verify)
	webhooks.Post("/whatsapp", whatsapp.HandleWebhook)

	if opts.DisableValidation {
		log.Warn("Twilio webhook validation DISABLED")
		webhooks.Post("/twilio", whatsapp.HandleTwilioWebhook)
	} else {
		webhooks.Post("/twilio", middleware.ValidateTwilioSignature(opts.TwilioAuthToken, opts.PublicBaseURL, log), whatsapp.HandleTwilioWebhook)
	}

	// ========== TEST ROUTES (Development Only) ==========
	if opts.Development {
		app.Post("/test/whatsapp", whatsapp.HandleTestWebhook)
	}
}
