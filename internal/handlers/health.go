package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	Version   string
	Storage   string
	Delivery  string
	Templates string
	store     Pinger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, storage, delivery, templates string, store Pinger) *HealthHandler {
	return &HealthHandler{
		Version:   version,
		Storage:   storage,
		Delivery:  delivery,
		Templates: templates,
		store:     store,
	}
}

// Info describes the running service.
func (h *HealthHandler) Info(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service":   "easyMO Router",
		"version":   h.Version,
		"storage":   h.Storage,
		"delivery":  h.Delivery,
		"templates": h.Templates,
		"endpoints": fiber.Map{
			"health":  "/health",
			"webhook": "/webhook/whatsapp",
			"twilio":  "/webhook/twilio",
			"metrics": "/metrics",
		},
	})
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status, code := "healthy", fiber.StatusOK
	storeOK := true
	if err := h.store.Ping(ctx); err != nil {
		status, code, storeOK = "unhealthy", fiber.StatusServiceUnavailable, false
	}
	return c.Status(code).JSON(fiber.Map{
		"status":  status,
		"version": h.Version,
		"services": fiber.Map{
			"storage":  storeOK,
			"delivery": h.Delivery,
		},
	})
}
