package handlers

import (
	"context"
	"time"

	"github.com/Ananth-NQI/soko-ussd/internal/metrics"
	"github.com/Ananth-NQI/soko-ussd/internal/session"
	"github.com/gofiber/fiber/v2"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	Version  string
	Storage  string
	store    Pinger
	sessions session.Store
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, storageType string, store Pinger, sessions session.Store) *HealthHandler {
	return &HealthHandler{
		Version:  version,
		Storage:  storageType,
		store:    store,
		sessions: sessions,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := "healthy"
	statusCode := fiber.StatusOK
	dbStatus := "connected"
	if err := h.store.Ping(ctx); err != nil {
		status = "unhealthy"
		statusCode = fiber.StatusServiceUnavailable
		dbStatus = "error: " + err.Error()
	}

	sessionsField := fiber.Map{"status": "ok"}
	if n, err := h.sessions.Count(ctx); err != nil {
		sessionsField["status"] = "error: " + err.Error()
	} else {
		sessionsField["active"] = n
		metrics.ActiveSessions.Set(float64(n))
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":   status,
		"service":  "Soko USSD Backend",
		"version":  h.Version,
		"storage":  fiber.Map{"type": h.Storage, "status": dbStatus},
		"sessions": sessionsField,
	})
}
