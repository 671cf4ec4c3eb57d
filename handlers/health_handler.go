package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	Store Pinger
	Cache Pinger
}

func NewHealthHandler(store, cache Pinger) *HealthHandler {
	return &HealthHandler{Store: store, Cache: cache}
}

func check(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return "unhealthy: " + err.Error()
	}
	return "ok"
}

// Health answers 200 when the store is reachable and 503 otherwise
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	store := check(c.UserContext(), h.Store)
	cache := check(c.UserContext(), h.Cache)

	status, code := "ok", fiber.StatusOK
	if store != "ok" {
		status, code = "degraded", fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":    status,
		"store":     store,
		"cache":     cache,
		"timestamp": time.Now().Unix(),
	})
}
