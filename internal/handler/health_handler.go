package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Pinger is an interface for health check ping operations.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	pool  Pinger
	cache Pinger
}

// NewHealthHandler creates a new HealthHandler. cache may be nil when caching is disabled.
func NewHealthHandler(pool Pinger, cache Pinger) *HealthHandler {
	return &HealthHandler{pool: pool, cache: cache}
}

// Check pings the database and, when configured, the cache.
// Returns 200 OK with {"status": "healthy"} when every dependency is reachable.
// An unreachable database is fatal (503); an unreachable cache only degrades the service.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	if err := h.pool.Ping(c.Context()); err != nil {
		log.Error().Err(err).Msg("health check failed: database unreachable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  "database connection failed",
		})
	}
	if h.cache != nil {
		if err := h.cache.Ping(c.Context()); err != nil {
			log.Warn().Err(err).Msg("health check degraded: cache unreachable")
			return c.JSON(fiber.Map{
				"status": "degraded",
				"cache":  "unreachable",
			})
		}
	}
	return c.JSON(fiber.Map{
		"status": "healthy",
	})
}
