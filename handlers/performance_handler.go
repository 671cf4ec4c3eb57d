package handlers

import (
	"context"
	"database/sql"
	"time"

	"github.com/fenilmodi00/ipo-dalal/jobs"
	"github.com/fenilmodi00/ipo-dalal/services"
	"github.com/fenilmodi00/ipo-dalal/shared"
	"github.com/gofiber/fiber/v2"
)

// CacheWarmer pre-loads the cached query results
type CacheWarmer interface {
	WarmupCache(ctx context.Context) error
}

// PerformanceHandler reports service metrics and manages the query cache
type PerformanceHandler struct {
	DB      *sql.DB
	Sources []jobs.MetricsSource
	Cache   *services.CacheService
	Warmer  CacheWarmer
	Jobs    JobRunner
}

func NewPerformanceHandler(db *sql.DB, cache *services.CacheService, warmer CacheWarmer, jobRunner JobRunner, sources ...jobs.MetricsSource) *PerformanceHandler {
	return &PerformanceHandler{
		DB:      db,
		Sources: sources,
		Cache:   cache,
		Warmer:  warmer,
		Jobs:    jobRunner,
	}
}

// GetMetrics returns per-service operation counters, cache statistics, job
// state and, when running on Postgres, connection pool stats
func (h *PerformanceHandler) GetMetrics(c *fiber.Ctx) error {
	snapshots := make([]shared.MetricsSnapshot, 0, len(h.Sources))
	for _, source := range h.Sources {
		if m := source.GetServiceMetrics(); m != nil {
			snapshots = append(snapshots, m.GetSnapshot())
		}
	}

	metrics := fiber.Map{
		"services":  snapshots,
		"timestamp": time.Now().UTC(),
	}
	if h.Cache != nil {
		metrics["cache_stats"] = h.Cache.Stats(c.UserContext())
	}
	if h.Jobs != nil {
		metrics["jobs"] = h.Jobs.Jobs()
	}
	if h.DB != nil {
		dbStats := h.DB.Stats()
		metrics["database_stats"] = fiber.Map{
			"open_connections":     dbStats.OpenConnections,
			"in_use":               dbStats.InUse,
			"idle":                 dbStats.Idle,
			"wait_count":           dbStats.WaitCount,
			"wait_duration_ms":     dbStats.WaitDuration.Milliseconds(),
			"max_idle_closed":      dbStats.MaxIdleClosed,
			"max_idle_time_closed": dbStats.MaxIdleTimeClosed,
			"max_lifetime_closed":  dbStats.MaxLifetimeClosed,
		}
	}

	return respondOK(c, metrics)
}

// ClearCache drops every cached query result
func (h *PerformanceHandler) ClearCache(c *fiber.Ctx) error {
	if h.Cache == nil {
		return respondError(c, shared.NewServiceError(shared.ErrorCategoryConfiguration, "CACHE_DISABLED",
			"Cache service not available", "HTTP_API", "ClearCache", false, nil))
	}
	h.Cache.InvalidateAll(c.UserContext())
	return respondOK(c, fiber.Map{"message": "Cache cleared successfully"})
}

// WarmupCache pre-loads frequently accessed data
func (h *PerformanceHandler) WarmupCache(c *fiber.Ctx) error {
	if h.Warmer == nil {
		return respondError(c, shared.NewServiceError(shared.ErrorCategoryConfiguration, "CACHE_DISABLED",
			"Cache service not available", "HTTP_API", "WarmupCache", false, nil))
	}

	start := time.Now()
	if err := h.Warmer.WarmupCache(c.UserContext()); err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{
		"message":     "Cache warmed up successfully",
		"duration_ms": time.Since(start).Milliseconds(),
	})
}
