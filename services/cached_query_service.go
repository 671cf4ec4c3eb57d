package services

import (
	"context"
	"fmt"

	"github.com/fenilmodi00/ipo-dalal/models"
	"github.com/google/uuid"
)

// CachedQueryService wraps QueryService with caching capabilities. Entries
// live until the TTL runs out or a mutation invalidates the cache.
type CachedQueryService struct {
	queries *QueryService
	cache   *CacheService
}

func NewCachedQueryService(queries *QueryService, cache *CacheService) *CachedQueryService {
	return &CachedQueryService{queries: queries, cache: cache}
}

func (c *CachedQueryService) GetDashboardData(ctx context.Context) ([]models.EnrichedIPO, error) {
	return cached(ctx, c.cache, "dashboard", func() ([]models.EnrichedIPO, error) {
		return c.queries.GetDashboardData(ctx)
	})
}

func (c *CachedQueryService) GetLiveIPOs(ctx context.Context) ([]models.EnrichedIPO, error) {
	return cached(ctx, c.cache, "ipos:live", func() ([]models.EnrichedIPO, error) {
		return c.queries.GetLiveIPOs(ctx)
	})
}

func (c *CachedQueryService) GetListedIPOs(ctx context.Context) ([]models.EnrichedIPO, error) {
	return cached(ctx, c.cache, "ipos:listed", func() ([]models.EnrichedIPO, error) {
		return c.queries.GetListedIPOs(ctx)
	})
}

func (c *CachedQueryService) GetGMPAggregatorData(ctx context.Context, filter string) ([]models.EnrichedIPO, error) {
	return cached(ctx, c.cache, "gmp:"+filter, func() ([]models.EnrichedIPO, error) {
		return c.queries.GetGMPAggregatorData(ctx, filter)
	})
}

func (c *CachedQueryService) GetSubscriptionAggregatorData(ctx context.Context) ([]models.EnrichedIPO, error) {
	return cached(ctx, c.cache, "subscriptions", func() ([]models.EnrichedIPO, error) {
		return c.queries.GetSubscriptionAggregatorData(ctx)
	})
}

// GetGMPHistory is not cached when a window applies, since the window
// slides with the clock
func (c *CachedQueryService) GetGMPHistory(ctx context.Context, ipoID uuid.UUID, days int, source string) ([]models.GMPHistory, error) {
	if days > 0 {
		return c.queries.GetGMPHistory(ctx, ipoID, days, source)
	}
	key := fmt.Sprintf("gmp_history:%s:%s", ipoID, source)
	return cached(ctx, c.cache, key, func() ([]models.GMPHistory, error) {
		return c.queries.GetGMPHistory(ctx, ipoID, 0, source)
	})
}

func (c *CachedQueryService) GetSubscriptionTrends(ctx context.Context, ipoID uuid.UUID, hours int) ([]models.SubscriptionHistory, error) {
	if hours > 0 {
		return c.queries.GetSubscriptionTrends(ctx, ipoID, hours)
	}
	return cached(ctx, c.cache, "subscription_trends:"+ipoID.String(), func() ([]models.SubscriptionHistory, error) {
		return c.queries.GetSubscriptionTrends(ctx, ipoID, 0)
	})
}

// GetIPOByID reads through; the detail embeds windowed history
func (c *CachedQueryService) GetIPOByID(ctx context.Context, ipoID uuid.UUID) (*models.IPODetail, error) {
	return c.queries.GetIPOByID(ctx, ipoID)
}

// GetSystemLogs always reads through; logs are written by failed mutations
// too, which do not invalidate the cache
func (c *CachedQueryService) GetSystemLogs(ctx context.Context, limit int, action string) ([]models.SystemLog, error) {
	return c.queries.GetSystemLogs(ctx, limit, action)
}

func (c *CachedQueryService) GetDashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	return cached(ctx, c.cache, "stats", func() (*models.DashboardStats, error) {
		return c.queries.GetDashboardStats(ctx)
	})
}

func (c *CachedQueryService) GetStatusCounts(ctx context.Context) (*models.StatusCounts, error) {
	return cached(ctx, c.cache, "counts", func() (*models.StatusCounts, error) {
		return c.queries.GetStatusCounts(ctx)
	})
}

// WarmupCache pre-loads the dashboard reads
func (c *CachedQueryService) WarmupCache(ctx context.Context) error {
	if _, err := c.GetDashboardData(ctx); err != nil {
		return fmt.Errorf("failed to warmup dashboard cache: %w", err)
	}
	if _, err := c.GetLiveIPOs(ctx); err != nil {
		return fmt.Errorf("failed to warmup live IPOs cache: %w", err)
	}
	return nil
}
