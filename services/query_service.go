package services

import (
	"context"
	"fmt"
	"time"

	"github.com/fenilmodi00/ipo-dalal/database"
	"github.com/fenilmodi00/ipo-dalal/models"
	"github.com/fenilmodi00/ipo-dalal/shared"
	"github.com/google/uuid"
)

// GMP aggregator filters
const (
	FilterSME      = "SME"
	FilterMainline = "Mainline"
)

// Queries is the read surface served to handlers. QueryService and
// CachedQueryService both implement it.
type Queries interface {
	GetDashboardData(ctx context.Context) ([]models.EnrichedIPO, error)
	GetLiveIPOs(ctx context.Context) ([]models.EnrichedIPO, error)
	GetListedIPOs(ctx context.Context) ([]models.EnrichedIPO, error)
	GetGMPAggregatorData(ctx context.Context, filter string) ([]models.EnrichedIPO, error)
	GetSubscriptionAggregatorData(ctx context.Context) ([]models.EnrichedIPO, error)
	GetGMPHistory(ctx context.Context, ipoID uuid.UUID, days int, source string) ([]models.GMPHistory, error)
	GetSubscriptionTrends(ctx context.Context, ipoID uuid.UUID, hours int) ([]models.SubscriptionHistory, error)
	GetIPOByID(ctx context.Context, ipoID uuid.UUID) (*models.IPODetail, error)
	GetSystemLogs(ctx context.Context, limit int, action string) ([]models.SystemLog, error)
	GetDashboardStats(ctx context.Context) (*models.DashboardStats, error)
	GetStatusCounts(ctx context.Context) (*models.StatusCounts, error)
}

// QueryService reads IPOs and enriches them with their current snapshots
type QueryService struct {
	store   database.Store
	history shared.HistoryConfig
	utility *UtilityService
	now     func() time.Time
	metrics *shared.ServiceMetrics
}

func NewQueryService(store database.Store, history shared.HistoryConfig) *QueryService {
	return &QueryService{
		store:   store,
		history: history,
		utility: NewUtilityService(),
		now:     time.Now,
		metrics: shared.NewServiceMetrics("Query_Service"),
	}
}

// SetClock replaces the time source used for history windows
func (s *QueryService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *QueryService) GetServiceMetrics() *shared.ServiceMetrics {
	return s.metrics
}

type enrichment struct {
	gmp          bool
	subscription bool
}

var (
	enrichBoth = enrichment{gmp: true, subscription: true}
	enrichGMP  = enrichment{gmp: true}
)

func (s *QueryService) enrich(ctx context.Context, ipos []models.IPO, with enrichment) ([]models.EnrichedIPO, error) {
	enriched := make([]models.EnrichedIPO, 0, len(ipos))
	for _, ipo := range ipos {
		e := models.EnrichedIPO{IPO: ipo}
		if with.gmp {
			gmp, err := s.store.GetCurrentGMP(ctx, ipo.ID)
			if err != nil {
				return nil, err
			}
			e.CurrentGMP = gmp
		}
		if with.subscription {
			sub, err := s.store.GetCurrentSubscription(ctx, ipo.ID)
			if err != nil {
				return nil, err
			}
			e.CurrentSubscription = sub
		}
		enriched = append(enriched, e)
	}
	return enriched, nil
}

func (s *QueryService) listEnriched(ctx context.Context, operation string, filter database.IPOFilter, with enrichment) ([]models.EnrichedIPO, error) {
	var result []models.EnrichedIPO
	err := s.metrics.Track(operation, func() error {
		ipos, err := s.store.ListIPOs(ctx, filter)
		if err != nil {
			return err
		}
		result, err = s.enrich(ctx, ipos, with)
		return err
	})
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "QUERY_FAILED", "Query_Service", operation, true)
	}
	return result, nil
}

// GetDashboardData returns every IPO with both current snapshots
func (s *QueryService) GetDashboardData(ctx context.Context) ([]models.EnrichedIPO, error) {
	return s.listEnriched(ctx, "GetDashboardData", database.IPOFilter{}, enrichBoth)
}

// GetLiveIPOs returns upcoming IPOs followed by open ones
func (s *QueryService) GetLiveIPOs(ctx context.Context) ([]models.EnrichedIPO, error) {
	upcoming, err := s.listEnriched(ctx, "GetLiveIPOs", database.IPOFilter{Statuses: []string{models.StatusUpcoming}}, enrichBoth)
	if err != nil {
		return nil, err
	}
	open, err := s.listEnriched(ctx, "GetLiveIPOs", database.IPOFilter{Statuses: []string{models.StatusOpen}}, enrichBoth)
	if err != nil {
		return nil, err
	}
	return append(upcoming, open...), nil
}

// GetListedIPOs returns listed IPOs with their last GMP for comparison
func (s *QueryService) GetListedIPOs(ctx context.Context) ([]models.EnrichedIPO, error) {
	return s.listEnriched(ctx, "GetListedIPOs", database.IPOFilter{Statuses: []string{models.StatusListed}}, enrichGMP)
}

// GetGMPAggregatorData filters by board. SME covers both SME exchanges.
func (s *QueryService) GetGMPAggregatorData(ctx context.Context, filter string) ([]models.EnrichedIPO, error) {
	var ipoFilter database.IPOFilter
	switch filter {
	case "":
	case FilterSME:
		ipoFilter.Types = []string{models.TypeBSESME, models.TypeNSESME}
	case FilterMainline:
		ipoFilter.Types = []string{models.TypeMainline}
	default:
		return nil, shared.NewValidationError("INVALID_FILTER",
			fmt.Sprintf("unknown filter %q, expected SME or Mainline", filter), "Query_Service", "GetGMPAggregatorData")
	}
	return s.listEnriched(ctx, "GetGMPAggregatorData", ipoFilter, enrichBoth)
}

func (s *QueryService) GetSubscriptionAggregatorData(ctx context.Context) ([]models.EnrichedIPO, error) {
	return s.listEnriched(ctx, "GetSubscriptionAggregatorData", database.IPOFilter{}, enrichBoth)
}

// GetGMPHistory returns observations ascending by time. days <= 0 means no
// window and an empty source matches every source.
func (s *QueryService) GetGMPHistory(ctx context.Context, ipoID uuid.UUID, days int, source string) ([]models.GMPHistory, error) {
	var cutoff time.Time
	if days > 0 {
		cutoff = s.now().Add(-time.Duration(days) * 24 * time.Hour)
	}

	var result []models.GMPHistory
	err := s.metrics.Track("GetGMPHistory", func() error {
		history, err := s.store.ListGMPHistory(ctx, ipoID)
		if err != nil {
			return err
		}
		result = filterGMPHistory(history, cutoff, source)
		return nil
	})
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "QUERY_FAILED", "Query_Service", "GetGMPHistory", true)
	}
	return result, nil
}

func filterGMPHistory(history []models.GMPHistory, cutoff time.Time, source string) []models.GMPHistory {
	filtered := make([]models.GMPHistory, 0, len(history))
	for _, h := range history {
		if source != "" && h.Source != source {
			continue
		}
		if !cutoff.IsZero() && h.Timestamp.Before(cutoff) {
			continue
		}
		filtered = append(filtered, h)
	}
	return filtered
}

func filterSubscriptionHistory(history []models.SubscriptionHistory, cutoff time.Time) []models.SubscriptionHistory {
	filtered := make([]models.SubscriptionHistory, 0, len(history))
	for _, h := range history {
		if !cutoff.IsZero() && h.Timestamp.Before(cutoff) {
			continue
		}
		filtered = append(filtered, h)
	}
	return filtered
}

// GetSubscriptionTrends returns observations ascending by time within the
// last hours, or all of them when hours <= 0
func (s *QueryService) GetSubscriptionTrends(ctx context.Context, ipoID uuid.UUID, hours int) ([]models.SubscriptionHistory, error) {
	var cutoff time.Time
	if hours > 0 {
		cutoff = s.now().Add(-time.Duration(hours) * time.Hour)
	}

	var result []models.SubscriptionHistory
	err := s.metrics.Track("GetSubscriptionTrends", func() error {
		history, err := s.store.ListSubscriptionHistory(ctx, ipoID)
		if err != nil {
			return err
		}
		result = filterSubscriptionHistory(history, cutoff)
		return nil
	})
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "QUERY_FAILED", "Query_Service", "GetSubscriptionTrends", true)
	}
	return result, nil
}

// GetIPOByID returns one IPO with both snapshots and its recent history
func (s *QueryService) GetIPOByID(ctx context.Context, ipoID uuid.UUID) (*models.IPODetail, error) {
	ipo, err := s.store.GetIPO(ctx, ipoID)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "QUERY_FAILED", "Query_Service", "GetIPOByID", true)
	}
	if ipo == nil {
		return nil, shared.NewNotFoundError("IPO_NOT_FOUND", fmt.Sprintf("IPO %s not found", ipoID), "Query_Service", "GetIPOByID")
	}

	enriched, err := s.enrich(ctx, []models.IPO{*ipo}, enrichBoth)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "QUERY_FAILED", "Query_Service", "GetIPOByID", true)
	}

	gmpHistory, err := s.GetGMPHistory(ctx, ipoID, s.history.DetailGMPDays, "")
	if err != nil {
		return nil, err
	}
	subHistory, err := s.GetSubscriptionTrends(ctx, ipoID, s.history.DetailSubscriptionHours)
	if err != nil {
		return nil, err
	}

	return &models.IPODetail{
		EnrichedIPO:         enriched[0],
		GMPHistory:          gmpHistory,
		SubscriptionHistory: subHistory,
	}, nil
}

// GetSystemLogs returns the newest audit rows first
func (s *QueryService) GetSystemLogs(ctx context.Context, limit int, action string) ([]models.SystemLog, error) {
	if limit <= 0 {
		limit = s.history.DefaultLogLimit
	}
	logs, err := s.store.ListSystemLogs(ctx, limit, action)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "QUERY_FAILED", "Query_Service", "GetSystemLogs", true)
	}
	return logs, nil
}

// GetDashboardStats counts IPOs per status and averages the current GMP of
// open IPOs, counting a missing snapshot as zero
func (s *QueryService) GetDashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}
	err := s.metrics.Track("GetDashboardStats", func() error {
		ipos, err := s.store.ListIPOs(ctx, database.IPOFilter{})
		if err != nil {
			return err
		}

		var sizes, openGMPs []float64
		stats.TotalIPOs = len(ipos)
		for _, ipo := range ipos {
			sizes = append(sizes, ipo.IPOSizeCr)
			switch ipo.Status {
			case models.StatusUpcoming:
				stats.UpcomingIPOs++
			case models.StatusOpen:
				stats.ActiveIPOs++
				gmp, err := s.store.GetCurrentGMP(ctx, ipo.ID)
				if err != nil {
					return err
				}
				if gmp != nil {
					openGMPs = append(openGMPs, gmp.GMPPercent)
				} else {
					openGMPs = append(openGMPs, 0)
				}
			case models.StatusListed:
				stats.ListedIPOs++
			case models.StatusClosed:
				stats.ClosedIPOs++
			}
		}

		stats.TotalMarketValue = sum(sizes)
		stats.AvgGMP = s.utility.Mean(openGMPs)
		return nil
	})
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "QUERY_FAILED", "Query_Service", "GetDashboardStats", true)
	}
	return stats, nil
}

// GetStatusCounts backs the status tabs of the dashboard
func (s *QueryService) GetStatusCounts(ctx context.Context) (*models.StatusCounts, error) {
	ipos, err := s.store.ListIPOs(ctx, database.IPOFilter{})
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "QUERY_FAILED", "Query_Service", "GetStatusCounts", true)
	}

	counts := &models.StatusCounts{All: len(ipos)}
	for _, ipo := range ipos {
		switch ipo.Status {
		case models.StatusUpcoming:
			counts.Upcoming++
		case models.StatusOpen:
			counts.Open++
		case models.StatusClosed:
			counts.Closed++
		case models.StatusListed:
			counts.Listed++
		}
	}
	return counts, nil
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}
