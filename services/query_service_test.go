package services

import (
	"context"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-dalal/database"
	"github.com/fenilmodi00/ipo-dalal/models"
	"github.com/fenilmodi00/ipo-dalal/shared"
	"github.com/google/uuid"
)

type queryFixture struct {
	store   *database.MemoryStore
	queries *QueryService
	ipos    *IPOService
	gmp     *GMPService
	subs    *SubscriptionService
}

func newQueryFixture(today string) *queryFixture {
	store := database.NewMemoryStore()
	f := &queryFixture{
		store:   store,
		queries: NewQueryService(store, shared.NewDefaultUnifiedConfiguration().History),
		ipos:    NewIPOService(store, nil, time.UTC),
		gmp:     NewGMPService(store, nil, time.UTC),
		subs:    NewSubscriptionService(store, nil),
	}
	clock := fixedClock(today)
	f.queries.SetClock(clock)
	f.ipos.SetClock(clock)
	f.gmp.SetClock(clock)
	f.subs.SetClock(clock)
	return f
}

func (f *queryFixture) addIPO(t *testing.T, name, typ, opening, closing, listing string) uuid.UUID {
	t.Helper()
	input := testInput(name)
	input.Type = typ
	input.OpeningDate = opening
	input.ClosingDate = closing
	input.AllotmentDate = closing
	input.RefundDate = closing
	input.ListingDate = listing
	result, err := f.ipos.CreateOrUpdateIPO(context.Background(), input)
	if err != nil {
		t.Fatalf("failed to add %s: %v", name, err)
	}
	return result.IPOID
}

func TestGetLiveIPOsListsUpcomingThenOpen(t *testing.T) {
	ctx := context.Background()
	f := newQueryFixture("2024-01-03")
	open := f.addIPO(t, "Open Co", models.TypeMainline, "2024-01-01", "2024-01-05", "2024-01-10")
	upcoming := f.addIPO(t, "Upcoming Co", models.TypeNSESME, "2024-02-01", "2024-02-05", "2024-02-10")
	f.addIPO(t, "Listed Co", models.TypeMainline, "2023-12-01", "2023-12-05", "2023-12-10")

	live, err := f.queries.GetLiveIPOs(ctx)
	if err != nil {
		t.Fatalf("GetLiveIPOs failed: %v", err)
	}
	if len(live) != 2 || live[0].ID != upcoming || live[1].ID != open {
		t.Fatalf("unexpected live order %+v", live)
	}
	if live[0].CurrentGMP != nil || live[0].CurrentSubscription != nil {
		t.Errorf("snapshots should be absent before any batch")
	}

	listed, _ := f.queries.GetListedIPOs(ctx)
	if len(listed) != 1 || listed[0].CompanyName != "Listed Co" {
		t.Errorf("unexpected listed IPOs %+v", listed)
	}
}

func TestGetGMPAggregatorDataFilters(t *testing.T) {
	ctx := context.Background()
	f := newQueryFixture("2024-01-03")
	f.addIPO(t, "Main Co", models.TypeMainline, "2024-01-01", "2024-01-05", "2024-01-10")
	f.addIPO(t, "NSE Small", models.TypeNSESME, "2024-01-01", "2024-01-05", "2024-01-10")
	f.addIPO(t, "BSE Small", models.TypeBSESME, "2024-01-01", "2024-01-05", "2024-01-10")

	for filter, want := range map[string]int{"": 3, FilterSME: 2, FilterMainline: 1} {
		rows, err := f.queries.GetGMPAggregatorData(ctx, filter)
		if err != nil {
			t.Fatalf("filter %q failed: %v", filter, err)
		}
		if len(rows) != want {
			t.Errorf("filter %q returned %d rows, want %d", filter, len(rows), want)
		}
	}

	if _, err := f.queries.GetGMPAggregatorData(ctx, "Debt"); !shared.IsValidation(err) {
		t.Errorf("unknown filter should be a validation error, got %v", err)
	}
}

func TestGetIPOByIDAttachesSnapshotsAndHistory(t *testing.T) {
	ctx := context.Background()
	f := newQueryFixture("2024-01-03")
	id := f.addIPO(t, "Detail Co", models.TypeMainline, "2024-01-01", "2024-01-05", "2024-01-10")

	// an observation older than the detail window
	f.gmp.SetClock(fixedClock("2023-12-20"))
	if _, err := f.gmp.InsertGMPBatch(ctx, []models.GMPRecord{{IPOID: id, GMPPercent: 5, PricePerShare: 100}}, "manual", nil); err != nil {
		t.Fatal(err)
	}
	f.gmp.SetClock(fixedClock("2024-01-02"))
	if _, err := f.gmp.InsertGMPBatch(ctx, []models.GMPRecord{{IPOID: id, GMPPercent: 12, PricePerShare: 100}}, "manual", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := f.subs.InsertSubscriptionBatch(ctx, []models.SubscriptionRecord{{IPOID: id, QIBSub: 6}}, "manual"); err != nil {
		t.Fatal(err)
	}

	detail, err := f.queries.GetIPOByID(ctx, id)
	if err != nil {
		t.Fatalf("GetIPOByID failed: %v", err)
	}
	if detail.CurrentGMP == nil || detail.CurrentGMP.GMPPercent != 12 {
		t.Errorf("current GMP = %+v", detail.CurrentGMP)
	}
	if detail.CurrentSubscription == nil || detail.CurrentSubscription.TotalSub != 1 {
		t.Errorf("current subscription = %+v", detail.CurrentSubscription)
	}
	if len(detail.GMPHistory) != 1 || len(detail.SubscriptionHistory) != 1 {
		t.Errorf("recent history = %d gmp, %d subscription", len(detail.GMPHistory), len(detail.SubscriptionHistory))
	}

	all, _ := f.queries.GetGMPHistory(ctx, id, 0, "")
	if len(all) != 2 || !all[0].Timestamp.Before(all[1].Timestamp) {
		t.Errorf("full history should be ascending with two rows: %+v", all)
	}
	none, _ := f.queries.GetGMPHistory(ctx, id, 0, "web_feed")
	if len(none) != 0 {
		t.Errorf("source filter matched %d rows", len(none))
	}

	if _, err := f.queries.GetIPOByID(ctx, uuid.New()); !shared.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestGetDashboardStats(t *testing.T) {
	ctx := context.Background()
	f := newQueryFixture("2024-01-03")
	a := f.addIPO(t, "Open A", models.TypeMainline, "2024-01-01", "2024-01-05", "2024-01-10")
	f.addIPO(t, "Open B", models.TypeMainline, "2024-01-02", "2024-01-06", "2024-01-11")
	f.addIPO(t, "Soon", models.TypeMainline, "2024-02-01", "2024-02-05", "2024-02-10")
	f.addIPO(t, "Done", models.TypeMainline, "2023-12-01", "2023-12-05", "2023-12-10")

	if _, err := f.gmp.InsertGMPBatch(ctx, []models.GMPRecord{{IPOID: a, GMPPercent: 30, PricePerShare: 100}}, "manual", nil); err != nil {
		t.Fatal(err)
	}

	stats, err := f.queries.GetDashboardStats(ctx)
	if err != nil {
		t.Fatalf("GetDashboardStats failed: %v", err)
	}
	want := models.DashboardStats{
		TotalIPOs: 4, UpcomingIPOs: 1, ActiveIPOs: 2, ListedIPOs: 1,
		TotalMarketValue: 4000, AvgGMP: 15,
	}
	if *stats != want {
		t.Errorf("stats = %+v, want %+v", *stats, want)
	}

	counts, _ := f.queries.GetStatusCounts(ctx)
	if counts.All != 4 || counts.Open != 2 || counts.Closed != 0 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestGetSystemLogsDefaultsLimit(t *testing.T) {
	ctx := context.Background()
	f := newQueryFixture("2024-01-03")
	for i := 0; i < 3; i++ {
		f.addIPO(t, "Logged Co", models.TypeMainline, "2024-01-01", "2024-01-05", "2024-01-10")
	}

	logs, err := f.queries.GetSystemLogs(ctx, 0, "")
	if err != nil {
		t.Fatalf("GetSystemLogs failed: %v", err)
	}
	if len(logs) != 3 {
		t.Errorf("logs = %d", len(logs))
	}
	updates, _ := f.queries.GetSystemLogs(ctx, 1, "update_ipo")
	if len(updates) != 1 || updates[0].Action != "update_ipo" {
		t.Errorf("unexpected filtered logs %+v", updates)
	}
}

func TestCachedQueriesInvalidateOnMutation(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	bus := NewEventBus()
	cache := NewCacheService(NewMemoryCache(100), time.Hour)
	bus.Subscribe("cache", cache.OnChange)

	queries := NewCachedQueryService(NewQueryService(store, shared.NewDefaultUnifiedConfiguration().History), cache)
	ipos := NewIPOService(store, bus, time.UTC)
	ipos.SetClock(fixedClock("2024-01-03"))

	first, err := queries.GetDashboardData(ctx)
	if err != nil || len(first) != 0 {
		t.Fatalf("initial dashboard = %v, %v", first, err)
	}
	if _, err := queries.GetDashboardData(ctx); err != nil {
		t.Fatal(err)
	}
	if stats := cache.Stats(ctx); stats.Hits != 1 || stats.Size != 1 {
		t.Errorf("expected a cache hit, got %+v", stats)
	}

	if _, err := ipos.CreateOrUpdateIPO(ctx, testInput("Fresh Co")); err != nil {
		t.Fatal(err)
	}
	if stats := cache.Stats(ctx); stats.Size != 0 {
		t.Errorf("mutation did not invalidate the cache: %+v", stats)
	}

	after, _ := queries.GetDashboardData(ctx)
	if len(after) != 1 || after[0].CompanyName != "Fresh Co" {
		t.Errorf("stale dashboard after mutation: %+v", after)
	}

	if err := queries.WarmupCache(ctx); err != nil {
		t.Errorf("WarmupCache failed: %v", err)
	}
}

func TestCachedIPODetailFollowsHistoryWindow(t *testing.T) {
	ctx := context.Background()
	f := newQueryFixture("2024-01-03")
	id := f.addIPO(t, "Window Co", models.TypeMainline, "2024-01-01", "2024-01-05", "2024-01-10")
	if _, err := f.gmp.InsertGMPBatch(ctx, []models.GMPRecord{{IPOID: id, GMPPercent: 8, PricePerShare: 100}}, "manual", nil); err != nil {
		t.Fatal(err)
	}

	queries := NewCachedQueryService(f.queries, NewCacheService(NewMemoryCache(100), time.Hour))
	detail, err := queries.GetIPOByID(ctx, id)
	if err != nil {
		t.Fatalf("GetIPOByID failed: %v", err)
	}
	if len(detail.GMPHistory) != 1 {
		t.Fatalf("recent gmp history = %d rows", len(detail.GMPHistory))
	}

	// no mutation happens, only the clock moves past the window
	f.queries.SetClock(fixedClock("2024-01-20"))
	detail, err = queries.GetIPOByID(ctx, id)
	if err != nil {
		t.Fatalf("GetIPOByID failed: %v", err)
	}
	if len(detail.GMPHistory) != 0 {
		t.Errorf("detail kept %d rows outside the window", len(detail.GMPHistory))
	}
}

func TestCachedDropsResultLoadedAcrossInvalidation(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheService(NewMemoryCache(10), time.Hour)

	loads := 0
	value, err := cached(ctx, cache, "counts", func() (int, error) {
		loads++
		// a mutation commits while the read is in flight
		cache.InvalidateAll(ctx)
		return 1, nil
	})
	if err != nil || value != 1 {
		t.Fatalf("cached = %d, %v", value, err)
	}
	if stats := cache.Stats(ctx); stats.Size != 0 {
		t.Errorf("stale result stored after invalidation: %+v", stats)
	}

	load := func() (int, error) {
		loads++
		return 2, nil
	}
	for i := 0; i < 2; i++ {
		if value, err = cached(ctx, cache, "counts", load); err != nil || value != 2 {
			t.Fatalf("cached = %d, %v", value, err)
		}
	}
	if loads != 2 {
		t.Errorf("expected the second read to hit the cache, loads = %d", loads)
	}

	generation := cache.Generation()
	cache.InvalidateAll(ctx)
	if cache.SetJSONIfCurrent(ctx, "counts", 3, generation) {
		t.Error("store against an old generation succeeded")
	}
}
