package services

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-dalal/database"
	"github.com/fenilmodi00/ipo-dalal/models"
	"github.com/fenilmodi00/ipo-dalal/shared"
)

func newSeedTestService(store database.Store, seed int64) *SeedService {
	svc := NewSeedService(store, nil, time.UTC, rand.New(rand.NewSource(seed)))
	svc.SetClock(fixedClock("2024-11-08"))
	return svc
}

func TestSeedIPOs(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	svc := newSeedTestService(store, 1)

	result, err := svc.SeedIPOs(ctx)
	if err != nil {
		t.Fatalf("SeedIPOs failed: %v", err)
	}
	if !result.Success || result.IPOsInserted != 7 {
		t.Fatalf("unexpected result %+v", result)
	}

	ipos, _ := store.ListIPOs(ctx, database.IPOFilter{})
	if len(ipos) != 7 {
		t.Fatalf("ipos = %d, want 7", len(ipos))
	}

	byName := map[string]models.IPO{}
	for _, ipo := range ipos {
		byName[ipo.CompanyName] = ipo
		if ipo.CreatedBy != "seed" || ipo.StatusAuto {
			t.Errorf("%s: created_by=%s status_auto=%v", ipo.CompanyName, ipo.CreatedBy, ipo.StatusAuto)
		}
		current, _ := store.GetCurrentGMP(ctx, ipo.ID)
		sub, _ := store.GetCurrentSubscription(ctx, ipo.ID)
		if current == nil || sub == nil {
			t.Errorf("%s: missing current snapshots", ipo.CompanyName)
		}
	}

	swiggy := byName["Swiggy Limited"]
	gmp, _ := store.GetCurrentGMP(ctx, swiggy.ID)
	if gmp.EstListingPrice != 423 || gmp.EstRetailProfit != 429 {
		t.Errorf("swiggy estimates = %v / %v", gmp.EstListingPrice, gmp.EstRetailProfit)
	}
	if gmp.EstSHNIProfit == nil || *gmp.EstSHNIProfit != 858 {
		t.Errorf("swiggy est shni = %v", gmp.EstSHNIProfit)
	}

	hyundai := byName["Hyundai Motor India"]
	hgmp, _ := store.GetCurrentGMP(ctx, hyundai.ID)
	if hgmp.EstSHNIProfit != nil || hgmp.SHNISaudaRates != nil {
		t.Errorf("hyundai shni values should be absent: %+v", hgmp)
	}
	if hyundai.ListingPrice == nil {
		t.Errorf("listed seed IPO lost its listing price")
	}

	// seeding twice replaces rather than duplicates
	if _, err := svc.SeedIPOs(ctx); err != nil {
		t.Fatalf("second SeedIPOs failed: %v", err)
	}
	ipos, _ = store.ListIPOs(ctx, database.IPOFilter{})
	if len(ipos) != 7 {
		t.Errorf("ipos after reseed = %d", len(ipos))
	}
}

func TestSeedHistoryRequiresIPOs(t *testing.T) {
	svc := newSeedTestService(database.NewMemoryStore(), 1)

	_, err := svc.SeedGMPHistory(context.Background())
	if !shared.IsNotFound(err) || !strings.Contains(err.Error(), "Please seed IPOs first") {
		t.Errorf("expected NO_IPOS, got %v", err)
	}
	_, err = svc.SeedSubscriptionHistory(context.Background())
	if !shared.IsNotFound(err) {
		t.Errorf("expected NO_IPOS, got %v", err)
	}
}

func TestSeedGMPHistory(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	svc := newSeedTestService(store, 7)
	if _, err := svc.SeedIPOs(ctx); err != nil {
		t.Fatalf("SeedIPOs failed: %v", err)
	}

	result, err := svc.SeedGMPHistory(ctx)
	if err != nil {
		t.Fatalf("SeedGMPHistory failed: %v", err)
	}
	if result.RecordsInserted != 56 || result.Message != "Seeded 56 GMP history records" {
		t.Errorf("unexpected result %+v", result)
	}

	ipos, _ := store.ListIPOs(ctx, database.IPOFilter{})
	for _, ipo := range ipos {
		history, _ := store.ListGMPHistory(ctx, ipo.ID)
		if len(history) != 8 {
			t.Errorf("%s: history rows = %d, want 8", ipo.CompanyName, len(history))
			continue
		}
		if history[0].Date != "2024-11-01" || history[7].Date != "2024-11-08" {
			t.Errorf("%s: dates %s..%s", ipo.CompanyName, history[0].Date, history[7].Date)
		}
		for _, h := range history {
			if h.GMPPercent < models.MinGMPPercent || h.GMPPercent > models.MaxGMPPercent {
				t.Errorf("%s: percentage %v out of range", ipo.CompanyName, h.GMPPercent)
			}
			if !strings.HasPrefix(h.ScrapeBatchID, "seed_gmp_history_") {
				t.Errorf("unexpected batch id %s", h.ScrapeBatchID)
			}
		}
	}

	logs, _ := store.ListSystemLogs(ctx, 10, "seed_gmp_history")
	if len(logs) != 1 || logs[0].Details.Metadata["days_of_history"] != 7 {
		t.Errorf("unexpected seed log %+v", logs)
	}
}

func TestSeedGMPHistoryIsDeterministicForASeed(t *testing.T) {
	ctx := context.Background()
	percentages := func() []float64 {
		store := database.NewMemoryStore()
		svc := newSeedTestService(store, 42)
		if _, err := svc.SeedIPOs(ctx); err != nil {
			t.Fatalf("SeedIPOs failed: %v", err)
		}
		if _, err := svc.SeedGMPHistory(ctx); err != nil {
			t.Fatalf("SeedGMPHistory failed: %v", err)
		}
		ipo, _ := store.GetIPOByCompany(ctx, "Swiggy Limited")
		history, _ := store.ListGMPHistory(ctx, ipo.ID)
		values := make([]float64, len(history))
		for i, h := range history {
			values[i] = h.GMPPercent
		}
		return values
	}

	first, second := percentages(), percentages()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("day %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestSeedSubscriptionHistory(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	svc := newSeedTestService(store, 1)
	if _, err := svc.SeedIPOs(ctx); err != nil {
		t.Fatalf("SeedIPOs failed: %v", err)
	}

	result, err := svc.SeedSubscriptionHistory(ctx)
	if err != nil {
		t.Fatalf("SeedSubscriptionHistory failed: %v", err)
	}
	if result.RecordsInserted != 28 {
		t.Errorf("records = %d, want 28", result.RecordsInserted)
	}

	ipo, _ := store.GetIPOByCompany(ctx, "Swiggy Limited")
	current, _ := store.GetCurrentSubscription(ctx, ipo.ID)
	history, _ := store.ListSubscriptionHistory(ctx, ipo.ID)
	if len(history) != 4 {
		t.Fatalf("history rows = %d", len(history))
	}
	if history[3].TotalSub != current.TotalSub {
		t.Errorf("latest row should match the snapshot: %v vs %v", history[3].TotalSub, current.TotalSub)
	}
	if history[0].TotalSub >= history[3].TotalSub {
		t.Errorf("history should build up: %v then %v", history[0].TotalSub, history[3].TotalSub)
	}
	if *history[0].TotalApplications != 250000 {
		t.Errorf("earliest applications = %d, want 250000", *history[0].TotalApplications)
	}
}

func TestClearAllAndSeedAll(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	svc := newSeedTestService(store, 3)

	all, err := svc.SeedAll(ctx)
	if err != nil {
		t.Fatalf("SeedAll failed: %v", err)
	}
	if all.Results["ipos"].IPOsInserted != 7 ||
		all.Results["gmp_history"].RecordsInserted != 56 ||
		all.Results["subscription_history"].RecordsInserted != 28 {
		t.Errorf("unexpected seed results %+v", all.Results)
	}

	ipo, _ := store.GetIPOByCompany(ctx, "Kross Limited")
	cleared, err := svc.ClearAllData(ctx)
	if err != nil || cleared.Message != "All data cleared successfully" {
		t.Fatalf("ClearAllData = %+v, %v", cleared, err)
	}

	ipos, _ := store.ListIPOs(ctx, database.IPOFilter{})
	gmpHistory, _ := store.ListGMPHistory(ctx, ipo.ID)
	subHistory, _ := store.ListSubscriptionHistory(ctx, ipo.ID)
	current, _ := store.GetCurrentGMP(ctx, ipo.ID)
	if len(ipos) != 0 || len(gmpHistory) != 0 || len(subHistory) != 0 || current != nil {
		t.Errorf("data left after clear")
	}

	logs, _ := store.ListSystemLogs(ctx, 0, "")
	if len(logs) == 0 {
		t.Errorf("system logs should survive a clear")
	}
}
