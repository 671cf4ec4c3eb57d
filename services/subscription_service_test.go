package services

import (
	"context"
	"math"
	"testing"

	"github.com/fenilmodi00/ipo-dalal/database"
	"github.com/fenilmodi00/ipo-dalal/models"
	"github.com/fenilmodi00/ipo-dalal/shared"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestInsertSubscriptionBatchTotalIsMean(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 40
	properties := gopter.NewProperties(parameters)

	multiple := gen.Float64Range(0, 500)

	properties.Property("total_sub is the mean of the six categories", prop.ForAll(
		func(qib, bhni, shni, retail, emp, sh float64) bool {
			ctx := context.Background()
			store := database.NewMemoryStore()
			ipo := seedTestIPO(t, store, "Mean Co")
			svc := NewSubscriptionService(store, nil)

			_, err := svc.InsertSubscriptionBatch(ctx, []models.SubscriptionRecord{{
				IPOID: ipo.ID, QIBSub: qib, BHNISub: bhni, SHNISub: shni,
				RetailSub: retail, EmpSub: emp, SHSub: sh,
			}}, "manual")
			if err != nil {
				return false
			}

			want := (qib + bhni + shni + retail + emp + sh) / 6
			current, _ := store.GetCurrentSubscription(ctx, ipo.ID)
			history, _ := store.ListSubscriptionHistory(ctx, ipo.ID)
			return current != nil && len(history) == 1 &&
				math.Abs(current.TotalSub-want) < 1e-6 &&
				history[0].TotalSub == current.TotalSub
		},
		multiple, multiple, multiple, multiple, multiple, multiple,
	))

	properties.TestingRun(t)
}

func TestInsertSubscriptionBatchScenario(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	ipo := seedTestIPO(t, store, "Scenario Co")
	svc := NewSubscriptionService(store, nil)
	svc.SetClock(fixedClock("2024-01-04"))

	bid := 12500.5
	apps := int64(1850000)
	result, err := svc.InsertSubscriptionBatch(ctx, []models.SubscriptionRecord{{
		IPOID: ipo.ID, QIBSub: 6, BHNISub: 3, SHNISub: 3, RetailSub: 2, EmpSub: 0, SHSub: 4,
		TotalAmountApplied: 9800, TotalBidAmount: &bid, TotalApplications: &apps,
	}}, "NSE")
	if err != nil {
		t.Fatalf("InsertSubscriptionBatch failed: %v", err)
	}
	if result.InsertedCount != 1 {
		t.Errorf("inserted = %d", result.InsertedCount)
	}

	current, _ := store.GetCurrentSubscription(ctx, ipo.ID)
	if current.TotalSub != 3 {
		t.Errorf("total_sub = %v, want 3", current.TotalSub)
	}
	if *current.TotalApplications != apps || *current.TotalBidAmount != bid {
		t.Errorf("optional totals not stored: %+v", current)
	}

	logs, _ := store.ListSystemLogs(ctx, 10, "insert_subscription_batch")
	if len(logs) != 1 || logs[0].Details.BatchID != result.BatchID || logs[0].EntityType != "subscription" {
		t.Errorf("unexpected batch log %+v", logs)
	}
}

func TestInsertSubscriptionBatchRejectsNegative(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	ipo := seedTestIPO(t, store, "Negative Co")
	svc := NewSubscriptionService(store, nil)

	_, err := svc.InsertSubscriptionBatch(ctx, []models.SubscriptionRecord{
		{IPOID: ipo.ID, QIBSub: 1, RetailSub: 1},
		{IPOID: ipo.ID, QIBSub: 1, RetailSub: -0.5},
	}, "manual")
	if !shared.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	history, _ := store.ListSubscriptionHistory(ctx, ipo.ID)
	current, _ := store.GetCurrentSubscription(ctx, ipo.ID)
	if len(history) != 0 || current != nil {
		t.Errorf("rejected batch left rows behind")
	}
	logs, _ := store.ListSystemLogs(ctx, 10, "insert_subscription_batch_error")
	if len(logs) != 1 {
		t.Errorf("expected a failure log, got %d", len(logs))
	}
}
