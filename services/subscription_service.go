package services

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/fenilmodi00/ipo-dalal/database"
	"github.com/fenilmodi00/ipo-dalal/models"
	"github.com/fenilmodi00/ipo-dalal/shared"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const subscriptionServiceName = "Subscription_Service"

// SubscriptionService ingests batches of subscription observations
type SubscriptionService struct {
	store   database.Store
	events  *EventBus
	utility *UtilityService
	now     func() time.Time
	metrics *shared.ServiceMetrics

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewSubscriptionService(store database.Store, events *EventBus) *SubscriptionService {
	return &SubscriptionService{
		store:   store,
		events:  events,
		utility: NewUtilityService(),
		now:     time.Now,
		metrics: shared.NewServiceMetrics(subscriptionServiceName),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetClock replaces the time source, used by tests
func (s *SubscriptionService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *SubscriptionService) GetServiceMetrics() *shared.ServiceMetrics {
	return s.metrics
}

func validateSubscriptionRecord(record models.SubscriptionRecord) error {
	for _, v := range record.Categories() {
		if v < 0 {
			return shared.NewValidationError("INVALID_SUBSCRIPTION_DATA",
				fmt.Sprintf("Invalid subscription data for IPO %s", record.IPOID),
				subscriptionServiceName, "InsertSubscriptionBatch")
		}
	}
	return shared.ValidateStruct(record, subscriptionServiceName, "InsertSubscriptionBatch")
}

// InsertSubscriptionBatch stores records under one batch id. total_sub is
// the mean of the six category multiples.
func (s *SubscriptionService) InsertSubscriptionBatch(ctx context.Context, records []models.SubscriptionRecord, source string) (*models.BatchResult, error) {
	start := time.Now()
	now := s.now()

	s.rngMu.Lock()
	batchID := s.utility.GenerateBatchID(source, now, s.rng)
	s.rngMu.Unlock()

	var insertedIDs []uuid.UUID
	err := s.store.RunInTx(ctx, func(tx database.Store) error {
		if err := validateBatch(len(records), source, subscriptionServiceName, "InsertSubscriptionBatch"); err != nil {
			return err
		}
		insertedIDs = make([]uuid.UUID, 0, len(records))

		for _, record := range records {
			if err := validateSubscriptionRecord(record); err != nil {
				return err
			}

			ipo, err := tx.GetIPO(ctx, record.IPOID)
			if err != nil {
				return err
			}
			if ipo == nil {
				return shared.NewNotFoundError("IPO_NOT_FOUND", fmt.Sprintf("IPO %s not found", record.IPOID),
					subscriptionServiceName, "InsertSubscriptionBatch")
			}

			totalSub := s.utility.Mean(record.Categories())

			history := &models.SubscriptionHistory{
				ID:                 uuid.New(),
				IPOID:              record.IPOID,
				QIBSub:             record.QIBSub,
				BHNISub:            record.BHNISub,
				SHNISub:            record.SHNISub,
				RetailSub:          record.RetailSub,
				EmpSub:             record.EmpSub,
				SHSub:              record.SHSub,
				TotalSub:           totalSub,
				TotalAmountApplied: record.TotalAmountApplied,
				TotalBidAmount:     record.TotalBidAmount,
				TotalApplications:  record.TotalApplications,
				Timestamp:          now,
				Source:             source,
				ScrapeBatchID:      batchID,
			}
			if err := tx.InsertSubscriptionHistory(ctx, history); err != nil {
				return err
			}
			insertedIDs = append(insertedIDs, history.ID)

			if _, err := tx.SaveCurrentSubscription(ctx, &models.CurrentSubscription{
				IPOID:              record.IPOID,
				QIBSub:             record.QIBSub,
				BHNISub:            record.BHNISub,
				SHNISub:            record.SHNISub,
				RetailSub:          record.RetailSub,
				EmpSub:             record.EmpSub,
				SHSub:              record.SHSub,
				TotalSub:           totalSub,
				TotalAmountApplied: record.TotalAmountApplied,
				TotalBidAmount:     record.TotalBidAmount,
				TotalApplications:  record.TotalApplications,
				Source:             source,
				LastUpdated:        now,
			}); err != nil {
				return err
			}
		}

		return recordLog(ctx, tx, newSystemLog("insert_subscription_batch", "subscription", nil, models.LogDetails{
			Source:   source,
			BatchID:  batchID,
			Metadata: map[string]interface{}{"records_count": len(records)},
		}, now))
	})

	s.metrics.RecordRequest("InsertSubscriptionBatch", err == nil, time.Since(start))
	if err != nil {
		err = shared.WrapError(err, shared.ErrorCategoryDatabase, "BATCH_FAILED", subscriptionServiceName,
			"InsertSubscriptionBatch", shared.IsRetryableError(err))
		recordFailure(ctx, s.store, newSystemLog("insert_subscription_batch_error", "subscription", nil, models.LogDetails{
			Source:  source,
			BatchID: batchID,
		}, now), err)
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"component": "subscription_service",
		"batch_id":  batchID,
		"records":   len(insertedIDs),
	}).Info("Subscription batch inserted")
	s.events.Publish(ctx, "insert_subscription_batch", "subscription")

	return &models.BatchResult{
		Success:       true,
		BatchID:       batchID,
		InsertedCount: len(insertedIDs),
		InsertedIDs:   insertedIDs,
	}, nil
}
