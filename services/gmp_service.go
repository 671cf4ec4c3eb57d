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

const gmpServiceName = "GMP_Service"

// GMPService ingests batches of GMP observations. Every batch appends
// history rows and overwrites each IPO's current GMP in one transaction.
type GMPService struct {
	store    database.Store
	events   *EventBus
	utility  *UtilityService
	location *time.Location
	now      func() time.Time
	metrics  *shared.ServiceMetrics

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewGMPService(store database.Store, events *EventBus, loc *time.Location) *GMPService {
	if loc == nil {
		loc = time.UTC
	}
	return &GMPService{
		store:    store,
		events:   events,
		utility:  NewUtilityService(),
		location: loc,
		now:      time.Now,
		metrics:  shared.NewServiceMetrics(gmpServiceName),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetClock replaces the time source, used by tests
func (s *GMPService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *GMPService) GetServiceMetrics() *shared.ServiceMetrics {
	return s.metrics
}

func (s *GMPService) batchID(source string, now time.Time) string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.utility.GenerateBatchID(source, now, s.rng)
}

// validateGMPRecord enforces the accepted GMP range and the record's tags
func validateGMPRecord(record models.GMPRecord, operation string) error {
	if record.GMPPercent < models.MinGMPPercent || record.GMPPercent > models.MaxGMPPercent {
		return shared.NewValidationError("INVALID_GMP_DATA",
			fmt.Sprintf("Invalid GMP data for IPO %s", record.IPOID), gmpServiceName, operation).
			WithDetails(map[string]interface{}{
				"gmp_percent": record.GMPPercent,
				"min":         models.MinGMPPercent,
				"max":         models.MaxGMPPercent,
			})
	}
	return shared.ValidateStruct(record, gmpServiceName, operation)
}

// InsertGMPBatch stores records under one batch id. Any invalid record
// rejects the whole batch and nothing is committed.
func (s *GMPService) InsertGMPBatch(ctx context.Context, records []models.GMPRecord, source string, metadata *models.BatchMetadata) (*models.BatchResult, error) {
	start := time.Now()
	now := s.now()
	batchID := s.batchID(source, now)
	date := s.utility.Today(now, s.location)

	logger := logrus.WithFields(logrus.Fields{
		"component": "gmp_service",
		"batch_id":  batchID,
		"source":    source,
		"records":   len(records),
	})

	var insertedIDs []uuid.UUID
	err := s.store.RunInTx(ctx, func(tx database.Store) error {
		if err := validateBatch(len(records), source, gmpServiceName, "InsertGMPBatch"); err != nil {
			return err
		}
		insertedIDs = make([]uuid.UUID, 0, len(records))

		for _, record := range records {
			if err := validateGMPRecord(record, "InsertGMPBatch"); err != nil {
				return err
			}

			ipo, err := tx.GetIPO(ctx, record.IPOID)
			if err != nil {
				return err
			}
			if ipo == nil {
				return shared.NewNotFoundError("IPO_NOT_FOUND", fmt.Sprintf("IPO %s not found", record.IPOID),
					gmpServiceName, "InsertGMPBatch")
			}

			gmpPrice := s.utility.PremiumFromPercent(record.GMPPercent, record.PricePerShare)

			history := &models.GMPHistory{
				ID:               uuid.New(),
				IPOID:            record.IPOID,
				GMPPercent:       record.GMPPercent,
				GMPPrice:         gmpPrice,
				KostakRates:      record.KostakRates,
				RetailSaudaRates: record.RetailSaudaRates,
				SHNISaudaRates:   record.SHNISaudaRates,
				Timestamp:        now,
				Date:             date,
				Source:           source,
				ScrapeBatchID:    batchID,
			}
			if err := tx.InsertGMPHistory(ctx, history); err != nil {
				return err
			}
			insertedIDs = append(insertedIDs, history.ID)

			current := &models.CurrentGMP{
				IPOID:            record.IPOID,
				GMPPercent:       record.GMPPercent,
				GMPPrice:         gmpPrice,
				KostakRates:      record.KostakRates,
				RetailSaudaRates: record.RetailSaudaRates,
				SHNISaudaRates:   record.SHNISaudaRates,
				EstListingPrice:  s.utility.Add(record.PricePerShare, gmpPrice),
				EstRetailProfit:  gmpPrice,
				DataFreshness:    0,
				Source:           source,
				LastUpdated:      now,
			}
			if record.SHNISaudaRates != nil && *record.SHNISaudaRates != 0 {
				shniProfit := gmpPrice
				current.EstSHNIProfit = &shniProfit
			}
			if _, err := tx.SaveCurrentGMP(ctx, current); err != nil {
				return err
			}
		}

		meta := map[string]interface{}{"records_count": len(records)}
		if metadata != nil {
			if metadata.ScraperVersion != "" {
				meta["scraper_version"] = metadata.ScraperVersion
			}
			if metadata.ScrapeDurationMs != 0 {
				meta["scrape_duration_ms"] = metadata.ScrapeDurationMs
			}
		}
		return recordLog(ctx, tx, newSystemLog("insert_gmp_batch", "gmp", nil, models.LogDetails{
			Source:   source,
			BatchID:  batchID,
			Metadata: meta,
		}, now))
	})

	s.metrics.RecordRequest("InsertGMPBatch", err == nil, time.Since(start))
	if err != nil {
		err = shared.WrapError(err, shared.ErrorCategoryDatabase, "BATCH_FAILED", gmpServiceName, "InsertGMPBatch", shared.IsRetryableError(err))
		recordFailure(ctx, s.store, newSystemLog("insert_gmp_batch_error", "gmp", nil, models.LogDetails{
			Source:  source,
			BatchID: batchID,
		}, now), err)
		return nil, err
	}

	logger.WithField("duration", time.Since(start)).Info("GMP batch inserted")
	s.events.Publish(ctx, "insert_gmp_batch", "gmp")

	return &models.BatchResult{
		Success:       true,
		BatchID:       batchID,
		InsertedCount: len(insertedIDs),
		InsertedIDs:   insertedIDs,
	}, nil
}
