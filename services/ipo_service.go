package services

import (
	"context"
	"fmt"
	"time"

	"github.com/fenilmodi00/ipo-dalal/database"
	"github.com/fenilmodi00/ipo-dalal/models"
	"github.com/fenilmodi00/ipo-dalal/shared"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const ipoServiceName = "IPO_Service"

// IPOService handles IPO master records: create-or-update by company name,
// listing outcomes and status refresh
type IPOService struct {
	store    database.Store
	events   *EventBus
	utility  *UtilityService
	location *time.Location
	now      func() time.Time
	metrics  *shared.ServiceMetrics
}

// NewIPOService creates a new IPO service. Status derivation uses the
// calendar date in loc.
func NewIPOService(store database.Store, events *EventBus, loc *time.Location) *IPOService {
	if loc == nil {
		loc = time.UTC
	}
	return &IPOService{
		store:    store,
		events:   events,
		utility:  NewUtilityService(),
		location: loc,
		now:      time.Now,
		metrics:  shared.NewServiceMetrics(ipoServiceName),
	}
}

// SetClock replaces the time source, used by tests
func (s *IPOService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *IPOService) GetServiceMetrics() *shared.ServiceMetrics {
	return s.metrics
}

// CreateOrUpdateIPO looks the IPO up by company name and patches it, or
// inserts a new one. Investment amounts are recomputed and the status is
// derived from the dates unless given.
func (s *IPOService) CreateOrUpdateIPO(ctx context.Context, input models.IPOInput) (*models.UpsertResult, error) {
	start := time.Now()
	now := s.now()

	if err := shared.ValidateStruct(input, ipoServiceName, "CreateOrUpdateIPO"); err != nil {
		s.metrics.RecordRequest("CreateOrUpdateIPO", false, time.Since(start))
		recordFailure(ctx, s.store, newSystemLog("create_or_update_ipo_error", "ipo", nil,
			models.LogDetails{Source: "manual"}, now), err)
		return nil, err
	}

	status := ""
	statusAuto := input.Status == nil
	if statusAuto {
		status = s.utility.CalculateIPOStatus(input.OpeningDate, input.ClosingDate, input.ListingDate,
			s.utility.Today(now, s.location))
	} else {
		status = *input.Status
	}

	leadManagers := input.LeadManagers
	if leadManagers == nil {
		leadManagers = []string{}
	}

	var result *models.UpsertResult
	logAction := ""
	err := s.store.RunInTx(ctx, func(tx database.Store) error {
		existing, err := tx.GetIPOByCompany(ctx, input.CompanyName)
		if err != nil {
			return err
		}

		ipo := models.IPO{ID: uuid.New(), CreatedAt: now}
		if existing != nil {
			// listing outcome fields are not part of the input and survive
			ipo = *existing
		}

		ipo.CompanyName = input.CompanyName
		ipo.Type = input.Type
		ipo.Symbol = input.Symbol
		ipo.IPOSizeCr = input.IPOSizeCr
		ipo.PricePerShare = input.PricePerShare
		ipo.PriceMin = input.PriceMin
		ipo.PriceMax = input.PriceMax
		ipo.LotSize = input.LotSize
		ipo.RetailMinLotSize = input.RetailMinLotSize
		ipo.SHNIMinLotSize = input.SHNIMinLotSize
		ipo.BHNIMinLotSize = input.BHNIMinLotSize
		ipo.RetailAmount = s.utility.Amount(input.PricePerShare, input.RetailMinLotSize)
		ipo.SHNIAmount = s.utility.Amount(input.PricePerShare, input.SHNIMinLotSize)
		ipo.OpeningDate = input.OpeningDate
		ipo.ClosingDate = input.ClosingDate
		ipo.AllotmentDate = input.AllotmentDate
		ipo.RefundDate = input.RefundDate
		ipo.ListingDate = input.ListingDate
		ipo.Status = status
		ipo.StatusAuto = statusAuto
		ipo.Exchange = input.Exchange
		ipo.Sector = input.Sector
		ipo.Industry = input.Industry
		ipo.LeadManagers = leadManagers
		ipo.CreatedBy = "system"
		ipo.LastModified = now

		action := models.ActionCreated
		logAction = "create_ipo"
		if existing != nil {
			action, logAction = models.ActionUpdated, "update_ipo"
			err = tx.UpdateIPO(ctx, &ipo)
		} else {
			err = tx.InsertIPO(ctx, &ipo)
		}
		if err != nil {
			return err
		}

		result = &models.UpsertResult{Success: true, IPOID: ipo.ID, Action: action}
		return recordLog(ctx, tx, newSystemLog(logAction, "ipo", &ipo.ID, models.LogDetails{
			Changes: ipoChanges(&ipo),
			Source:  "manual",
		}, now))
	})

	s.metrics.RecordRequest("CreateOrUpdateIPO", err == nil, time.Since(start))
	if err != nil {
		err = shared.WrapError(err, shared.ErrorCategoryDatabase, "UPSERT_FAILED", ipoServiceName, "CreateOrUpdateIPO", shared.IsRetryableError(err))
		recordFailure(ctx, s.store, newSystemLog("create_or_update_ipo_error", "ipo", nil, models.LogDetails{
			Source:   "manual",
			Metadata: map[string]interface{}{"company_name": input.CompanyName},
		}, now), err)
		return nil, err
	}

	s.events.Publish(ctx, logAction, "ipo")
	return result, nil
}

func ipoChanges(ipo *models.IPO) map[string]interface{} {
	changes := map[string]interface{}{
		"company_name":        ipo.CompanyName,
		"type":                ipo.Type,
		"ipo_size_cr":         ipo.IPOSizeCr,
		"price_per_share":     ipo.PricePerShare,
		"price_min":           ipo.PriceMin,
		"price_max":           ipo.PriceMax,
		"lot_size":            ipo.LotSize,
		"retail_min_lot_size": ipo.RetailMinLotSize,
		"shni_min_lot_size":   ipo.SHNIMinLotSize,
		"bhni_min_lot_size":   ipo.BHNIMinLotSize,
		"retail_amount":       ipo.RetailAmount,
		"shni_amount":         ipo.SHNIAmount,
		"opening_date":        ipo.OpeningDate,
		"closing_date":        ipo.ClosingDate,
		"allotment_date":      ipo.AllotmentDate,
		"refund_date":         ipo.RefundDate,
		"listing_date":        ipo.ListingDate,
		"status":              ipo.Status,
		"exchange":            ipo.Exchange,
		"sector":              ipo.Sector,
		"industry":            ipo.Industry,
		"lead_managers":       ipo.LeadManagers,
		"created_by":          ipo.CreatedBy,
		"last_modified":       ipo.LastModified,
	}
	if ipo.Symbol != nil {
		changes["symbol"] = *ipo.Symbol
	}
	return changes
}

// UpdateIPOListingDetails records the listing outcome and marks the IPO listed
func (s *IPOService) UpdateIPOListingDetails(ctx context.Context, ipoID uuid.UUID, details models.ListingDetails) error {
	start := time.Now()
	now := s.now()

	err := shared.ValidateStruct(details, ipoServiceName, "UpdateIPOListingDetails")
	if err == nil {
		err = s.store.RunInTx(ctx, func(tx database.Store) error {
			ipo, err := tx.GetIPO(ctx, ipoID)
			if err != nil {
				return err
			}
			if ipo == nil {
				return shared.NewNotFoundError("IPO_NOT_FOUND", fmt.Sprintf("IPO %s not found", ipoID),
					ipoServiceName, "UpdateIPOListingDetails")
			}

			ipo.ListingPrice = &details.ListingPrice
			ipo.ListingGains = &details.ListingGains
			ipo.ActualProfitRetail = &details.ActualProfitRetail
			ipo.ActualProfitSHNI = &details.ActualProfitSHNI
			ipo.Status = models.StatusListed
			ipo.StatusAuto = false
			ipo.LastModified = now

			if err := tx.UpdateIPO(ctx, ipo); err != nil {
				return err
			}

			return recordLog(ctx, tx, newSystemLog("update_ipo_listing", "ipo", &ipo.ID, models.LogDetails{
				Changes: map[string]interface{}{
					"listing_price":        details.ListingPrice,
					"listing_gains":        details.ListingGains,
					"actual_profit_retail": details.ActualProfitRetail,
					"actual_profit_shni":   details.ActualProfitSHNI,
					"status":               models.StatusListed,
				},
				Source: "manual",
			}, now))
		})
	}

	s.metrics.RecordRequest("UpdateIPOListingDetails", err == nil, time.Since(start))
	if err != nil {
		err = shared.WrapError(err, shared.ErrorCategoryDatabase, "UPDATE_FAILED", ipoServiceName, "UpdateIPOListingDetails", false)
		recordFailure(ctx, s.store, newSystemLog("update_ipo_listing_error", "ipo", &ipoID,
			models.LogDetails{Source: "manual"}, now), err)
		return err
	}

	s.events.Publish(ctx, "update_ipo_listing", "ipo")
	return nil
}

// RefreshStatuses re-derives the status of every IPO whose status was
// derived rather than supplied, and reports how many changed
func (s *IPOService) RefreshStatuses(ctx context.Context) (int, error) {
	start := time.Now()
	now := s.now()
	today := s.utility.Today(now, s.location)

	updated := 0
	err := s.store.RunInTx(ctx, func(tx database.Store) error {
		updated = 0
		ipos, err := tx.ListIPOs(ctx, database.IPOFilter{})
		if err != nil {
			return err
		}

		changes := map[string]interface{}{}
		for i := range ipos {
			ipo := &ipos[i]
			if !ipo.StatusAuto {
				continue
			}
			status := s.utility.CalculateIPOStatus(ipo.OpeningDate, ipo.ClosingDate, ipo.ListingDate, today)
			if status == ipo.Status {
				continue
			}

			changes[ipo.CompanyName] = map[string]string{"from": ipo.Status, "to": status}
			ipo.Status = status
			ipo.LastModified = now
			if err := tx.UpdateIPO(ctx, ipo); err != nil {
				return err
			}
			updated++
		}

		if updated == 0 {
			return nil
		}
		return recordLog(ctx, tx, newSystemLog("refresh_ipo_status", "ipo", nil, models.LogDetails{
			Changes: changes,
			Source:  "scheduler",
			Metadata: map[string]interface{}{
				"updated": updated,
				"date":    today,
			},
		}, now))
	})

	s.metrics.RecordRequest("RefreshStatuses", err == nil, time.Since(start))
	if err != nil {
		return 0, shared.WrapError(err, shared.ErrorCategoryDatabase, "REFRESH_FAILED", ipoServiceName, "RefreshStatuses", true)
	}

	logrus.WithFields(logrus.Fields{
		"component": "ipo_service",
		"updated":   updated,
		"date":      today,
	}).Info("IPO status refresh completed")

	if updated > 0 {
		s.events.Publish(ctx, "refresh_ipo_status", "ipo")
	}
	return updated, nil
}
