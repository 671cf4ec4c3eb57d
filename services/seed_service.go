package services

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/fenilmodi00/ipo-dalal/database"
	"github.com/fenilmodi00/ipo-dalal/models"
	"github.com/fenilmodi00/ipo-dalal/shared"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

//go:embed seed_data.yaml
var seedDataYAML []byte

const (
	seedServiceName = "Seed_Service"
	seedSource      = "seed_data"

	gmpHistoryDays          = 7
	subscriptionHistoryDays = 3
)

type seedGMP struct {
	GMPPercent       float64 `yaml:"gmp_percent"`
	GMPPrice         float64 `yaml:"gmp_price"`
	KostakRates      float64 `yaml:"kostak_rates"`
	RetailSaudaRates float64 `yaml:"retail_sauda_rates"`
	SHNISaudaRates   float64 `yaml:"shni_sauda_rates"`
}

type seedSubscription struct {
	QIBSub             float64 `yaml:"qib_sub"`
	BHNISub            float64 `yaml:"bhni_sub"`
	SHNISub            float64 `yaml:"shni_sub"`
	RetailSub          float64 `yaml:"retail_sub"`
	EmpSub             float64 `yaml:"emp_sub"`
	SHSub              float64 `yaml:"sh_sub"`
	TotalSub           float64 `yaml:"total_sub"`
	TotalAmountApplied float64 `yaml:"total_amount_applied"`
	TotalBidAmount     float64 `yaml:"total_bid_amount"`
	TotalApplications  int64   `yaml:"total_applications"`
}

type seedIPO struct {
	CompanyName        string           `yaml:"company_name"`
	Type               string           `yaml:"type"`
	Symbol             string           `yaml:"symbol"`
	IPOSizeCr          float64          `yaml:"ipo_size_cr"`
	PricePerShare      float64          `yaml:"price_per_share"`
	PriceMin           float64          `yaml:"price_min"`
	PriceMax           float64          `yaml:"price_max"`
	LotSize            int              `yaml:"lot_size"`
	RetailMinLotSize   int              `yaml:"retail_min_lot_size"`
	SHNIMinLotSize     int              `yaml:"shni_min_lot_size"`
	BHNIMinLotSize     int              `yaml:"bhni_min_lot_size"`
	RetailAmount       float64          `yaml:"retail_amount"`
	SHNIAmount         float64          `yaml:"shni_amount"`
	OpeningDate        string           `yaml:"opening_date"`
	ClosingDate        string           `yaml:"closing_date"`
	AllotmentDate      string           `yaml:"allotment_date"`
	RefundDate         string           `yaml:"refund_date"`
	ListingDate        string           `yaml:"listing_date"`
	Status             string           `yaml:"status"`
	Exchange           string           `yaml:"exchange"`
	Sector             string           `yaml:"sector"`
	Industry           string           `yaml:"industry"`
	LeadManagers       []string         `yaml:"lead_managers"`
	ListingPrice       *float64         `yaml:"listing_price"`
	ListingGains       *float64         `yaml:"listing_gains"`
	ActualProfitRetail *float64         `yaml:"actual_profit_retail"`
	ActualProfitSHNI   *float64         `yaml:"actual_profit_shni"`
	GMP                seedGMP          `yaml:"gmp"`
	Subscription       seedSubscription `yaml:"subscription"`
}

type seedFile struct {
	IPOs []seedIPO `yaml:"ipos"`
}

func loadSeedData() ([]seedIPO, error) {
	var file seedFile
	if err := yaml.Unmarshal(seedDataYAML, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}
	return file.IPOs, nil
}

// SeedService loads demo data and clears the database
type SeedService struct {
	store    database.Store
	events   *EventBus
	utility  *UtilityService
	location *time.Location
	now      func() time.Time
	metrics  *shared.ServiceMetrics

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewSeedService creates a seed service. rng drives the history jitter; a
// nil rng is seeded from the clock.
func NewSeedService(store database.Store, events *EventBus, loc *time.Location, rng *rand.Rand) *SeedService {
	if loc == nil {
		loc = time.UTC
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &SeedService{
		store:    store,
		events:   events,
		utility:  NewUtilityService(),
		location: loc,
		now:      time.Now,
		metrics:  shared.NewServiceMetrics(seedServiceName),
		rng:      rng,
	}
}

// SetClock replaces the time source, used by tests
func (s *SeedService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *SeedService) GetServiceMetrics() *shared.ServiceMetrics {
	return s.metrics
}

// jitter returns a value uniformly spread over [-width/2, width/2)
func (s *SeedService) jitter(width float64) float64 {
	return (s.rng.Float64() - 0.5) * width
}

// SeedIPOs replaces every IPO and current snapshot with the sample data.
// History rows are left alone.
func (s *SeedService) SeedIPOs(ctx context.Context) (*models.SeedResult, error) {
	start := time.Now()
	now := s.now()

	seeds, err := loadSeedData()
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryConfiguration, "SEED_DATA_INVALID", seedServiceName, "SeedIPOs", false)
	}

	inserted := 0
	err = s.store.RunInTx(ctx, func(tx database.Store) error {
		inserted = 0
		if err := tx.ClearIPOData(ctx); err != nil {
			return err
		}

		for _, seed := range seeds {
			ipo := seedToIPO(seed, now)
			if err := tx.InsertIPO(ctx, ipo); err != nil {
				return err
			}

			current := &models.CurrentGMP{
				IPOID:            ipo.ID,
				GMPPercent:       seed.GMP.GMPPercent,
				GMPPrice:         seed.GMP.GMPPrice,
				KostakRates:      seed.GMP.KostakRates,
				RetailSaudaRates: seed.GMP.RetailSaudaRates,
				SHNISaudaRates:   optionalFloat(seed.GMP.SHNISaudaRates),
				EstListingPrice:  s.utility.Add(seed.PricePerShare, seed.GMP.GMPPrice),
				EstRetailProfit:  s.utility.Amount(seed.GMP.GMPPrice, seed.RetailMinLotSize),
				DataFreshness:    0,
				Source:           seedSource,
				LastUpdated:      now,
			}
			if seed.GMP.SHNISaudaRates != 0 {
				profit := s.utility.Amount(seed.GMP.GMPPrice, seed.SHNIMinLotSize)
				current.EstSHNIProfit = &profit
			}
			if _, err := tx.SaveCurrentGMP(ctx, current); err != nil {
				return err
			}

			sub := seed.Subscription
			if _, err := tx.SaveCurrentSubscription(ctx, &models.CurrentSubscription{
				IPOID:              ipo.ID,
				QIBSub:             sub.QIBSub,
				BHNISub:            sub.BHNISub,
				SHNISub:            sub.SHNISub,
				RetailSub:          sub.RetailSub,
				EmpSub:             sub.EmpSub,
				SHSub:              sub.SHSub,
				TotalSub:           sub.TotalSub,
				TotalAmountApplied: sub.TotalAmountApplied,
				TotalBidAmount:     optionalFloat(sub.TotalBidAmount),
				TotalApplications:  optionalInt64(sub.TotalApplications),
				Source:             seedSource,
				LastUpdated:        now,
			}); err != nil {
				return err
			}
			inserted++
		}

		return recordLog(ctx, tx, newSystemLog("seed_database", "all", nil, models.LogDetails{
			Source: seedSource,
			Metadata: map[string]interface{}{
				"ipos_inserted": inserted,
				"timestamp":     now.UnixMilli(),
			},
		}, now))
	})

	s.metrics.RecordRequest("SeedIPOs", err == nil, time.Since(start))
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "SEED_FAILED", seedServiceName, "SeedIPOs", false)
	}

	s.events.Publish(ctx, "seed_database", "all")
	return &models.SeedResult{
		Success:      true,
		IPOsInserted: inserted,
		Message:      "Database seeded successfully with mock IPO data",
	}, nil
}

func seedToIPO(seed seedIPO, now time.Time) *models.IPO {
	ipo := &models.IPO{
		ID:                 uuid.New(),
		CompanyName:        seed.CompanyName,
		Type:               seed.Type,
		IPOSizeCr:          seed.IPOSizeCr,
		PricePerShare:      seed.PricePerShare,
		PriceMin:           seed.PriceMin,
		PriceMax:           seed.PriceMax,
		LotSize:            seed.LotSize,
		RetailMinLotSize:   seed.RetailMinLotSize,
		SHNIMinLotSize:     seed.SHNIMinLotSize,
		BHNIMinLotSize:     seed.BHNIMinLotSize,
		RetailAmount:       seed.RetailAmount,
		SHNIAmount:         seed.SHNIAmount,
		OpeningDate:        seed.OpeningDate,
		ClosingDate:        seed.ClosingDate,
		AllotmentDate:      seed.AllotmentDate,
		RefundDate:         seed.RefundDate,
		ListingDate:        seed.ListingDate,
		Status:             seed.Status,
		Exchange:           seed.Exchange,
		Sector:             seed.Sector,
		Industry:           seed.Industry,
		LeadManagers:       seed.LeadManagers,
		ListingPrice:       seed.ListingPrice,
		ListingGains:       seed.ListingGains,
		ActualProfitRetail: seed.ActualProfitRetail,
		ActualProfitSHNI:   seed.ActualProfitSHNI,
		CreatedBy:          "seed",
		CreatedAt:          now,
		LastModified:       now,
	}
	if seed.Symbol != "" {
		symbol := seed.Symbol
		ipo.Symbol = &symbol
	}
	if ipo.LeadManagers == nil {
		ipo.LeadManagers = []string{}
	}
	return ipo
}

// optionalFloat maps the zero value to absent
func optionalFloat(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

func optionalInt64(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

// SeedGMPHistory writes one jittered observation per day for the last
// week, plus today, for every IPO with a current GMP
func (s *SeedService) SeedGMPHistory(ctx context.Context) (*models.SeedResult, error) {
	start := time.Now()
	now := s.now()
	batchID := "seed_gmp_history_" + strconv.FormatInt(now.UnixMilli(), 10)

	s.rngMu.Lock()
	defer s.rngMu.Unlock()

	total := 0
	err := s.store.RunInTx(ctx, func(tx database.Store) error {
		total = 0
		ipos, err := tx.ListIPOs(ctx, database.IPOFilter{})
		if err != nil {
			return err
		}
		if len(ipos) == 0 {
			return shared.NewNotFoundError("NO_IPOS", "No IPOs found. Please seed IPOs first.", seedServiceName, "SeedGMPHistory")
		}

		for _, ipo := range ipos {
			current, err := tx.GetCurrentGMP(ctx, ipo.ID)
			if err != nil {
				return err
			}
			if current == nil {
				continue
			}

			for i := gmpHistoryDays; i >= 0; i-- {
				at := now.Add(-time.Duration(i) * 24 * time.Hour)
				percent := math.Max(models.MinGMPPercent, math.Min(models.MaxGMPPercent, current.GMPPercent+s.jitter(5)))

				row := &models.GMPHistory{
					ID:               uuid.New(),
					IPOID:            ipo.ID,
					GMPPercent:       percent,
					GMPPrice:         s.utility.PremiumFromPercent(percent, ipo.PricePerShare),
					KostakRates:      current.KostakRates + s.jitter(10),
					RetailSaudaRates: current.RetailSaudaRates + s.jitter(5),
					Timestamp:        at,
					Date:             s.utility.Today(at, s.location),
					Source:           seedSource,
					ScrapeBatchID:    batchID,
				}
				if current.SHNISaudaRates != nil && *current.SHNISaudaRates != 0 {
					shni := *current.SHNISaudaRates + s.jitter(5)
					row.SHNISaudaRates = &shni
				}

				if err := tx.InsertGMPHistory(ctx, row); err != nil {
					return err
				}
				total++
			}
		}

		return recordLog(ctx, tx, newSystemLog("seed_gmp_history", "gmp", nil, models.LogDetails{
			Source:  seedSource,
			BatchID: batchID,
			Metadata: map[string]interface{}{
				"records_inserted": total,
				"days_of_history":  gmpHistoryDays,
			},
		}, now))
	})

	s.metrics.RecordRequest("SeedGMPHistory", err == nil, time.Since(start))
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "SEED_FAILED", seedServiceName, "SeedGMPHistory", false)
	}

	s.events.Publish(ctx, "seed_gmp_history", "gmp")
	return &models.SeedResult{
		Success:         true,
		RecordsInserted: total,
		Message:         fmt.Sprintf("Seeded %d GMP history records", total),
	}, nil
}

// SeedSubscriptionHistory writes a build-up of subscription observations,
// from 20% of the current multiples three days ago to 100% today
func (s *SeedService) SeedSubscriptionHistory(ctx context.Context) (*models.SeedResult, error) {
	start := time.Now()
	now := s.now()
	batchID := "seed_subscription_history_" + strconv.FormatInt(now.UnixMilli(), 10)

	total := 0
	err := s.store.RunInTx(ctx, func(tx database.Store) error {
		total = 0
		ipos, err := tx.ListIPOs(ctx, database.IPOFilter{})
		if err != nil {
			return err
		}
		if len(ipos) == 0 {
			return shared.NewNotFoundError("NO_IPOS", "No IPOs found. Please seed IPOs first.", seedServiceName, "SeedSubscriptionHistory")
		}

		for _, ipo := range ipos {
			current, err := tx.GetCurrentSubscription(ctx, ipo.ID)
			if err != nil {
				return err
			}
			if current == nil {
				continue
			}

			for i := subscriptionHistoryDays; i >= 0; i-- {
				factor := 0.2 + 0.8*float64(subscriptionHistoryDays-i)/float64(subscriptionHistoryDays)
				row := &models.SubscriptionHistory{
					ID:                 uuid.New(),
					IPOID:              ipo.ID,
					QIBSub:             s.utility.Scale(current.QIBSub, factor),
					BHNISub:            s.utility.Scale(current.BHNISub, factor),
					SHNISub:            s.utility.Scale(current.SHNISub, factor),
					RetailSub:          s.utility.Scale(current.RetailSub, factor),
					EmpSub:             s.utility.Scale(current.EmpSub, factor),
					SHSub:              s.utility.Scale(current.SHSub, factor),
					TotalSub:           s.utility.Scale(current.TotalSub, factor),
					TotalAmountApplied: s.utility.Scale(current.TotalAmountApplied, factor),
					Timestamp:          now.Add(-time.Duration(i) * 24 * time.Hour),
					Source:             seedSource,
					ScrapeBatchID:      batchID,
				}
				if current.TotalBidAmount != nil && *current.TotalBidAmount != 0 {
					bid := s.utility.Scale(*current.TotalBidAmount, factor)
					row.TotalBidAmount = &bid
				}
				if current.TotalApplications != nil && *current.TotalApplications != 0 {
					apps := int64(math.Floor(float64(*current.TotalApplications) * factor))
					row.TotalApplications = &apps
				}

				if err := tx.InsertSubscriptionHistory(ctx, row); err != nil {
					return err
				}
				total++
			}
		}

		return recordLog(ctx, tx, newSystemLog("seed_subscription_history", "subscription", nil, models.LogDetails{
			Source:  seedSource,
			BatchID: batchID,
			Metadata: map[string]interface{}{
				"records_inserted": total,
				"days_of_history":  subscriptionHistoryDays,
			},
		}, now))
	})

	s.metrics.RecordRequest("SeedSubscriptionHistory", err == nil, time.Since(start))
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "SEED_FAILED", seedServiceName, "SeedSubscriptionHistory", false)
	}

	s.events.Publish(ctx, "seed_subscription_history", "subscription")
	return &models.SeedResult{
		Success:         true,
		RecordsInserted: total,
		Message:         fmt.Sprintf("Seeded %d subscription history records", total),
	}, nil
}

// ClearAllData deletes every IPO-related row. System logs are kept and the
// clear itself is not logged.
func (s *SeedService) ClearAllData(ctx context.Context) (*models.SeedResult, error) {
	err := s.store.RunInTx(ctx, func(tx database.Store) error {
		return tx.ClearAll(ctx)
	})
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "CLEAR_FAILED", seedServiceName, "ClearAllData", false)
	}

	logrus.WithField("component", "seed_service").Warn("All IPO data cleared")
	s.events.Publish(ctx, "clear_all_data", "all")
	return &models.SeedResult{Success: true, Message: "All data cleared successfully"}, nil
}

// SeedAll clears everything and runs every seeding step in order, stopping
// at the first failure
func (s *SeedService) SeedAll(ctx context.Context) (*models.SeedAllResult, error) {
	steps := []struct {
		name string
		run  func(context.Context) (*models.SeedResult, error)
	}{
		{"clear", s.ClearAllData},
		{"ipos", s.SeedIPOs},
		{"gmp_history", s.SeedGMPHistory},
		{"subscription_history", s.SeedSubscriptionHistory},
	}

	results := make(map[string]models.SeedResult, len(steps))
	for _, step := range steps {
		result, err := step.run(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to seed %s: %w", step.name, err)
		}
		results[step.name] = *result
	}

	return &models.SeedAllResult{
		Success: true,
		Message: "All data seeded successfully",
		Results: results,
	}, nil
}
