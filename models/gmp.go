package models

import (
	"time"

	"github.com/google/uuid"
)

// GMP percentage bounds accepted on ingestion
const (
	MinGMPPercent = -50.0
	MaxGMPPercent = 200.0
)

// GMPRecord is one observation submitted in a GMP batch
type GMPRecord struct {
	IPOID            uuid.UUID `json:"ipo_id" validate:"required"`
	GMPPercent       float64   `json:"gmp_percent"`
	PricePerShare    float64   `json:"price_per_share" validate:"gt=0"`
	KostakRates      float64   `json:"kostak_rates"`
	RetailSaudaRates float64   `json:"retail_sauda_rates"`
	SHNISaudaRates   *float64  `json:"shni_sauda_rates,omitempty"`
}

// BatchMetadata describes the scraper run that produced a batch
type BatchMetadata struct {
	ScraperVersion   string `json:"scraper_version,omitempty"`
	ScrapeDurationMs int64  `json:"scrape_duration_ms,omitempty"`
}

// GMPHistory is an immutable GMP observation
type GMPHistory struct {
	ID               uuid.UUID `json:"id"`
	IPOID            uuid.UUID `json:"ipo_id"`
	GMPPercent       float64   `json:"gmp_percent"`
	GMPPrice         float64   `json:"gmp_price"`
	KostakRates      float64   `json:"kostak_rates"`
	RetailSaudaRates float64   `json:"retail_sauda_rates"`
	SHNISaudaRates   *float64  `json:"shni_sauda_rates,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	Date             string    `json:"date"`
	Source           string    `json:"source"`
	ScrapeBatchID    string    `json:"scrape_batch_id"`
}

// CurrentGMP is the latest GMP snapshot of an IPO, one row per IPO
type CurrentGMP struct {
	ID               uuid.UUID `json:"id"`
	IPOID            uuid.UUID `json:"ipo_id"`
	GMPPercent       float64   `json:"gmp_percent"`
	GMPPrice         float64   `json:"gmp_price"`
	KostakRates      float64   `json:"kostak_rates"`
	RetailSaudaRates float64   `json:"retail_sauda_rates"`
	SHNISaudaRates   *float64  `json:"shni_sauda_rates,omitempty"`
	EstListingPrice  float64   `json:"est_listing_price"`
	EstRetailProfit  float64   `json:"est_retail_profit"`
	EstSHNIProfit    *float64  `json:"est_shni_profit,omitempty"`
	DataFreshness    int       `json:"data_freshness"`
	Source           string    `json:"source"`
	LastUpdated      time.Time `json:"last_updated"`
}

// BatchResult is returned by both batch ingestion mutations
type BatchResult struct {
	Success       bool        `json:"success"`
	BatchID       string      `json:"batch_id"`
	InsertedCount int         `json:"inserted_count"`
	InsertedIDs   []uuid.UUID `json:"inserted_ids"`
}
