package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fenilmodi00/ipo-dalal/database"
	"github.com/fenilmodi00/ipo-dalal/models"
	"github.com/fenilmodi00/ipo-dalal/shared"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

const (
	feedCollectorName = "GMP_Feed_Collector"
	feedSource        = "web_feed"
	feedVersion       = "feed-collector/1.0"
)

var (
	percentValueRegex  = regexp.MustCompile(`([-+]?\d+(?:\.\d+)?)\s*%`)
	exchangeTagRegex   = regexp.MustCompile(`(?i)\s*\b(BSE|NSE)\b\s*(SME)?\s*\b[UOC]?\s*$`)
	trailingIPOTagRegx = regexp.MustCompile(`(?i)\s*\bIPO\s*$`)
)

// GMPFeedConfig holds the collector settings
type GMPFeedConfig struct {
	URL            string
	RequestTimeout time.Duration
	RequestDelay   time.Duration
	ScraperVersion string
}

// NewDefaultGMPFeedConfig returns the settings used when only the URL is known
func NewDefaultGMPFeedConfig(url string) GMPFeedConfig {
	return GMPFeedConfig{
		URL:            url,
		RequestTimeout: 30 * time.Second,
		RequestDelay:   time.Second,
		ScraperVersion: feedVersion,
	}
}

// FeedRow is one parsed row of the GMP feed table
type FeedRow struct {
	Company     string
	GMPPercent  float64
	KostakRates float64
	RetailSauda float64
	SHNISauda   *float64
}

// GMPBatchWriter accepts collected GMP observations
type GMPBatchWriter interface {
	InsertGMPBatch(ctx context.Context, records []models.GMPRecord, source string, metadata *models.BatchMetadata) (*models.BatchResult, error)
}

// CollectResult summarises one collector run
type CollectResult struct {
	RowsParsed int                 `json:"rows_parsed"`
	Matched    int                 `json:"matched"`
	Unmatched  []string            `json:"unmatched"`
	Rejected   []string            `json:"rejected"`
	Batch      *models.BatchResult `json:"batch,omitempty"`
}

// GMPFeedCollector scrapes a public GMP table and feeds matching rows into
// the GMP batch ingestion
type GMPFeedCollector struct {
	config  GMPFeedConfig
	store   database.Store
	writer  GMPBatchWriter
	utility *UtilityService
	metrics *shared.ServiceMetrics

	mu sync.Mutex
}

func NewGMPFeedCollector(config GMPFeedConfig, store database.Store, writer GMPBatchWriter) *GMPFeedCollector {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.ScraperVersion == "" {
		config.ScraperVersion = feedVersion
	}
	return &GMPFeedCollector{
		config:  config,
		store:   store,
		writer:  writer,
		utility: NewUtilityService(),
		metrics: shared.NewServiceMetrics(feedCollectorName),
	}
}

func (c *GMPFeedCollector) GetServiceMetrics() *shared.ServiceMetrics {
	return c.metrics
}

// Enabled reports whether a feed URL is configured
func (c *GMPFeedCollector) Enabled() bool {
	return c.config.URL != ""
}

// Fetch downloads the feed page and parses its table rows
func (c *GMPFeedCollector) Fetch(ctx context.Context) ([]FeedRow, error) {
	if !c.Enabled() {
		return nil, shared.NewServiceError(shared.ErrorCategoryConfiguration, "FEED_DISABLED",
			"GMP feed URL is not configured", feedCollectorName, "Fetch", false, nil)
	}

	collector := colly.NewCollector(colly.StdlibContext(ctx))
	collector.SetClient(shared.NewFeedHTTPClient(c.config.RequestTimeout))
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       c.config.RequestDelay,
	}); err != nil {
		return nil, fmt.Errorf("failed to set feed rate limit: %w", err)
	}

	collector.OnRequest(func(r *colly.Request) {
		for k, v := range shared.BrowserLikeHeaders() {
			r.Headers.Set(k, v)
		}
	})

	var (
		rows      []FeedRow
		parsedAny bool
		visitErr  error
	)
	collector.OnHTML("html", func(e *colly.HTMLElement) {
		parsedAny = true
		rows = append(rows, c.ParseFeedTable(e.DOM)...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("feed request failed with status %d: %w", r.StatusCode, err)
	})

	if err := collector.Visit(c.config.URL); err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryNetwork, "FEED_FETCH_FAILED", feedCollectorName, "Fetch", true)
	}
	collector.Wait()

	if visitErr != nil {
		return nil, shared.WrapError(visitErr, shared.ErrorCategoryNetwork, "FEED_FETCH_FAILED", feedCollectorName, "Fetch", true)
	}
	if !parsedAny {
		return nil, shared.NewServiceError(shared.ErrorCategoryProcessing, "FEED_NOT_HTML",
			"GMP feed did not return an HTML document", feedCollectorName, "Fetch", false, nil)
	}
	return rows, nil
}

// ParseFeedTable reads every `table tbody tr` below root. Columns are
// company, GMP, kostak, retail sauda and an optional S-HNI sauda. Rows
// without a company or a readable GMP are skipped.
func (c *GMPFeedCollector) ParseFeedTable(root *goquery.Selection) []FeedRow {
	var rows []FeedRow
	root.Find("table tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 4 {
			return
		}
		text := func(i int) string {
			return c.utility.NormalizeTextContent(cells.Eq(i).Text())
		}

		company := cleanFeedCompany(strings.TrimSpace(whitespaceRegex.ReplaceAllString(cells.Eq(0).Text(), " ")))
		if company == "" {
			return
		}

		gmp := parseFeedPercent(text(1), c.utility)
		if gmp == nil {
			return
		}

		row := FeedRow{Company: company, GMPPercent: *gmp}
		if v := c.utility.ParseSignedNumber(text(2)); v != nil {
			row.KostakRates = *v
		}
		if v := c.utility.ParseSignedNumber(text(3)); v != nil {
			row.RetailSauda = *v
		}
		if cells.Length() > 4 {
			row.SHNISauda = c.utility.ParseSignedNumber(text(4))
		}
		rows = append(rows, row)
	})
	return rows
}

// cleanFeedCompany strips exchange and status tags such as "NSE SME O" and
// a trailing "IPO"
func cleanFeedCompany(name string) string {
	name = exchangeTagRegex.ReplaceAllString(name, "")
	name = trailingIPOTagRegx.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// parseFeedPercent prefers an explicit percentage, e.g. "₹25 (30.86%)"
func parseFeedPercent(text string, utility *UtilityService) *float64 {
	if m := percentValueRegex.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return &v
		}
	}
	return utility.ParseSignedNumber(text)
}

// Collect fetches the feed, matches rows to known IPOs by normalised name
// and ingests the matches as one batch. Rows outside the accepted GMP range
// are dropped so one bad row does not reject the rest.
func (c *GMPFeedCollector) Collect(ctx context.Context) (*CollectResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	logger := logrus.WithFields(logrus.Fields{
		"component": "gmp_feed_collector",
		"url":       c.config.URL,
	})

	rows, err := c.Fetch(ctx)
	if err != nil {
		c.metrics.RecordRequest("Collect", false, time.Since(start))
		logger.WithError(err).Warn("GMP feed fetch failed")
		return nil, err
	}

	result, err := c.ingest(ctx, rows, time.Since(start))
	c.metrics.RecordRequest("Collect", err == nil, time.Since(start))
	if err != nil {
		logger.WithError(err).Warn("GMP feed ingestion failed")
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"rows":      result.RowsParsed,
		"matched":   result.Matched,
		"unmatched": len(result.Unmatched),
		"rejected":  len(result.Rejected),
		"duration":  time.Since(start),
	}).Info("GMP feed collected")
	return result, nil
}

func (c *GMPFeedCollector) ingest(ctx context.Context, rows []FeedRow, fetchDuration time.Duration) (*CollectResult, error) {
	ipos, err := c.store.ListIPOs(ctx, database.IPOFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list IPOs: %w", err)
	}

	byName := make(map[string]models.IPO, len(ipos))
	for _, ipo := range ipos {
		byName[c.utility.NormalizeIPOName(ipo.CompanyName)] = ipo
	}

	result := &CollectResult{RowsParsed: len(rows), Unmatched: []string{}, Rejected: []string{}}
	seen := make(map[string]bool)
	var records []models.GMPRecord
	for _, row := range rows {
		ipo, ok := byName[c.utility.NormalizeIPOName(row.Company)]
		if !ok {
			result.Unmatched = append(result.Unmatched, row.Company)
			continue
		}
		if row.GMPPercent < models.MinGMPPercent || row.GMPPercent > models.MaxGMPPercent {
			result.Rejected = append(result.Rejected, row.Company)
			continue
		}
		// first row wins when a feed lists an IPO twice
		if seen[ipo.ID.String()] {
			continue
		}
		seen[ipo.ID.String()] = true

		records = append(records, models.GMPRecord{
			IPOID:            ipo.ID,
			GMPPercent:       row.GMPPercent,
			PricePerShare:    ipo.PricePerShare,
			KostakRates:      row.KostakRates,
			RetailSaudaRates: row.RetailSauda,
			SHNISaudaRates:   row.SHNISauda,
		})
	}
	result.Matched = len(records)

	if len(records) == 0 {
		return result, nil
	}

	batch, err := c.writer.InsertGMPBatch(ctx, records, feedSource, &models.BatchMetadata{
		ScraperVersion:   c.config.ScraperVersion,
		ScrapeDurationMs: fetchDuration.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	result.Batch = batch
	return result, nil
}
