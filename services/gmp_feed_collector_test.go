package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fenilmodi00/ipo-dalal/database"
	"github.com/fenilmodi00/ipo-dalal/shared"
)

const feedPage = `<html><body>
<table>
  <thead><tr><th>IPO</th><th>GMP</th><th>Kostak</th><th>Sauda</th><th>S-HNI</th></tr></thead>
  <tbody>
    <tr><td>Feed Alpha IPO NSE SME O</td><td>₹25 (25.00%)</td><td>₹500</td><td>1,200</td><td>3000</td></tr>
    <tr><td>Feed Beta Ltd</td><td>-5%</td><td>-</td><td>TBA</td><td>-</td></tr>
    <tr><td>Feed Alpha</td><td>40%</td><td>0</td><td>0</td><td>0</td></tr>
    <tr><td>Feed Gamma</td><td>350%</td><td>0</td><td>0</td><td>0</td></tr>
    <tr><td>Stranger Industries</td><td>10%</td><td>0</td><td>0</td><td>0</td></tr>
    <tr><td>Too Short</td><td>10%</td></tr>
  </tbody>
</table>
</body></html>`

func newFeedServer(t *testing.T, status int, contentType, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func feedConfig(url string) GMPFeedConfig {
	config := NewDefaultGMPFeedConfig(url)
	config.RequestDelay = 0
	config.RequestTimeout = 5 * time.Second
	return config
}

func TestParseFeedTable(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(feedPage))
	if err != nil {
		t.Fatal(err)
	}
	collector := NewGMPFeedCollector(feedConfig(""), nil, nil)

	rows := collector.ParseFeedTable(doc.Selection)
	if len(rows) != 5 {
		t.Fatalf("rows = %d, want 5", len(rows))
	}

	alpha := rows[0]
	if alpha.Company != "Feed Alpha" || alpha.GMPPercent != 25 || alpha.KostakRates != 500 || alpha.RetailSauda != 1200 {
		t.Errorf("unexpected first row %+v", alpha)
	}
	if alpha.SHNISauda == nil || *alpha.SHNISauda != 3000 {
		t.Errorf("shni sauda = %v", alpha.SHNISauda)
	}

	beta := rows[1]
	if beta.GMPPercent != -5 || beta.KostakRates != 0 || beta.SHNISauda != nil {
		t.Errorf("placeholders should parse as absent: %+v", beta)
	}
}

func TestCollectIngestsMatchedRows(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	alpha := seedTestIPO(t, store, "Feed Alpha Limited")
	beta := seedTestIPO(t, store, "Feed Beta")
	gamma := seedTestIPO(t, store, "Feed Gamma")

	server := newFeedServer(t, http.StatusOK, "text/html; charset=utf-8", feedPage)
	gmp := newGMPTestService(store, "2024-01-04")
	collector := NewGMPFeedCollector(feedConfig(server.URL), store, gmp)

	result, err := collector.Collect(ctx)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if result.RowsParsed != 5 || result.Matched != 2 {
		t.Errorf("parsed=%d matched=%d", result.RowsParsed, result.Matched)
	}
	if len(result.Unmatched) != 1 || result.Unmatched[0] != "Stranger Industries" {
		t.Errorf("unmatched = %v", result.Unmatched)
	}
	if len(result.Rejected) != 1 || result.Rejected[0] != "Feed Gamma" {
		t.Errorf("rejected = %v", result.Rejected)
	}
	if result.Batch == nil || !strings.HasPrefix(result.Batch.BatchID, "web_feed_") {
		t.Fatalf("unexpected batch %+v", result.Batch)
	}

	current, _ := store.GetCurrentGMP(ctx, alpha.ID)
	if current == nil || current.GMPPercent != 25 || current.Source != "web_feed" {
		t.Errorf("first feed row for an IPO should win: %+v", current)
	}
	betaGMP, _ := store.GetCurrentGMP(ctx, beta.ID)
	if betaGMP == nil || betaGMP.GMPPercent != -5 {
		t.Errorf("beta GMP = %+v", betaGMP)
	}
	gammaGMP, _ := store.GetCurrentGMP(ctx, gamma.ID)
	if gammaGMP != nil {
		t.Errorf("out of range row was ingested: %+v", gammaGMP)
	}

	logs, _ := store.ListSystemLogs(ctx, 10, "insert_gmp_batch")
	if len(logs) != 1 || logs[0].Details.Metadata["scraper_version"] != feedVersion {
		t.Errorf("unexpected batch log %+v", logs)
	}
}

func TestCollectWithoutMatchesWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	server := newFeedServer(t, http.StatusOK, "text/html", feedPage)
	collector := NewGMPFeedCollector(feedConfig(server.URL), store, newGMPTestService(store, "2024-01-04"))

	result, err := collector.Collect(ctx)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if result.Batch != nil || result.Matched != 0 || len(result.Unmatched) != 5 {
		t.Errorf("unexpected result %+v", result)
	}
	logs, _ := store.ListSystemLogs(ctx, 10, "")
	if len(logs) != 0 {
		t.Errorf("an empty collection should not log a batch")
	}
}

func TestCollectFailures(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()

	disabled := NewGMPFeedCollector(feedConfig(""), store, nil)
	if disabled.Enabled() {
		t.Errorf("collector without a URL should be disabled")
	}
	if _, err := disabled.Collect(ctx); shared.CategoryOf(err) != shared.ErrorCategoryConfiguration {
		t.Errorf("expected configuration error, got %v", err)
	}

	broken := newFeedServer(t, http.StatusBadGateway, "text/html", "<html></html>")
	collector := NewGMPFeedCollector(feedConfig(broken.URL), store, nil)
	_, err := collector.Collect(ctx)
	if shared.CategoryOf(err) != shared.ErrorCategoryNetwork || !shared.IsRetryableError(err) {
		t.Errorf("expected retryable network error, got %v", err)
	}

	jsonFeed := newFeedServer(t, http.StatusOK, "application/json", `{"rows":[]}`)
	collector = NewGMPFeedCollector(feedConfig(jsonFeed.URL), store, nil)
	if _, err := collector.Collect(ctx); shared.CategoryOf(err) != shared.ErrorCategoryProcessing {
		t.Errorf("expected processing error for a non-HTML feed, got %v", err)
	}

	ops := collector.GetServiceMetrics().GetSnapshot().Operations
	if len(ops) != 1 || ops[0].FailedRequests != 1 {
		t.Errorf("failed collections should still be counted: %+v", ops)
	}
}
