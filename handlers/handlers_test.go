package handlers

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-dalal/database"
	"github.com/fenilmodi00/ipo-dalal/jobs"
	"github.com/fenilmodi00/ipo-dalal/models"
	"github.com/fenilmodi00/ipo-dalal/services"
	"github.com/fenilmodi00/ipo-dalal/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminToken = "bootstrap-secret"

var testJSON = jsoniter.ConfigCompatibleWithStandardLibrary

type envelope struct {
	Success bool                `json:"success"`
	Data    jsoniter.RawMessage `json:"data"`
	Error   string              `json:"error"`
	Code    string              `json:"code"`
}

type apiFixture struct {
	app   *fiber.App
	store *database.MemoryStore
	ipos  *services.IPOService
	bus   *services.EventBus
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	clock := func() time.Time { return time.Date(2024, 1, 3, 6, 30, 0, 0, time.UTC) }

	store := database.NewMemoryStore()
	bus := services.NewEventBus()
	cache := services.NewCacheService(services.NewMemoryCache(100), time.Minute)
	bus.Subscribe("cache", cache.OnChange)

	history := shared.NewDefaultUnifiedConfiguration().History
	queryService := services.NewQueryService(store, history)
	queryService.SetClock(clock)
	queries := services.NewCachedQueryService(queryService, cache)

	ipoService := services.NewIPOService(store, bus, time.UTC)
	ipoService.SetClock(clock)
	gmpService := services.NewGMPService(store, bus, time.UTC)
	gmpService.SetClock(clock)
	subService := services.NewSubscriptionService(store, bus)
	subService.SetClock(clock)
	seedService := services.NewSeedService(store, bus, time.UTC, rand.New(rand.NewSource(1)))
	seedService.SetClock(clock)

	scheduler := jobs.NewScheduler(time.UTC)
	require.NoError(t, scheduler.Register("", jobs.NewStatusRefreshJob(ipoService)))
	require.NoError(t, scheduler.Register("", jobs.NewCacheCleanupJob(cache)))

	app := NewApp(false)
	SetupRoutes(app, Handlers{
		IPO:         NewIPOHandler(queries),
		GMP:         NewGMPHandler(queries),
		Display:     &DisplayHandler{Queries: queries, Now: clock},
		Admin:       NewAdminHandler(ipoService, gmpService, subService, seedService, scheduler),
		Auth:        NewAuthHandler(testAdminToken, shared.TokenIssuer{Secret: []byte("0123456789abcdef0123"), TokenTTL: time.Hour}),
		Performance: NewPerformanceHandler(nil, cache, queries, scheduler, queryService, ipoService, gmpService),
		Health:      NewHealthHandler(store, nil),
	})

	return &apiFixture{app: app, store: store, ipos: ipoService, bus: bus}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body string) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, testJSON.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func (f *apiFixture) token(t *testing.T) string {
	t.Helper()
	resp, env := f.do(t, http.MethodPost, "/api/v1/admin/token", "", `{"admin_token":"`+testAdminToken+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, testJSON.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func (f *apiFixture) addIPO(t *testing.T, name string) uuid.UUID {
	t.Helper()
	result, err := f.ipos.CreateOrUpdateIPO(context.Background(), models.IPOInput{
		CompanyName:      name,
		Type:             models.TypeMainline,
		IPOSizeCr:        1000,
		PricePerShare:    100,
		LotSize:          150,
		RetailMinLotSize: 150,
		SHNIMinLotSize:   2000,
		BHNIMinLotSize:   10000,
		OpeningDate:      "2024-01-01",
		ClosingDate:      "2024-01-05",
		AllotmentDate:    "2024-01-08",
		RefundDate:       "2024-01-09",
		ListingDate:      "2024-01-10",
		Exchange:         models.ExchangeBoth,
	})
	require.NoError(t, err)
	return result.IPOID
}

const ipoBody = `{
	"company_name": "Handler Co",
	"type": "NSE SME",
	"ipo_size_cr": 50,
	"price_per_share": 120,
	"price_min": 110,
	"price_max": 120,
	"lot_size": 1000,
	"retail_min_lot_size": 1000,
	"shni_min_lot_size": 2000,
	"bhni_min_lot_size": 9000,
	"opening_date": "2024-01-02",
	"closing_date": "2024-01-04",
	"allotment_date": "2024-01-05",
	"refund_date": "2024-01-08",
	"listing_date": "2024-01-09",
	"exchange": "NSE"
}`

func TestPublicReadRoutes(t *testing.T) {
	f := newAPIFixture(t)
	id := f.addIPO(t, "Reader Co")

	resp, env := f.do(t, http.MethodGet, "/api/v1/ipos/live", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	var live []models.EnrichedIPO
	require.NoError(t, testJSON.Unmarshal(env.Data, &live))
	require.Len(t, live, 1)
	assert.Equal(t, id, live[0].ID)

	resp, env = f.do(t, http.MethodGet, "/api/v1/ipos/"+id.String(), "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)

	resp, env = f.do(t, http.MethodGet, "/api/v1/ipos/not-a-uuid", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, "INVALID_ID", env.Code)

	resp, env = f.do(t, http.MethodGet, "/api/v1/ipos/"+uuid.NewString(), "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, env.Success)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/gmp?filter=Debt", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/ipos/"+id.String()+"/gmp-history?days=-1", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, env = f.do(t, http.MethodGet, "/api/v1/counts", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var counts models.StatusCounts
	require.NoError(t, testJSON.Unmarshal(env.Data, &counts))
	assert.Equal(t, 1, counts.Open)

	resp, _ = f.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	f := newAPIFixture(t)

	resp, env := f.do(t, http.MethodPost, "/api/v1/admin/ipos", "", ipoBody)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "MISSING_TOKEN", env.Code)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/admin/ipos", "garbage", ipoBody)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, env = f.do(t, http.MethodPost, "/api/v1/admin/token", "", `{"admin_token":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_ADMIN_TOKEN", env.Code)

	token := f.token(t)
	resp, env = f.do(t, http.MethodPost, "/api/v1/admin/ipos", token, ipoBody)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.UpsertResult
	require.NoError(t, testJSON.Unmarshal(env.Data, &created))
	assert.Equal(t, models.ActionCreated, created.Action)

	resp, env = f.do(t, http.MethodPost, "/api/v1/admin/ipos", token, ipoBody)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var updated models.UpsertResult
	require.NoError(t, testJSON.Unmarshal(env.Data, &updated))
	assert.Equal(t, models.ActionUpdated, updated.Action)
	assert.Equal(t, created.IPOID, updated.IPOID)

	resp, env = f.do(t, http.MethodPost, "/api/v1/admin/ipos", token, `{"company_name":"Broken"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_INPUT", env.Code)
}

func TestAdminBatchIngestion(t *testing.T) {
	f := newAPIFixture(t)
	id := f.addIPO(t, "Batch Co")
	token := f.token(t)

	body := `{"records":[{"ipo_id":"` + id.String() + `","gmp_percent":12.5,"price_per_share":100,"kostak_rates":300,"retail_sauda_rates":1200}]}`
	resp, env := f.do(t, http.MethodPost, "/api/v1/admin/gmp/batch", token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error)
	var batch models.BatchResult
	require.NoError(t, testJSON.Unmarshal(env.Data, &batch))
	assert.Equal(t, 1, batch.InsertedCount)
	assert.True(t, strings.HasPrefix(batch.BatchID, "manual_"))

	current, err := f.store.GetCurrentGMP(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, 12.5, current.GMPPercent)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/admin/gmp/batch", token, `{"records":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	unknown := `{"records":[{"ipo_id":"` + uuid.NewString() + `","qib_sub":1}],"source":"NSE"}`
	resp, _ = f.do(t, http.MethodPost, "/api/v1/admin/subscriptions/batch", token, unknown)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	subs := `{"records":[{"ipo_id":"` + id.String() + `","qib_sub":6,"retail_sub":6}],"source":"NSE"}`
	resp, _ = f.do(t, http.MethodPost, "/api/v1/admin/subscriptions/batch", token, subs)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, env = f.do(t, http.MethodGet, "/api/v1/logs?action=insert_gmp_batch", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var logs []models.SystemLog
	require.NoError(t, testJSON.Unmarshal(env.Data, &logs))
	assert.Len(t, logs, 1)
}

func TestAdminRejectedWritesAreLogged(t *testing.T) {
	f := newAPIFixture(t)
	id := f.addIPO(t, "Audit Co")
	token := f.token(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		path   string
		body   string
		action string
	}{
		{
			name:   "gmp record with zero price",
			path:   "/api/v1/admin/gmp/batch",
			body:   `{"records":[{"ipo_id":"` + id.String() + `","gmp_percent":10,"price_per_share":0}]}`,
			action: "insert_gmp_batch_error",
		},
		{
			name:   "empty gmp batch",
			path:   "/api/v1/admin/gmp/batch",
			body:   `{"records":[]}`,
			action: "insert_gmp_batch_error",
		},
		{
			name:   "subscription record with negative amount",
			path:   "/api/v1/admin/subscriptions/batch",
			body:   `{"records":[{"ipo_id":"` + id.String() + `","qib_sub":1,"total_amount_applied":-5}]}`,
			action: "insert_subscription_batch_error",
		},
		{
			name:   "ipo with unknown status",
			path:   "/api/v1/admin/ipos",
			body:   strings.Replace(ipoBody, `"exchange": "NSE"`, `"exchange": "NSE", "status": "bogus"`, 1),
			action: "create_or_update_ipo_error",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			before, err := f.store.ListSystemLogs(ctx, 0, c.action)
			require.NoError(t, err)

			resp, env := f.do(t, http.MethodPost, c.path, token, c.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, env.Error)
			assert.False(t, env.Success)

			after, err := f.store.ListSystemLogs(ctx, 0, c.action)
			require.NoError(t, err)
			assert.Len(t, after, len(before)+1)
		})
	}

	current, err := f.store.GetCurrentGMP(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, current)

	resp, _ := f.do(t, http.MethodPost, "/api/v1/admin/gmp/batch", token, `{"records":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDisplayAndExportRoutes(t *testing.T) {
	f := newAPIFixture(t)
	f.addIPO(t, "Beta Co")
	f.addIPO(t, "Alpha Co")

	resp, env := f.do(t, http.MethodGet, "/api/v1/display/gmp?sort=company&order=desc", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var display DisplayResponse
	require.NoError(t, testJSON.Unmarshal(env.Data, &display))
	require.Len(t, display.Records, 2)
	assert.Equal(t, "Beta Co", display.Records[0].Company)
	assert.Equal(t, "data", display.Table.State)
	assert.Len(t, display.Table.Rows, 2)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/display/unknown", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/export/gmp.csv?sort=company", nil)
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "ipo-gmp-data-2024-01-03.csv")
	raw, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Alpha Co")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/export/subscription.xlsx", nil)
	resp, err = f.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))
	raw, _ = io.ReadAll(resp.Body)
	assert.True(t, bytes.HasPrefix(raw, []byte("PK")), "xlsx should be a zip archive")

	resp, _ = f.do(t, http.MethodGet, "/api/v1/export/gmp.pdf", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSeedJobsAndMetricsRoutes(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t)

	resp, env := f.do(t, http.MethodPost, "/api/v1/admin/seed/gmp-history", token, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, env.Error, "Please seed IPOs first")

	resp, _ = f.do(t, http.MethodPost, "/api/v1/admin/seed/all", token, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = f.do(t, http.MethodGet, "/api/v1/stats", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var stats models.DashboardStats
	require.NoError(t, testJSON.Unmarshal(env.Data, &stats))
	assert.Equal(t, 7, stats.TotalIPOs)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/admin/jobs/status_refresh/run", token, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = f.do(t, http.MethodPost, "/api/v1/admin/jobs/nope/run", token, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, env = f.do(t, http.MethodGet, "/api/v1/admin/metrics", token, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env.Data), "cache_stats")
	assert.Contains(t, string(env.Data), "status_refresh")

	resp, _ = f.do(t, http.MethodDelete, "/api/v1/admin/data", token, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, env = f.do(t, http.MethodGet, "/api/v1/ipos/dashboard", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "[]", string(env.Data))
}

func TestLiveHubBroadcastsChanges(t *testing.T) {
	hub := NewLiveHub(shared.LiveConfig{WriteTimeout: time.Second, SendBuffer: 4})
	server := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	bus := services.NewEventBus()
	bus.Subscribe("live", hub.OnChange)
	bus.Publish(context.Background(), "insert_gmp_batch", "gmp")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var event services.ChangeEvent
	require.NoError(t, testJSON.Unmarshal(msg, &event))
	assert.Equal(t, services.ChangeEventType, event.Type)
	assert.Equal(t, "insert_gmp_batch", event.Action)
	assert.Equal(t, "gmp", event.Entity)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
