package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/fenilmodi00/ipo-dalal/config"
	"github.com/fenilmodi00/ipo-dalal/database"
	"github.com/fenilmodi00/ipo-dalal/handlers"
	"github.com/fenilmodi00/ipo-dalal/jobs"
	"github.com/fenilmodi00/ipo-dalal/services"
	"github.com/fenilmodi00/ipo-dalal/shared"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	unified, err := shared.LoadUnifiedConfiguration(cfg.ConfigFile)
	if err != nil {
		logrus.Fatalf("Failed to load %s: %v", cfg.ConfigFile, err)
	}
	unified.Logging.Level = cfg.LogLevel
	unified.Logging.Format = cfg.LogFormat
	shared.ConfigureLogging(unified.Logging)

	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(runHealthCheck(cfg, unified))
	}

	loc := cfg.Location()

	// Store
	var store database.Store
	switch cfg.StoreBackend {
	case "postgres":
		if err := database.ConnectWithConfig(cfg.DatabaseURL, &unified.Database); err != nil {
			logrus.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		if err := database.Migrate(database.DB); err != nil {
			logrus.Fatalf("Migration failed: %v", err)
		}
		report, err := database.NewSchemaValidator(database.DB).Validate(context.Background())
		if err != nil {
			logrus.WithError(err).Warn("Schema validation could not run")
		} else if !report.Valid() {
			logrus.WithFields(logrus.Fields{
				"missing_tables":  report.MissingTables,
				"missing_indexes": report.MissingIndexes,
			}).Warn("Database schema is incomplete")
		}
		store = database.NewPostgresStore(database.DB, unified.Database.MaxTxRetries)
	default:
		logrus.Warn("Using in-memory store, data will not survive a restart")
		store = database.NewMemoryStore()
	}

	// Cache
	var cacheBackend services.CacheBackend
	var cachePinger handlers.Pinger
	if cfg.CacheBackend == "redis" {
		redisCache := services.NewRedisCache(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, unified.Cache.KeyPrefix)
		defer redisCache.Close()
		cacheBackend, cachePinger = redisCache, redisCache
	} else {
		cacheBackend = services.NewMemoryCache(unified.Cache.MaxSize)
	}
	cacheService := services.NewCacheService(cacheBackend, cfg.GetCacheTTL())

	// Services
	events := services.NewEventBus()
	events.Subscribe("cache", cacheService.OnChange)

	ipoService := services.NewIPOService(store, events, loc)
	gmpService := services.NewGMPService(store, events, loc)
	subscriptionService := services.NewSubscriptionService(store, events)
	seedService := services.NewSeedService(store, events, loc, rand.New(rand.NewSource(time.Now().UnixNano())))
	queryService := services.NewQueryService(store, unified.History)
	cachedQueries := services.NewCachedQueryService(queryService, cacheService)
	collector := services.NewGMPFeedCollector(services.NewDefaultGMPFeedConfig(cfg.GMPFeedURL), store, gmpService)

	logrus.WithFields(logrus.Fields{
		"store":     cfg.StoreBackend,
		"cache":     cacheBackend.Name(),
		"cache_ttl": cfg.GetCacheTTL(),
		"timezone":  loc.String(),
		"gmp_feed":  collector.Enabled(),
	}).Info("IPO Dalal services initialized")

	// Live feed
	liveHub := handlers.NewLiveHub(unified.Live)
	events.Subscribe("live", liveHub.OnChange)
	liveMux := http.NewServeMux()
	liveMux.Handle("/live", liveHub)
	liveServer := &http.Server{
		Addr:              ":" + cfg.LivePort,
		Handler:           liveMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Jobs
	scheduler := jobs.NewScheduler(loc)
	metricSources := []jobs.MetricsSource{
		ipoService, gmpService, subscriptionService, seedService, queryService, collector, scheduler,
	}
	registrations := []struct {
		spec string
		job  jobs.Job
	}{
		{cfg.StatusRefreshSchedule, jobs.NewStatusRefreshJob(ipoService)},
		{cfg.CacheCleanupSchedule, jobs.NewCacheCleanupJob(cacheService)},
		{cfg.MetricsSummarySchedule, jobs.NewMetricsSummaryJob(metricSources...)},
		{feedSchedule(cfg), jobs.NewGMPFeedJob(collector)},
	}
	for _, r := range registrations {
		if err := scheduler.Register(r.spec, r.job); err != nil {
			logrus.Fatalf("Failed to register job %s: %v", r.job.Name(), err)
		}
	}

	if cfg.SeedOnStart {
		if result, err := seedService.SeedAll(context.Background()); err != nil {
			logrus.WithError(err).Error("Startup seeding failed")
		} else {
			logrus.Info(result.Message)
		}
	}

	go func() {
		if err := cachedQueries.WarmupCache(context.Background()); err != nil {
			logrus.WithError(err).Warn("Cache warmup failed")
		} else {
			logrus.Info("Cache warmed up successfully")
		}
	}()

	// HTTP API
	app := handlers.NewApp(true)
	handlers.SetupRoutes(app, handlers.Handlers{
		IPO:     handlers.NewIPOHandler(cachedQueries),
		GMP:     handlers.NewGMPHandler(cachedQueries),
		Display: handlers.NewDisplayHandler(cachedQueries),
		Admin:   handlers.NewAdminHandler(ipoService, gmpService, subscriptionService, seedService, scheduler),
		Auth: handlers.NewAuthHandler(cfg.AdminToken, shared.TokenIssuer{
			Secret:   []byte(cfg.JWTSecret),
			TokenTTL: cfg.JWTTTL,
		}),
		Performance: handlers.NewPerformanceHandler(database.DB, cacheService, cachedQueries, scheduler, metricSources...),
		Health:      handlers.NewHealthHandler(store, cachePinger),
	})

	if cfg.AdminToken == "" || cfg.JWTSecret == "" {
		logrus.Warn("ADMIN_TOKEN or JWT_SECRET not set, admin routes are unreachable")
	}

	scheduler.Start()

	go func() {
		logrus.Infof("Live feed listening on port %s", cfg.LivePort)
		if err := liveServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Live feed server failed: %v", err)
		}
	}()

	go func() {
		logrus.Infof("Server starting on port %s", cfg.ServerPort)
		if err := app.Listen(":" + cfg.ServerPort); err != nil {
			logrus.Fatalf("Server failed to start: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logrus.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP server shutdown incomplete")
	}
	liveHub.Close()
	if err := liveServer.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Live feed shutdown incomplete")
	}
	scheduler.Stop(shutdownCtx)
}

// feedSchedule only schedules the collector when a feed URL is configured
func feedSchedule(cfg *config.Config) string {
	if cfg.GMPFeedURL == "" {
		return ""
	}
	return cfg.GMPFeedSchedule
}
