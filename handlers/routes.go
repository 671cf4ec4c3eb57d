package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	jsoniter "github.com/json-iterator/go"
)

// Handlers bundles everything the router mounts
type Handlers struct {
	IPO         *IPOHandler
	GMP         *GMPHandler
	Display     *DisplayHandler
	Admin       *AdminHandler
	Auth        *AuthHandler
	Performance *PerformanceHandler
	Health      *HealthHandler
}

// NewApp builds the Fiber app with the JSON codec, middleware and error
// envelope used by every route
func NewApp(accessLog bool) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:     "ipo-dalal",
		JSONEncoder: jsoniter.ConfigCompatibleWithStandardLibrary.Marshal,
		JSONDecoder: jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
			})
		},
	})

	app.Use(recover.New())
	if accessLog {
		app.Use(logger.New())
	}
	app.Use(cors.New())
	return app
}

// SetupRoutes mounts the public, admin and health routes
func SetupRoutes(app *fiber.App, h Handlers) {
	app.Get("/health", h.Health.Health)

	api := app.Group("/api/v1")

	api.Get("/ipos/dashboard", h.IPO.GetDashboard)
	api.Get("/ipos/live", h.IPO.GetLiveIPOs)
	api.Get("/ipos/listed", h.IPO.GetListedIPOs)
	api.Get("/ipos/:id/gmp-history", h.GMP.GetGMPHistory)
	api.Get("/ipos/:id/subscription-trends", h.GMP.GetSubscriptionTrends)
	api.Get("/ipos/:id/charts", h.Display.GetCharts)
	api.Get("/ipos/:id", h.IPO.GetIPOByID)

	api.Get("/gmp", h.GMP.GetGMPAggregator)
	api.Get("/subscriptions", h.GMP.GetSubscriptions)
	api.Get("/stats", h.IPO.GetStats)
	api.Get("/counts", h.IPO.GetCounts)
	api.Get("/logs", h.IPO.GetSystemLogs)

	api.Get("/display/:view", h.Display.GetDisplay)
	api.Get("/export/:file", h.Display.Export)

	admin := api.Group("/admin")
	admin.Post("/token", h.Auth.IssueToken)

	protected := admin.Group("", h.Auth.RequireAdmin)
	protected.Post("/ipos", h.Admin.CreateOrUpdateIPO)
	protected.Put("/ipos/:id/listing", h.Admin.UpdateListingDetails)
	protected.Post("/gmp/batch", h.Admin.InsertGMPBatch)
	protected.Post("/subscriptions/batch", h.Admin.InsertSubscriptionBatch)

	protected.Post("/seed/ipos", h.Admin.SeedIPOs)
	protected.Post("/seed/gmp-history", h.Admin.SeedGMPHistory)
	protected.Post("/seed/subscription-history", h.Admin.SeedSubscriptionHistory)
	protected.Post("/seed/all", h.Admin.SeedAll)
	protected.Delete("/data", h.Admin.ClearAllData)

	protected.Get("/jobs", h.Admin.ListJobs)
	protected.Post("/jobs/:name/run", h.Admin.RunJob)

	protected.Get("/metrics", h.Performance.GetMetrics)
	protected.Delete("/cache", h.Performance.ClearCache)
	protected.Post("/cache/warmup", h.Performance.WarmupCache)
}
