package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-dalal/config"
	"github.com/fenilmodi00/ipo-dalal/database"
	"github.com/fenilmodi00/ipo-dalal/services"
	"github.com/fenilmodi00/ipo-dalal/shared"
)

// runHealthCheck probes a deployment from the outside and returns the process
// exit code: 0 when every check passed, 1 otherwise
func runHealthCheck(cfg *config.Config, unified *shared.UnifiedConfiguration) int {
	fmt.Printf("IPO Dalal Health Check - %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Println(strings.Repeat("=", 50))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	healthScore := 0
	totalTests := 0
	report := func(name string, err error, ok string) {
		totalTests++
		if err != nil {
			fmt.Printf("%-16s FAILED (%v)\n", name+":", err)
			return
		}
		fmt.Printf("%-16s OK %s\n", name+":", ok)
		healthScore++
	}

	// API
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://localhost:" + cfg.ServerPort + "/health")
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			err = fmt.Errorf("status %d", resp.StatusCode)
		}
	}
	report("API", err, "")

	// GMP feed
	if cfg.GMPFeedURL != "" {
		collector := services.NewGMPFeedCollector(services.NewDefaultGMPFeedConfig(cfg.GMPFeedURL), nil, nil)
		rows, err := collector.Fetch(ctx)
		report("GMP feed", err, fmt.Sprintf("(%d rows)", len(rows)))
	}

	// Database
	if cfg.StoreBackend == "postgres" {
		err := database.ConnectWithConfig(cfg.DatabaseURL, &unified.Database)
		if err == nil {
			defer database.Close()
			err = database.HealthCheck()
		}
		report("Database", err, "")
		if err == nil {

			schema, err := database.NewSchemaValidator(database.DB).Validate(ctx)
			if err == nil && !schema.Valid() {
				err = fmt.Errorf("missing tables %v, missing indexes %v", schema.MissingTables, schema.MissingIndexes)
			}
			report("Schema", err, "")

			queries := services.NewQueryService(database.NewPostgresStore(database.DB, 0), unified.History)
			counts, err := queries.GetStatusCounts(ctx)
			summary := ""
			if err == nil {
				summary = fmt.Sprintf("(%d IPOs, %d open)", counts.All, counts.Open)
			}
			report("Database data", err, summary)
		}
	}

	fmt.Println(strings.Repeat("-", 50))
	healthPercent := float64(healthScore) / float64(totalTests) * 100
	switch {
	case healthScore == totalTests:
		fmt.Printf("SYSTEM HEALTHY: %d/%d checks passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	case healthScore >= totalTests/2:
		fmt.Printf("SYSTEM DEGRADED: %d/%d checks passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	default:
		fmt.Printf("SYSTEM UNHEALTHY: %d/%d checks passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	}

	if healthScore == totalTests {
		return 0
	}
	return 1
}
