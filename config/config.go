package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort  string `env:"SERVER_PORT" envDefault:"8080"`
	LivePort    string `env:"LIVE_PORT" envDefault:"8081"`
	DatabaseURL string `env:"DATABASE_URL"`

	// postgres or memory
	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres"`

	// memory or redis
	CacheBackend    string `env:"CACHE_BACKEND" envDefault:"memory"`
	RedisAddr       string `env:"REDIS_ADDR"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisDB         int    `env:"REDIS_DB" envDefault:"0"`
	CacheTTLSeconds int    `env:"CACHE_TTL_SECONDS" envDefault:"60"`

	AdminToken string        `env:"ADMIN_TOKEN"`
	JWTSecret  string        `env:"JWT_SECRET"`
	JWTTTL     time.Duration `env:"JWT_TTL" envDefault:"12h"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	Timezone  string `env:"TIMEZONE" envDefault:"Asia/Kolkata"`

	StatusRefreshSchedule  string `env:"STATUS_REFRESH_SCHEDULE" envDefault:"5 0 * * *"`
	CacheCleanupSchedule   string `env:"CACHE_CLEANUP_SCHEDULE" envDefault:"*/10 * * * *"`
	MetricsSummarySchedule string `env:"METRICS_SUMMARY_SCHEDULE" envDefault:"0 * * * *"`
	GMPFeedURL             string `env:"GMP_FEED_URL"`
	GMPFeedSchedule        string `env:"GMP_FEED_SCHEDULE" envDefault:"*/30 9-17 * * 1-5"`

	SeedOnStart bool   `env:"SEED_ON_START" envDefault:"false"`
	ConfigFile  string `env:"CONFIG_FILE"`
}

// GetCacheTTL returns the cache TTL, falling back to one minute
func (c *Config) GetCacheTTL() time.Duration {
	if c.CacheTTLSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Location resolves the configured timezone. IST is used when the zone
// database does not know it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		logrus.Warnf("Unknown TIMEZONE %q, using fixed IST offset", c.Timezone)
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return loc
}

// Validate checks the combinations the server cannot start with
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.CacheBackend {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when CACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unsupported CACHE_BACKEND %q", c.CacheBackend)
	}

	if c.JWTSecret != "" && len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 bytes")
	}
	return nil
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
