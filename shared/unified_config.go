package shared

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// UnifiedConfiguration holds the tuning parameters that can be overridden
// from a YAML file
type UnifiedConfiguration struct {
	Database DatabaseConfig `json:"database" yaml:"database"`
	Cache    CacheConfig    `json:"cache" yaml:"cache"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	History  HistoryConfig  `json:"history" yaml:"history"`
	Live     LiveConfig     `json:"live" yaml:"live"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	PingTimeout     time.Duration `json:"ping_timeout" yaml:"ping_timeout"`
	MaxTxRetries    int           `json:"max_tx_retries" yaml:"max_tx_retries"`
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	DefaultTTL time.Duration `json:"default_ttl" yaml:"default_ttl"`
	MaxSize    int           `json:"max_size" yaml:"max_size"`
	KeyPrefix  string        `json:"key_prefix" yaml:"key_prefix"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `json:"level" yaml:"level"`
	Format      string `json:"format" yaml:"format"`
	ServiceName string `json:"service_name" yaml:"service_name"`
}

// HistoryConfig bounds the history windows attached to single IPO reads
type HistoryConfig struct {
	DetailGMPDays           int `json:"detail_gmp_days" yaml:"detail_gmp_days"`
	DetailSubscriptionHours int `json:"detail_subscription_hours" yaml:"detail_subscription_hours"`
	DefaultLogLimit         int `json:"default_log_limit" yaml:"default_log_limit"`
}

// LiveConfig tunes the websocket push feed
type LiveConfig struct {
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	SendBuffer   int           `json:"send_buffer" yaml:"send_buffer"`
}

// NewDefaultUnifiedConfiguration returns production-ready default configuration
func NewDefaultUnifiedConfiguration() *UnifiedConfiguration {
	return &UnifiedConfiguration{
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			PingTimeout:     5 * time.Second,
			MaxTxRetries:    3,
		},
		Cache: CacheConfig{
			DefaultTTL: time.Minute,
			MaxSize:    1000,
			KeyPrefix:  "ipo-dalal:",
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "ipo-dalal",
		},
		History: HistoryConfig{
			DetailGMPDays:           7,
			DetailSubscriptionHours: 7 * 24,
			DefaultLogLimit:         100,
		},
		Live: LiveConfig{
			WriteTimeout: 10 * time.Second,
			SendBuffer:   16,
		},
	}
}

// ValidateAndApplyDefaults validates configuration and applies defaults for invalid values
func (c *UnifiedConfiguration) ValidateAndApplyDefaults() {
	logger := logrus.WithField("component", "UnifiedConfiguration")
	defaults := NewDefaultUnifiedConfiguration()

	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
		logger.Debug("Applied default Database.MaxOpenConns")
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
		logger.Debug("Applied default Database.MaxIdleConns")
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = defaults.Database.ConnMaxLifetime
		logger.Debug("Applied default Database.ConnMaxLifetime")
	}
	if c.Database.ConnMaxIdleTime <= 0 {
		c.Database.ConnMaxIdleTime = defaults.Database.ConnMaxIdleTime
	}
	if c.Database.PingTimeout <= 0 {
		c.Database.PingTimeout = defaults.Database.PingTimeout
	}
	if c.Database.MaxTxRetries < 0 {
		c.Database.MaxTxRetries = 0
	}

	if c.Cache.DefaultTTL <= 0 {
		c.Cache.DefaultTTL = defaults.Cache.DefaultTTL
		logger.Debug("Applied default Cache.DefaultTTL")
	}
	if c.Cache.MaxSize <= 0 {
		c.Cache.MaxSize = defaults.Cache.MaxSize
		logger.Debug("Applied default Cache.MaxSize")
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = defaults.Cache.KeyPrefix
	}

	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = defaults.Logging.ServiceName
	}

	if c.History.DetailGMPDays <= 0 {
		c.History.DetailGMPDays = defaults.History.DetailGMPDays
	}
	if c.History.DetailSubscriptionHours <= 0 {
		c.History.DetailSubscriptionHours = defaults.History.DetailSubscriptionHours
	}
	if c.History.DefaultLogLimit <= 0 {
		c.History.DefaultLogLimit = defaults.History.DefaultLogLimit
	}

	if c.Live.WriteTimeout <= 0 {
		c.Live.WriteTimeout = defaults.Live.WriteTimeout
	}
	if c.Live.SendBuffer <= 0 {
		c.Live.SendBuffer = defaults.Live.SendBuffer
	}
}

// LoadFromYAML overlays the YAML document onto the configuration and
// re-applies defaults for anything left unset
func (c *UnifiedConfiguration) LoadFromYAML(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	c.ValidateAndApplyDefaults()
	return nil
}

// LoadUnifiedConfiguration returns the defaults, overridden by the YAML file
// at path when one is given
func LoadUnifiedConfiguration(path string) (*UnifiedConfiguration, error) {
	cfg := NewDefaultUnifiedConfiguration()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := cfg.LoadFromYAML(data); err != nil {
		return nil, err
	}

	logrus.WithField("path", path).Info("Loaded configuration overrides")
	return cfg, nil
}
