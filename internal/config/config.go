package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Market    MarketConfig
	Providers ProvidersConfig
	Refresh   RefreshConfig
	Storage   StorageConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	Scheduler SchedulerConfig
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// MarketConfig identifies the market being refreshed and its exchanges
type MarketConfig struct {
	Name             string
	Exchanges        []string
	HistoryStartDate string
}

// ProviderConfig holds configuration for one upstream quote provider
type ProviderConfig struct {
	BaseURL string
	Timeout time.Duration
}

// CatalogConfig holds configuration for the exchange listing catalog endpoint
type CatalogConfig struct {
	URLTemplate string
	Timeout     time.Duration
}

// ProvidersConfig groups the upstream data sources
type ProvidersConfig struct {
	Primary   ProviderConfig
	Secondary ProviderConfig
	Catalog   CatalogConfig
}

// RefreshConfig bounds the refresh pipeline
type RefreshConfig struct {
	Concurrency   int
	RetryCount    int
	RetryInterval time.Duration
}

// StorageConfig holds file and database locations
type StorageConfig struct {
	PricesDir   string
	ListingsDir string
	RunsDB      string
}

// KafkaConfig holds Kafka specific configuration
type KafkaConfig struct {
	Enabled bool
	Brokers string
	Topic   string
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string
}

// SchedulerConfig holds the daily refresh schedule
type SchedulerConfig struct {
	Enabled         bool
	DailyAt         string
	RefreshListings bool
}

// LoadConfig loads the configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file if present
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8085")
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.idleTimeout", "120s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Market defaults
	v.SetDefault("market.name", "us")
	v.SetDefault("market.exchanges", []string{"nasdaq", "nyse", "amex"})
	v.SetDefault("market.historyStartDate", "2000-01-01")

	// Provider defaults
	v.SetDefault("providers.primary.baseURL", "https://query1.finance.yahoo.com")
	v.SetDefault("providers.primary.timeout", "15s")
	v.SetDefault("providers.secondary.baseURL", "https://stooq.com")
	v.SetDefault("providers.secondary.timeout", "15s")
	v.SetDefault("providers.catalog.urlTemplate", "https://old.nasdaq.com/screening/companies-by-name.aspx?letter=0&exchange=%s&render=download")
	v.SetDefault("providers.catalog.timeout", "30s")

	// Refresh defaults
	v.SetDefault("refresh.concurrency", 20)
	v.SetDefault("refresh.retryCount", 3)
	v.SetDefault("refresh.retryInterval", "1s")

	// Storage defaults
	v.SetDefault("storage.pricesDir", "data/prices")
	v.SetDefault("storage.listingsDir", "data/listings")
	v.SetDefault("storage.runsDB", "data/runs.db")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "refresh-events")

	// Auth defaults
	v.SetDefault("auth.jwtSecret", "market-refresh-key")

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.dailyAt", "18:00")
	v.SetDefault("scheduler.refreshListings", true)
}

// validate checks settings the refresh pipeline cannot run without
func (c *Config) validate() error {
	if len(c.Market.Exchanges) == 0 {
		return fmt.Errorf("market.exchanges must not be empty")
	}
	if c.Refresh.Concurrency < 1 {
		return fmt.Errorf("refresh.concurrency must be at least 1, got %d", c.Refresh.Concurrency)
	}
	if c.Refresh.RetryCount < 1 {
		return fmt.Errorf("refresh.retryCount must be at least 1, got %d", c.Refresh.RetryCount)
	}
	if _, err := time.Parse("2006-01-02", c.Market.HistoryStartDate); err != nil {
		return fmt.Errorf("market.historyStartDate must be yyyy-mm-dd: %w", err)
	}
	return nil
}
