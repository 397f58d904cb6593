package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"sportsbook/database"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// Listen addresses
	HTTPAddr    string
	MetricsAddr string

	// Redis configuration (score snapshot cache, disabled when empty)
	RedisAddr     string
	ScoreCacheTTL time.Duration

	// Kafka configuration (settlement notifications, disabled when empty)
	KafkaBrokers         []string
	KafkaSettlementTopic string

	// Score provider configuration
	ScoreProviderURL  string
	ScoreFetchTimeout time.Duration

	// Settlement configuration
	SettlementMaxAttempts  int
	SettlementRetryBackoff time.Duration
	SettlementPollSchedule string // cron schedule, empty disables the poller
	SettlementWorkers      int

	// Account configuration
	StartingBalance decimal.Decimal

	// Logging
	LogLevel string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load(viper.New())
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("SCORE_CACHE_TTL", "24h")
	v.SetDefault("KAFKA_SETTLEMENT_TOPIC", "sportsbook.settlements")
	v.SetDefault("SCORE_PROVIDER_URL", "https://cdn.nba.com/static/json/liveData/boxscore")
	v.SetDefault("SCORE_FETCH_TIMEOUT", "10s")
	v.SetDefault("SETTLEMENT_MAX_ATTEMPTS", 3)
	v.SetDefault("SETTLEMENT_RETRY_BACKOFF", "100ms")
	v.SetDefault("SETTLEMENT_POLL_SCHEDULE", "@every 5m")
	v.SetDefault("SETTLEMENT_WORKERS", 4)
	v.SetDefault("STARTING_BALANCE", "1000.00")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ENVIRONMENT", "development")
}

// load reads configuration from environment variables
func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	setDefaults(v)

	startingBalance, err := decimal.NewFromString(v.GetString("STARTING_BALANCE"))
	if err != nil {
		return nil, fmt.Errorf("invalid STARTING_BALANCE: %w", err)
	}

	config := &Config{
		DatabaseURL:  v.GetString("DATABASE_URL"),
		DatabaseName: v.GetString("DATABASE_NAME"),

		HTTPAddr:    v.GetString("HTTP_ADDR"),
		MetricsAddr: v.GetString("METRICS_ADDR"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		ScoreCacheTTL: v.GetDuration("SCORE_CACHE_TTL"),

		KafkaBrokers:         splitList(v.GetString("KAFKA_BROKERS")),
		KafkaSettlementTopic: v.GetString("KAFKA_SETTLEMENT_TOPIC"),

		ScoreProviderURL:  v.GetString("SCORE_PROVIDER_URL"),
		ScoreFetchTimeout: v.GetDuration("SCORE_FETCH_TIMEOUT"),

		SettlementMaxAttempts:  v.GetInt("SETTLEMENT_MAX_ATTEMPTS"),
		SettlementRetryBackoff: v.GetDuration("SETTLEMENT_RETRY_BACKOFF"),
		SettlementPollSchedule: v.GetString("SETTLEMENT_POLL_SCHEDULE"),
		SettlementWorkers:      v.GetInt("SETTLEMENT_WORKERS"),

		StartingBalance: startingBalance,

		LogLevel:    v.GetString("LOG_LEVEL"),
		Environment: v.GetString("ENVIRONMENT"),
	}

	if config.SettlementMaxAttempts < 1 {
		return nil, fmt.Errorf("SETTLEMENT_MAX_ATTEMPTS must be at least 1")
	}
	if config.SettlementWorkers < 1 {
		config.SettlementWorkers = 1
	}
	if config.StartingBalance.IsNegative() || !config.StartingBalance.Equal(config.StartingBalance.Round(2)) {
		return nil, fmt.Errorf("STARTING_BALANCE must be a non-negative amount with at most 2 decimal places")
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	}

	return config, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		ScoreFetchTimeout:      time.Second,
		ScoreCacheTTL:          time.Hour,
		SettlementMaxAttempts:  3,
		SettlementRetryBackoff: time.Millisecond,
		SettlementWorkers:      2,
		StartingBalance:        decimal.RequireFromString("1000.00"),
		LogLevel:               "debug",
		Environment:            "test",
	}
}
