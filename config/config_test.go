package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 3, cfg.SettlementMaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.ScoreFetchTimeout)
	assert.Equal(t, "@every 5m", cfg.SettlementPollSchedule)
	assert.True(t, cfg.StartingBalance.Equal(decimal.RequireFromString("1000")))
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("SETTLEMENT_MAX_ATTEMPTS", "5")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("STARTING_BALANCE", "250.50")
	t.Setenv("SCORE_FETCH_TIMEOUT", "3s")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.SettlementMaxAttempts)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.StartingBalance.Equal(decimal.RequireFromString("250.50")))
	assert.Equal(t, 3*time.Second, cfg.ScoreFetchTimeout)
}

func TestLoad_Validation(t *testing.T) {
	t.Run("database url required outside test", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("DATABASE_URL", "")

		_, err := load(viper.New())
		assert.ErrorContains(t, err, "DATABASE_URL is required")
	})

	t.Run("starting balance precision", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "test")
		t.Setenv("STARTING_BALANCE", "10.001")

		_, err := load(viper.New())
		assert.Error(t, err)
	})

	t.Run("max attempts must be positive", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "test")
		t.Setenv("SETTLEMENT_MAX_ATTEMPTS", "0")

		_, err := load(viper.New())
		assert.Error(t, err)
	})
}

func TestSetTestConfig(t *testing.T) {
	defer ResetConfig()

	cfg := NewTestConfig()
	cfg.HTTPAddr = ":1234"
	SetTestConfig(cfg)

	assert.Same(t, cfg, Get())
}
