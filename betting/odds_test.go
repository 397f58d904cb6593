package betting

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDecimalMultiplier(t *testing.T) {
	tests := []struct {
		name     string
		odds     string
		expected string
	}{
		{"positive underdog", "150", "2.5"},
		{"even money", "100", "2"},
		{"negative favourite", "-200", "1.5"},
		{"standard juice", "-110", "1.9090909090909091"},
		{"fractional quote", "125.50", "2.255"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := DecimalMultiplier(dec(tt.odds))
			require.NoError(t, err)
			assert.True(t, dec(tt.expected).Equal(m), "expected %s, got %s", tt.expected, m)
		})
	}
}

func TestDecimalMultiplier_ZeroOdds(t *testing.T) {
	_, err := DecimalMultiplier(decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidOdds)
}

func TestValidateOdds(t *testing.T) {
	assert.NoError(t, ValidateOdds(dec("-110")))
	assert.NoError(t, ValidateOdds(dec("+105.25")))
	assert.ErrorIs(t, ValidateOdds(dec("0.00")), ErrInvalidOdds)
	assert.ErrorIs(t, ValidateOdds(dec("-110.001")), ErrTooPrecise)
}

func TestHasMoneyPrecision(t *testing.T) {
	assert.True(t, HasMoneyPrecision(dec("10")))
	assert.True(t, HasMoneyPrecision(dec("10.5")))
	assert.True(t, HasMoneyPrecision(dec("10.50")))
	assert.True(t, HasMoneyPrecision(dec("10.500")))
	assert.False(t, HasMoneyPrecision(dec("10.505")))
}
