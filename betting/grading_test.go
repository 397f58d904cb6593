package betting

import (
	"testing"

	"sportsbook/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestGrade(t *testing.T) {
	tests := []struct {
		name     string
		kind     models.BetKind
		line     *decimal.Decimal
		home     int
		away     int
		expected models.Verdict
	}{
		// spreads, home side
		{"favourite covers", models.BetKindSpreadHome, line("-5.5"), 100, 92, models.VerdictWon},
		{"favourite fails to cover", models.BetKindSpreadHome, line("-5.5"), 100, 95, models.VerdictLost},
		{"favourite wins by exactly the line", models.BetKindSpreadHome, line("-5"), 100, 95, models.VerdictWon},
		{"underdog covers in a loss", models.BetKindSpreadHome, line("5.5"), 90, 94, models.VerdictWon},
		{"underdog misses the cover", models.BetKindSpreadHome, line("5.5"), 88, 94, models.VerdictLost},
		{"underdog lands on the number", models.BetKindSpreadHome, line("6"), 88, 94, models.VerdictLost},
		{"zero spread never covers", models.BetKindSpreadHome, line("0"), 110, 90, models.VerdictLost},

		// spreads, away side mirrors home
		{"away favourite covers", models.BetKindSpreadAway, line("-3.5"), 90, 97, models.VerdictWon},
		{"away favourite on the number", models.BetKindSpreadAway, line("-7"), 90, 97, models.VerdictWon},
		{"away underdog covers", models.BetKindSpreadAway, line("4.5"), 100, 96, models.VerdictWon},
		{"away underdog on the number", models.BetKindSpreadAway, line("4"), 100, 96, models.VerdictLost},

		// totals
		{"over hits", models.BetKindOver, line("210.5"), 110, 101, models.VerdictWon},
		{"over misses", models.BetKindOver, line("210.5"), 100, 101, models.VerdictLost},
		{"over pushes", models.BetKindOver, line("220.0"), 110, 110, models.VerdictPush},
		{"under hits", models.BetKindUnder, line("210.5"), 100, 101, models.VerdictWon},
		{"under misses", models.BetKindUnder, line("210.5"), 110, 101, models.VerdictLost},
		{"under pushes", models.BetKindUnder, line("220"), 120, 100, models.VerdictPush},

		// moneylines
		{"home wins outright", models.BetKindMoneylineHome, nil, 101, 99, models.VerdictWon},
		{"home loses outright", models.BetKindMoneylineHome, nil, 99, 101, models.VerdictLost},
		{"away wins outright", models.BetKindMoneylineAway, nil, 99, 101, models.VerdictWon},
		{"away loses outright", models.BetKindMoneylineAway, nil, 101, 99, models.VerdictLost},
		{"tie loses home moneyline", models.BetKindMoneylineHome, nil, 100, 100, models.VerdictLost},
		{"tie loses away moneyline", models.BetKindMoneylineAway, nil, 100, 100, models.VerdictLost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := Grade(tt.kind, tt.line, tt.home, tt.away)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, verdict)
		})
	}
}

func TestGrade_SpreadsNeverPush(t *testing.T) {
	// walk every margin around a set of whole-number lines
	for _, l := range []string{"-7", "-3", "-1", "1", "3", "7"} {
		for margin := -10; margin <= 10; margin++ {
			for _, kind := range []models.BetKind{models.BetKindSpreadHome, models.BetKindSpreadAway} {
				verdict, err := Grade(kind, line(l), 100+margin, 100)
				require.NoError(t, err)
				assert.NotEqual(t, models.VerdictPush, verdict, "kind %s line %s margin %d", kind, l, margin)
			}
		}
	}
}

func TestGrade_Errors(t *testing.T) {
	_, err := Grade(models.BetKindSpreadHome, nil, 100, 90)
	assert.ErrorIs(t, err, ErrMissingLine)

	_, err = Grade(models.BetKindOver, nil, 100, 90)
	assert.ErrorIs(t, err, ErrMissingLine)

	_, err = Grade(models.BetKind("parlay"), nil, 100, 90)
	assert.ErrorIs(t, err, ErrUnknownBetKind)
}

func TestGradeWager(t *testing.T) {
	wager := &models.Wager{Kind: models.BetKindUnder, Line: line("220.0")}
	snapshot := &models.ScoreSnapshot{Terminal: true, HomeScore: 105, AwayScore: 115}

	verdict, err := GradeWager(wager, snapshot)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictPush, verdict)
}
