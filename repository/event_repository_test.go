package repository

import (
	"context"
	"testing"
	"time"

	"sportsbook/models"
	"sportsbook/repository/testutil"
	"sportsbook/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRepository_CreateAndLookup(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewEventRepository(testDB.DB)
	ctx := context.Background()

	event := testutil.CreateTestEvent("0022400001")
	require.NoError(t, repo.Create(ctx, event))
	assert.NotZero(t, event.ID)
	assert.False(t, event.Completed)

	t.Run("by id", func(t *testing.T) {
		found, err := repo.GetByID(ctx, event.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, event.ExternalID, found.ExternalID)
		assert.Nil(t, found.HomeScore)
	})

	t.Run("by external id", func(t *testing.T) {
		found, err := repo.GetByExternalID(ctx, "0022400001")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, event.ID, found.ID)

		missing, err := repo.GetByExternalID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("duplicate external id", func(t *testing.T) {
		err := repo.Create(ctx, testutil.CreateTestEvent("0022400001"))
		var validationErr *service.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("by date", func(t *testing.T) {
		events, err := repo.GetByDate(ctx, event.ScheduledDate)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, event.ID, events[0].ID)

		none, err := repo.GetByDate(ctx, event.ScheduledDate.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestEventRepository_SettleCandidatesAndCompletion(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewEventRepository(testDB.DB)
	ctx := context.Background()

	past := testutil.CreateTestEvent("past")
	past.ScheduledDate = past.ScheduledDate.AddDate(0, 0, -2)
	future := testutil.CreateTestEvent("future")
	future.ScheduledDate = future.ScheduledDate.AddDate(0, 0, 3)
	require.NoError(t, repo.Create(ctx, past))
	require.NoError(t, repo.Create(ctx, future))

	today := time.Now().UTC()

	candidates, err := repo.GetSettleCandidates(ctx, today, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, past.ID, candidates[0].ID)

	require.NoError(t, repo.MarkCompleted(ctx, past.ID, 101, 99, today))
	// A second completion must not overwrite the recorded score
	require.NoError(t, repo.MarkCompleted(ctx, past.ID, 0, 0, today))

	completed, err := repo.GetByID(ctx, past.ID)
	require.NoError(t, err)
	assert.True(t, completed.Completed)
	require.NotNil(t, completed.HomeScore)
	assert.Equal(t, 101, *completed.HomeScore)
	assert.Equal(t, 99, *completed.AwayScore)
	assert.NotNil(t, completed.SettledAt)

	candidates, err = repo.GetSettleCandidates(ctx, today, 10)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestEventRepository_TeamsAndExternalID(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewEventRepository(testDB.DB)
	ctx := context.Background()

	event := testutil.CreateTestEvent("0022400301")
	other := testutil.CreateTestEvent("0022400302")
	require.NoError(t, repo.Create(ctx, event))
	require.NoError(t, repo.Create(ctx, other))

	t.Run("by teams and date", func(t *testing.T) {
		found, err := repo.GetByTeamsAndDate(ctx, event.HomeTeam, event.AwayTeam, event.ScheduledDate)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, event.ID, found.ID)

		swapped, err := repo.GetByTeamsAndDate(ctx, event.AwayTeam, event.HomeTeam, event.ScheduledDate)
		require.NoError(t, err)
		assert.Nil(t, swapped)

		otherDay, err := repo.GetByTeamsAndDate(ctx, event.HomeTeam, event.AwayTeam, event.ScheduledDate.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Nil(t, otherDay)
	})

	t.Run("update external id", func(t *testing.T) {
		updated, err := repo.UpdateExternalID(ctx, event.ID, "0022400399")
		require.NoError(t, err)
		assert.True(t, updated)

		found, err := repo.GetByExternalID(ctx, "0022400399")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, event.ID, found.ID)
	})

	t.Run("external id taken by another event", func(t *testing.T) {
		_, err := repo.UpdateExternalID(ctx, event.ID, other.ExternalID)
		var validationErr *service.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("completed event keeps its id", func(t *testing.T) {
		require.NoError(t, repo.MarkCompleted(ctx, other.ID, 100, 90, time.Now().UTC()))

		updated, err := repo.UpdateExternalID(ctx, other.ID, "0022400398")
		require.NoError(t, err)
		assert.False(t, updated)
	})
}

func TestEventRepository_UpdateQuotes(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewEventRepository(testDB.DB)
	ctx := context.Background()

	event := testutil.CreateTestEvent("0022400401")
	require.NoError(t, repo.Create(ctx, event))

	price := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}

	t.Run("unquoted event", func(t *testing.T) {
		found, err := repo.GetByID(ctx, event.ID)
		require.NoError(t, err)
		assert.True(t, found.Quotes.IsEmpty())
		assert.Nil(t, found.Quotes.HomeSpread)
	})

	t.Run("first quote sets opening lines", func(t *testing.T) {
		updated, err := repo.UpdateQuotes(ctx, event.ID, models.QuoteBoard{
			HomeSpread:     price("-3.5"),
			HomeSpreadOdds: price("-110"),
			AwaySpreadOdds: price("-110"),
			TotalLine:      price("220.5"),
		})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.False(t, updated.Quotes.IsEmpty())
		assert.Equal(t, "-3.50", updated.Quotes.HomeSpread.StringFixed(2))
		assert.Equal(t, "-3.50", updated.Quotes.OpeningHomeSpread.StringFixed(2))
		assert.Equal(t, "220.50", updated.Quotes.OpeningTotalLine.StringFixed(2))
		assert.Nil(t, updated.Quotes.HomeMoneyline)
	})

	t.Run("later quotes move the line and keep the opener", func(t *testing.T) {
		updated, err := repo.UpdateQuotes(ctx, event.ID, models.QuoteBoard{
			HomeSpread:    price("-5"),
			HomeMoneyline: price("-210"),
			AwayMoneyline: price("175"),
		})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, "-5.00", updated.Quotes.HomeSpread.StringFixed(2))
		assert.Equal(t, "-3.50", updated.Quotes.OpeningHomeSpread.StringFixed(2))
		assert.Equal(t, "220.50", updated.Quotes.TotalLine.StringFixed(2))
		assert.Equal(t, "-210.00", updated.Quotes.HomeMoneyline.StringFixed(2))
	})

	t.Run("completed event", func(t *testing.T) {
		require.NoError(t, repo.MarkCompleted(ctx, event.ID, 99, 98, time.Now().UTC()))

		updated, err := repo.UpdateQuotes(ctx, event.ID, models.QuoteBoard{OverOdds: price("-105")})
		require.NoError(t, err)
		assert.Nil(t, updated)
	})
}
