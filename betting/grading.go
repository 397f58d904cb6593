package betting

import (
	"fmt"

	"sportsbook/models"

	"github.com/shopspring/decimal"
)

// Grade decides a wager of the given kind and line against a final score.
//
// Spread bets never push. A positive line covers on a strict comparison while
// a negative line covers when the margin reaches the absolute line, so a whole
// number favourite that wins by exactly the line is graded a win. Totals push
// on exact equality.
func Grade(kind models.BetKind, line *decimal.Decimal, homeScore, awayScore int) (models.Verdict, error) {
	if !kind.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownBetKind, kind)
	}
	if kind.RequiresLine() && line == nil {
		return "", ErrMissingLine
	}

	home := decimal.NewFromInt(int64(homeScore))
	away := decimal.NewFromInt(int64(awayScore))

	switch kind {
	case models.BetKindSpreadHome:
		return gradeSpread(home, away, *line), nil
	case models.BetKindSpreadAway:
		return gradeSpread(away, home, *line), nil
	case models.BetKindOver:
		return gradeTotal(home.Add(away), *line, true), nil
	case models.BetKindUnder:
		return gradeTotal(home.Add(away), *line, false), nil
	case models.BetKindMoneylineHome:
		return winOrLose(homeScore > awayScore), nil
	default:
		return winOrLose(awayScore > homeScore), nil
	}
}

// GradeWager grades a stored wager against a score snapshot
func GradeWager(wager *models.Wager, snapshot *models.ScoreSnapshot) (models.Verdict, error) {
	return Grade(wager.Kind, wager.Line, snapshot.HomeScore, snapshot.AwayScore)
}

// gradeSpread grades from the point of view of the backed side
func gradeSpread(backed, opponent, line decimal.Decimal) models.Verdict {
	switch {
	case line.IsPositive():
		return winOrLose(backed.Add(line).GreaterThan(opponent))
	case line.IsNegative():
		return winOrLose(backed.Sub(opponent).GreaterThanOrEqual(line.Abs()))
	default:
		return models.VerdictLost
	}
}

func gradeTotal(total, line decimal.Decimal, over bool) models.Verdict {
	cmp := total.Cmp(line)
	if cmp == 0 {
		return models.VerdictPush
	}
	if over {
		return winOrLose(cmp > 0)
	}
	return winOrLose(cmp < 0)
}

func winOrLose(won bool) models.Verdict {
	if won {
		return models.VerdictWon
	}
	return models.VerdictLost
}
