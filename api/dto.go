package api

import (
	"time"

	"sportsbook/models"

	"github.com/shopspring/decimal"
)

const dateLayout = time.DateOnly

type registerRequest struct {
	Username string `json:"username"`
}

type placeWagerRequest struct {
	AccountID int64            `json:"accountId"`
	EventID   int64            `json:"eventId"`
	Kind      string           `json:"kind"`
	Stake     decimal.Decimal  `json:"stake"`
	Odds      decimal.Decimal  `json:"odds"`
	Line      *decimal.Decimal `json:"line"`
}

type createEventRequest struct {
	ExternalID    string `json:"externalId"`
	HomeTeam      string `json:"homeTeam"`
	AwayTeam      string `json:"awayTeam"`
	ScheduledDate string `json:"scheduledDate"`
}

type setExternalIDRequest struct {
	HomeTeam      string `json:"homeTeam"`
	AwayTeam      string `json:"awayTeam"`
	ScheduledDate string `json:"scheduledDate"`
	ExternalID    string `json:"externalId"`
}

type quotesRequest struct {
	HomeSpread     *decimal.Decimal `json:"homeSpread"`
	HomeSpreadOdds *decimal.Decimal `json:"homeSpreadOdds"`
	AwaySpreadOdds *decimal.Decimal `json:"awaySpreadOdds"`
	HomeMoneyline  *decimal.Decimal `json:"homeMoneyline"`
	AwayMoneyline  *decimal.Decimal `json:"awayMoneyline"`
	TotalLine      *decimal.Decimal `json:"totalLine"`
	OverOdds       *decimal.Decimal `json:"overOdds"`
	UnderOdds      *decimal.Decimal `json:"underOdds"`
}

func (r quotesRequest) toQuoteBoard() models.QuoteBoard {
	return models.QuoteBoard{
		HomeSpread:     r.HomeSpread,
		HomeSpreadOdds: r.HomeSpreadOdds,
		AwaySpreadOdds: r.AwaySpreadOdds,
		HomeMoneyline:  r.HomeMoneyline,
		AwayMoneyline:  r.AwayMoneyline,
		TotalLine:      r.TotalLine,
		OverOdds:       r.OverOdds,
		UnderOdds:      r.UnderOdds,
	}
}

type accountResponse struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Balance     string    `json:"balance"`
	TotalStaked string    `json:"totalStaked"`
	TotalWon    string    `json:"totalWon"`
	BetsPlaced  int       `json:"betsPlaced"`
	BetsWon     int       `json:"betsWon"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toAccountResponse(a *models.Account) accountResponse {
	return accountResponse{
		ID:          a.ID,
		Username:    a.Username,
		Balance:     a.Balance.StringFixed(2),
		TotalStaked: a.TotalStaked.StringFixed(2),
		TotalWon:    a.TotalWon.StringFixed(2),
		BetsPlaced:  a.BetsPlaced,
		BetsWon:     a.BetsWon,
		CreatedAt:   a.CreatedAt,
	}
}

type wagerResponse struct {
	ID        int64      `json:"id"`
	AccountID int64      `json:"accountId"`
	EventID   int64      `json:"eventId"`
	Kind      string     `json:"kind"`
	Odds      string     `json:"odds"`
	Stake     string     `json:"stake"`
	Line      *string    `json:"line,omitempty"`
	Payout    string     `json:"payout"`
	Status    string     `json:"status"`
	PlacedAt  time.Time  `json:"placedAt"`
	SettledAt *time.Time `json:"settledAt,omitempty"`
}

func toWagerResponse(w *models.Wager) wagerResponse {
	resp := wagerResponse{
		ID:        w.ID,
		AccountID: w.AccountID,
		EventID:   w.EventID,
		Kind:      string(w.Kind),
		Odds:      w.Odds.StringFixed(2),
		Stake:     w.Stake.StringFixed(2),
		Payout:    w.Payout.StringFixed(2),
		Status:    string(w.Status),
		PlacedAt:  w.PlacedAt,
		SettledAt: w.SettledAt,
	}
	if w.Line != nil {
		line := w.Line.String()
		resp.Line = &line
	}
	return resp
}

func toWagerResponses(wagers []*models.Wager) []wagerResponse {
	out := make([]wagerResponse, 0, len(wagers))
	for _, w := range wagers {
		out = append(out, toWagerResponse(w))
	}
	return out
}

type eventResponse struct {
	ID            int64           `json:"id"`
	ExternalID    string          `json:"externalId"`
	HomeTeam      string          `json:"homeTeam"`
	AwayTeam      string          `json:"awayTeam"`
	ScheduledDate string          `json:"scheduledDate"`
	Completed     bool            `json:"completed"`
	HomeScore     *int            `json:"homeScore,omitempty"`
	AwayScore     *int            `json:"awayScore,omitempty"`
	SettledAt     *time.Time      `json:"settledAt,omitempty"`
	Quotes        *quotesResponse `json:"quotes,omitempty"`
}

type quotesResponse struct {
	HomeSpread        *string   `json:"homeSpread,omitempty"`
	HomeSpreadOdds    *string   `json:"homeSpreadOdds,omitempty"`
	AwaySpreadOdds    *string   `json:"awaySpreadOdds,omitempty"`
	HomeMoneyline     *string   `json:"homeMoneyline,omitempty"`
	AwayMoneyline     *string   `json:"awayMoneyline,omitempty"`
	TotalLine         *string   `json:"totalLine,omitempty"`
	OverOdds          *string   `json:"overOdds,omitempty"`
	UnderOdds         *string   `json:"underOdds,omitempty"`
	OpeningHomeSpread *string   `json:"openingHomeSpread,omitempty"`
	OpeningTotalLine  *string   `json:"openingTotalLine,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func fixed(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

func toEventResponse(e *models.Event) eventResponse {
	resp := eventResponse{
		ID:            e.ID,
		ExternalID:    e.ExternalID,
		HomeTeam:      e.HomeTeam,
		AwayTeam:      e.AwayTeam,
		ScheduledDate: e.ScheduledDate.Format(dateLayout),
		Completed:     e.Completed,
		HomeScore:     e.HomeScore,
		AwayScore:     e.AwayScore,
		SettledAt:     e.SettledAt,
	}
	if q := e.Quotes; !q.IsEmpty() {
		resp.Quotes = &quotesResponse{
			HomeSpread:        fixed(q.HomeSpread),
			HomeSpreadOdds:    fixed(q.HomeSpreadOdds),
			AwaySpreadOdds:    fixed(q.AwaySpreadOdds),
			HomeMoneyline:     fixed(q.HomeMoneyline),
			AwayMoneyline:     fixed(q.AwayMoneyline),
			TotalLine:         fixed(q.TotalLine),
			OverOdds:          fixed(q.OverOdds),
			UnderOdds:         fixed(q.UnderOdds),
			OpeningHomeSpread: fixed(q.OpeningHomeSpread),
			OpeningTotalLine:  fixed(q.OpeningTotalLine),
			UpdatedAt:         *q.UpdatedAt,
		}
	}
	return resp
}

type historyResponse struct {
	ID              int64          `json:"id"`
	BalanceBefore   string         `json:"balanceBefore"`
	BalanceAfter    string         `json:"balanceAfter"`
	ChangeAmount    string         `json:"changeAmount"`
	TransactionType string         `json:"transactionType"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	RelatedID       *int64         `json:"relatedId,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

func toHistoryResponses(rows []*models.BalanceHistory) []historyResponse {
	out := make([]historyResponse, 0, len(rows))
	for _, h := range rows {
		out = append(out, historyResponse{
			ID:              h.ID,
			BalanceBefore:   h.BalanceBefore.StringFixed(2),
			BalanceAfter:    h.BalanceAfter.StringFixed(2),
			ChangeAmount:    h.ChangeAmount.StringFixed(2),
			TransactionType: string(h.TransactionType),
			Metadata:        h.TransactionMetadata,
			RelatedID:       h.RelatedID,
			CreatedAt:       h.CreatedAt,
		})
	}
	return out
}

type outcomeResponse struct {
	WagerID   int64  `json:"wagerId"`
	AccountID int64  `json:"accountId"`
	Kind      string `json:"kind"`
	Verdict   string `json:"verdict"`
	Credited  string `json:"credited"`
}

type settlementResponse struct {
	EventID      int64             `json:"eventId"`
	RunID        string            `json:"runId"`
	Status       string            `json:"status"`
	HomeScore    int               `json:"homeScore"`
	AwayScore    int               `json:"awayScore"`
	SettledCount int               `json:"settledCount"`
	Outcomes     []outcomeResponse `json:"outcomes"`
}

func toSettlementResponse(r *models.SettlementResult) settlementResponse {
	resp := settlementResponse{
		EventID:      r.EventID,
		RunID:        r.RunID,
		Status:       string(r.Status),
		HomeScore:    r.HomeScore,
		AwayScore:    r.AwayScore,
		SettledCount: r.SettledCount,
		Outcomes:     make([]outcomeResponse, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		resp.Outcomes = append(resp.Outcomes, outcomeResponse{
			WagerID:   o.WagerID,
			AccountID: o.AccountID,
			Kind:      string(o.Kind),
			Verdict:   string(o.Verdict),
			Credited:  o.Credited.StringFixed(2),
		})
	}
	return resp
}
