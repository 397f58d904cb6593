package scoreprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sportsbook/models"
	"sportsbook/service"

	log "github.com/sirupsen/logrus"
)

// gameStatusFinal is the upstream status code for a finished game
const gameStatusFinal = 3

// maxBodyBytes caps how much of a boxscore document is read
const maxBodyBytes = 4 << 20

// boxscoreDocument is the subset of the live-data boxscore we rely on.
// Pointer fields let us tell a missing value apart from a zero.
type boxscoreDocument struct {
	Game *struct {
		GameStatus *int      `json:"gameStatus"`
		HomeTeam   *teamLine `json:"homeTeam"`
		AwayTeam   *teamLine `json:"awayTeam"`
	} `json:"game"`
}

type teamLine struct {
	Score *int `json:"score"`
}

// HTTPProvider fetches final scores from a boxscore feed
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

// NewHTTPProvider creates a provider rooted at baseURL
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

// Fetch retrieves and validates the boxscore for one game
func (p *HTTPProvider) Fetch(ctx context.Context, externalID string) (*models.ScoreSnapshot, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, fetchError(service.FetchNotFound, externalID, errors.New("empty external id"))
	}

	url := fmt.Sprintf("%s/boxscore_%s.json", p.baseURL, externalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fetchError(service.FetchMalformed, externalID, fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fetchError(service.FetchTransient, externalID, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fetchError(service.FetchTransient, externalID, fmt.Errorf("failed to read body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		log.WithFields(log.Fields{
			"externalID": externalID,
			"status":     resp.StatusCode,
		}).Warn("Score provider returned non-200 status")
		return nil, fetchError(classifyStatus(resp.StatusCode), externalID, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	snapshot, err := parseBoxscore(externalID, body)
	if err != nil {
		return nil, fetchError(service.FetchMalformed, externalID, err)
	}
	snapshot.FetchedAt = p.now()

	log.WithFields(log.Fields{
		"externalID": externalID,
		"terminal":   snapshot.Terminal,
		"homeScore":  snapshot.HomeScore,
		"awayScore":  snapshot.AwayScore,
	}).Debug("Fetched boxscore")

	return snapshot, nil
}

func classifyStatus(code int) service.FetchErrorKind {
	switch {
	case code == http.StatusNotFound, code == http.StatusForbidden, code == http.StatusGone:
		return service.FetchNotFound
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout, code >= 500:
		return service.FetchTransient
	default:
		return service.FetchMalformed
	}
}

func parseBoxscore(externalID string, body []byte) (*models.ScoreSnapshot, error) {
	var doc boxscoreDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode boxscore: %w", err)
	}

	switch {
	case doc.Game == nil:
		return nil, errors.New("missing game object")
	case doc.Game.GameStatus == nil:
		return nil, errors.New("missing gameStatus")
	case doc.Game.HomeTeam == nil || doc.Game.HomeTeam.Score == nil:
		return nil, errors.New("missing homeTeam.score")
	case doc.Game.AwayTeam == nil || doc.Game.AwayTeam.Score == nil:
		return nil, errors.New("missing awayTeam.score")
	}

	home, away := *doc.Game.HomeTeam.Score, *doc.Game.AwayTeam.Score
	if home < 0 || away < 0 {
		return nil, fmt.Errorf("negative score %d-%d", home, away)
	}

	return &models.ScoreSnapshot{
		ExternalID: externalID,
		Terminal:   *doc.Game.GameStatus == gameStatusFinal,
		HomeScore:  home,
		AwayScore:  away,
		RawStats:   json.RawMessage(body),
	}, nil
}

func fetchError(kind service.FetchErrorKind, externalID string, err error) *service.ExternalFetchError {
	return &service.ExternalFetchError{Kind: kind, ExternalID: externalID, Err: err}
}
