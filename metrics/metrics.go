package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	wagersPlaced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sportsbook_wagers_placed_total",
		Help: "wagers accepted at placement, by bet kind",
	}, []string{"kind"})

	wagersSettled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sportsbook_wagers_settled_total",
		Help: "wagers moved to a terminal status, by verdict",
	}, []string{"verdict"})

	settlementRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sportsbook_settlement_runs_total",
		Help: "settlement attempts by final status",
	}, []string{"status"})

	settlementRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sportsbook_settlement_retries_total",
		Help: "settlement transactions retried after a lock or serialization conflict",
	})

	scoreFetchSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sportsbook_score_fetch_seconds",
		Help:    "latency of upstream score fetches",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(wagersPlaced, wagersSettled, settlementRuns, settlementRetries, scoreFetchSeconds)
}

// WagerPlaced counts an accepted wager
func WagerPlaced(kind string) {
	wagersPlaced.WithLabelValues(kind).Inc()
}

// WagerSettled counts a graded wager
func WagerSettled(verdict string) {
	wagersSettled.WithLabelValues(verdict).Inc()
}

// SettlementRun counts a finished settlement attempt. Status is settled,
// not_ready or failed.
func SettlementRun(status string) {
	settlementRuns.WithLabelValues(status).Inc()
}

// SettlementRetry counts one retried settlement transaction
func SettlementRetry() {
	settlementRetries.Inc()
}

// ObserveScoreFetch records how long an upstream fetch took
func ObserveScoreFetch(result string, elapsed time.Duration) {
	scoreFetchSeconds.WithLabelValues(result).Observe(elapsed.Seconds())
}
