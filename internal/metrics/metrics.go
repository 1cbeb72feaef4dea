// Package metrics exposes Prometheus collectors for the execution queue.
//
//   - traderiser_rounds_total{result}        completed rounds (win|loss|error)
//   - traderiser_stake_total                 sum of settled stakes
//   - traderiser_session_profit              running session profit (gauge)
//   - traderiser_martingale_level            level of the last placed round
//   - traderiser_queue_stops_total{reason}   sessions ended, by stop reason
//   - traderiser_stake_mismatch_total        rounds where the settled stake
//     differed from the locally computed one
//   - traderiser_place_trade_seconds         latency of trade placement
//
// Collectors are registered with the default registry in init and served
// at /metrics by the status API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

var (
	mtxRounds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "traderiser_rounds_total",
			Help: "Completed trading rounds by result",
		},
		[]string{"result"},
	)

	mtxStake = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "traderiser_stake_total",
			Help: "Sum of stakes of completed rounds",
		},
	)

	mtxSessionProfit = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "traderiser_session_profit",
			Help: "Realized profit of the current trading session",
		},
	)

	mtxMartingaleLevel = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "traderiser_martingale_level",
			Help: "Martingale level of the most recently placed round",
		},
	)

	mtxStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "traderiser_queue_stops_total",
			Help: "Trading sessions stopped, by reason",
		},
		[]string{"reason"},
	)

	mtxStakeMismatch = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "traderiser_stake_mismatch_total",
			Help: "Rounds whose settled stake differed from the locally computed stake",
		},
	)

	mtxPlaceLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "traderiser_place_trade_seconds",
			Help:    "Latency of trade placement calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 3, 5, 8, 13},
		},
	)
)

func init() {
	prometheus.MustRegister(
		mtxRounds,
		mtxStake,
		mtxSessionProfit,
		mtxMartingaleLevel,
		mtxStops,
		mtxStakeMismatch,
		mtxPlaceLatency,
	)
}

// Round results.
const (
	ResultWin   = "win"
	ResultLoss  = "loss"
	ResultError = "error"
)

// ObserveRound records a completed round.
func ObserveRound(result string, stake decimal.Decimal) {
	mtxRounds.WithLabelValues(result).Inc()
	mtxStake.Add(stake.Abs().InexactFloat64())
}

// SetSessionProfit updates the session profit gauge.
func SetSessionProfit(profit decimal.Decimal) {
	mtxSessionProfit.Set(profit.InexactFloat64())
}

// SetMartingaleLevel updates the level gauge.
func SetMartingaleLevel(level int) {
	mtxMartingaleLevel.Set(float64(level))
}

// ObserveStop records the end of a session.
func ObserveStop(reason string) {
	mtxStops.WithLabelValues(reason).Inc()
}

// ObserveStakeMismatch records a settled stake that differed from the local one.
func ObserveStakeMismatch() {
	mtxStakeMismatch.Inc()
}

// ObservePlaceLatency records the duration of one placement call.
func ObservePlaceLatency(d time.Duration) {
	mtxPlaceLatency.Observe(d.Seconds())
}
