// Prometheus exposition for the engine.
//
// Exposes the metrics the engine updates during operation:
//   - engine_trades_total{result}       counts processed trades by outcome
//   - engine_rejections_total{check}    rejections split by failing check
//   - engine_net_worth_usd              current net worth (gauge)
//   - engine_daily_pnl_usd              today's PnL (gauge)
//   - engine_drawdown_pct               drawdown from high-water mark
//   - engine_breaker_tripped            1 while the circuit breaker is tripped
//   - engine_feed_mode{mode}            active acquisition mode as 0/1 series
//
// Registered once in init() and served at /metrics by Serve.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	promTrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_trades_total",
			Help: "Trades processed, by outcome",
		},
		[]string{"result"},
	)

	promRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_rejections_total",
			Help: "Trade rejections, by failing check",
		},
		[]string{"check"},
	)

	promNetWorth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_net_worth_usd",
			Help: "Current net worth in USD",
		},
	)

	promDailyPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_daily_pnl_usd",
			Help: "Today's realized PnL in USD",
		},
	)

	promDrawdown = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_drawdown_pct",
			Help: "Drawdown from the high-water mark, percent",
		},
	)

	promBreaker = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_breaker_tripped",
			Help: "1 while the circuit breaker is tripped",
		},
	)

	// Two labeled series flipped between 0/1 to keep dashboards simple.
	promFeedMode = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_feed_mode",
			Help: "Active trade acquisition mode as 0/1 labeled series",
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(
		promTrades,
		promRejections,
		promNetWorth,
		promDailyPnL,
		promDrawdown,
		promBreaker,
		promFeedMode,
	)
}

// CountTrade bumps the per-result trade counter.
func CountTrade(result string) {
	promTrades.WithLabelValues(result).Inc()
}

// CountRejection bumps the per-check rejection counter.
func CountRejection(check string) {
	promRejections.WithLabelValues(check).Inc()
}

// PublishGauges pushes tracker gauge values into the Prometheus registry.
func PublishGauges(snap Snapshot) {
	promNetWorth.Set(snap.NetWorthUSD)
	promDailyPnL.Set(snap.DailyPnLUSD)
	promDrawdown.Set(snap.DrawdownPct)

	if snap.BreakerState == "tripped" {
		promBreaker.Set(1)
	} else {
		promBreaker.Set(0)
	}

	for _, mode := range []string{"push", "pull"} {
		v := 0.0
		if snap.FeedMode == mode {
			v = 1
		}
		promFeedMode.WithLabelValues(mode).Set(v)
	}
}

// Serve exposes /metrics on the given port. Blocks; run in a goroutine.
func Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}
