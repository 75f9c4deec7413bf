// Package metrics exposes the trading loop's Prometheus series.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aitrader_ticks_total",
			Help: "Loop ticks by result",
		},
		[]string{"symbol", "result"},
	)

	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aitrader_decisions_total",
			Help: "Decisions applied by action",
		},
		[]string{"symbol", "action"},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aitrader_rejections_total",
			Help: "Rejected decisions by failure code",
		},
		[]string{"symbol", "code"},
	)

	tradesClosedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aitrader_trades_closed_total",
			Help: "Closed trades by close reason",
		},
		[]string{"symbol", "reason"},
	)

	tradePnL = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aitrader_trade_pnl_usd",
			Help:    "Distribution of realized trade P&L",
			Buckets: []float64{-50, -20, -10, -5, 0, 5, 10, 20, 50},
		},
		[]string{"symbol"},
	)

	persistFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aitrader_persist_failures_total",
			Help: "Failed state saves",
		},
		[]string{"symbol"},
	)

	balance = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aitrader_balance_usd",
			Help: "Current account balance",
		},
		[]string{"symbol"},
	)

	dailyPnL = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aitrader_daily_pnl_usd",
			Help: "Realized P&L for the current UTC day",
		},
		[]string{"symbol"},
	)

	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aitrader_current_price",
			Help: "Last observed instrument price",
		},
		[]string{"symbol"},
	)

	openPositions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aitrader_open_positions",
			Help: "Open positions (0 or 1)",
		},
		[]string{"symbol"},
	)

	pendingOrders = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aitrader_pending_orders",
			Help: "Resting limit entry orders",
		},
		[]string{"symbol"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aitrader_http_requests_total",
			Help: "Dashboard API requests by method and status",
		},
		[]string{"method", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aitrader_http_request_duration_seconds",
			Help:    "Dashboard API latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(ticksTotal)
	prometheus.MustRegister(decisionsTotal)
	prometheus.MustRegister(rejectionsTotal)
	prometheus.MustRegister(tradesClosedTotal)
	prometheus.MustRegister(tradePnL)
	prometheus.MustRegister(persistFailuresTotal)
	prometheus.MustRegister(balance)
	prometheus.MustRegister(dailyPnL)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(openPositions)
	prometheus.MustRegister(pendingOrders)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDuration)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTick counts one loop tick. result is "ok" or "skipped".
func RecordTick(symbol, result string) {
	ticksTotal.WithLabelValues(symbol, result).Inc()
}

// RecordDecision counts an applied decision.
func RecordDecision(symbol, action string) {
	decisionsTotal.WithLabelValues(symbol, action).Inc()
}

// RecordRejection counts a rejected decision.
func RecordRejection(symbol, code string) {
	if code == "" {
		code = "OTHER"
	}
	rejectionsTotal.WithLabelValues(symbol, code).Inc()
}

// RecordTradeClosed counts a closed trade and observes its P&L.
func RecordTradeClosed(symbol, reason string, pnl float64) {
	tradesClosedTotal.WithLabelValues(symbol, reason).Inc()
	tradePnL.WithLabelValues(symbol).Observe(pnl)
}

// RecordPersistFailure counts a failed state save.
func RecordPersistFailure(symbol string) {
	persistFailuresTotal.WithLabelValues(symbol).Inc()
}

// SetPrice updates the price gauge.
func SetPrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// SetAccount updates the balance, daily P&L and exposure gauges.
func SetAccount(symbol string, bal, daily float64, open, pending int) {
	balance.WithLabelValues(symbol).Set(bal)
	dailyPnL.WithLabelValues(symbol).Set(daily)
	openPositions.WithLabelValues(symbol).Set(float64(open))
	pendingOrders.WithLabelValues(symbol).Set(float64(pending))
}

// ObserveHTTP records one API request.
func ObserveHTTP(method string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method).Observe(d.Seconds())
}
