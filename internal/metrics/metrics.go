// Package metrics содержит метрики Prometheus сервиса shopvest.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopvest_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ResponseTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopvest_http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ShopsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopvest_shops_submitted_total",
			Help: "Shops submitted for approval by tier",
		},
		[]string{"tier"},
	)

	ShopsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopvest_shops_resolved_total",
			Help: "Shops approved or rejected by tier",
		},
		[]string{"tier", "decision"},
	)

	DailyClaims = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shopvest_daily_claims_total",
			Help: "Successful daily earning claims",
		},
	)

	DailyEarningsPaid = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shopvest_daily_earnings_naira_total",
			Help: "Naira credited by daily claims",
		},
	)

	ReferralBonusPaid = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopvest_referral_bonus_naira_total",
			Help: "Referral bonus credited by level",
		},
		[]string{"level"},
	)

	ClaimsRequested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shopvest_claims_requested_total",
			Help: "Final claims requested",
		},
	)

	ClaimsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopvest_claims_resolved_total",
			Help: "Final claims resolved by decision",
		},
		[]string{"decision"},
	)

	WithdrawalsRequested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopvest_withdrawals_requested_total",
			Help: "Bonus withdrawals requested by type",
		},
		[]string{"type"},
	)

	WithdrawalsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopvest_withdrawals_resolved_total",
			Help: "Bonus withdrawals resolved by type and decision",
		},
		[]string{"type", "decision"},
	)

	PendingBacklog = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shopvest_pending_requests",
			Help: "Requests waiting for an admin decision",
		},
		[]string{"kind"},
	)
)

// Decision возвращает значение метки decision для решения администратора.
func Decision(approve bool) string {
	if approve {
		return "approved"
	}
	return "declined"
}
