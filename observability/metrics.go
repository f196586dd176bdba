package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// RewardsMetrics tracks the accrual engine's operational counters.
type RewardsMetrics struct {
	settlements *prometheus.CounterVec
	booked      *prometheus.CounterVec
	claims      *prometheus.CounterVec
	shortfalls  *prometheus.CounterVec
}

var (
	rewardsMetricsOnce sync.Once
	rewardsRegistry    *RewardsMetrics
)

// Rewards returns the lazily-initialised metrics registry for the accrual
// engine.
func Rewards() *RewardsMetrics {
	rewardsMetricsOnce.Do(func() {
		rewardsRegistry = &RewardsMetrics{
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "meridian",
				Subsystem: "rewards",
				Name:      "settlements_total",
				Help:      "Count of market settlements segmented by reward asset and outcome.",
			}, []string{"token", "outcome"}),
			booked: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "meridian",
				Subsystem: "rewards",
				Name:      "earnings_booked_total",
				Help:      "Count of participant earnings bookings segmented by reward asset.",
			}, []string{"token"}),
			claims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "meridian",
				Subsystem: "rewards",
				Name:      "claims_total",
				Help:      "Count of claim payouts segmented by reward asset.",
			}, []string{"token"}),
			shortfalls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "meridian",
				Subsystem: "rewards",
				Name:      "claim_shortfalls_total",
				Help:      "Count of claims left partially unpaid by escrow shortfalls.",
			}, []string{"token"}),
		}
		prometheus.MustRegister(
			rewardsRegistry.settlements,
			rewardsRegistry.booked,
			rewardsRegistry.claims,
			rewardsRegistry.shortfalls,
		)
	})
	return rewardsRegistry
}

// RecordSettlement counts one settlement with its outcome: accrued, idle or
// paused.
func (m *RewardsMetrics) RecordSettlement(token, outcome string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(token, outcome).Inc()
}

// RecordEarningsBooked counts one earnings booking.
func (m *RewardsMetrics) RecordEarningsBooked(token string) {
	if m == nil {
		return
	}
	m.booked.WithLabelValues(token).Inc()
}

// RecordClaim counts one paid claim.
func (m *RewardsMetrics) RecordClaim(token string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(token).Inc()
}

// RecordShortfall counts one claim that escrow could not fully cover.
func (m *RewardsMetrics) RecordShortfall(token string) {
	if m == nil {
		return
	}
	m.shortfalls.WithLabelValues(token).Inc()
}
