// Package metrics exposes Prometheus collectors for the intake pipeline.
// All Observe methods are nil-safe so wiring metrics stays optional.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// IntakeMetrics exposes counters/histograms for call and SMS intake flows.
type IntakeMetrics struct {
	turnsTotal        *prometheus.CounterVec
	outcomesTotal     *prometheus.CounterVec
	escalationsTotal  *prometheus.CounterVec
	slotSearchLatency *prometheus.HistogramVec
	turnLatency       *prometheus.HistogramVec
}

func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wrenchline",
			Subsystem: "intake",
			Name:      "turns_total",
			Help:      "Total processed conversation turns",
		}, []string{"channel", "status"}),
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wrenchline",
			Subsystem: "intake",
			Name:      "call_outcomes_total",
			Help:      "Terminal call outcomes",
		}, []string{"outcome"}),
		escalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wrenchline",
			Subsystem: "intake",
			Name:      "escalations_total",
			Help:      "Calls handed off to a human",
		}, []string{"reason"}),
		slotSearchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wrenchline",
			Subsystem: "scheduling",
			Name:      "slot_search_latency_seconds",
			Help:      "Latency of availability searches",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wrenchline",
			Subsystem: "intake",
			Name:      "turn_latency_seconds",
			Help:      "Latency of webhook turn processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.outcomesTotal, m.escalationsTotal, m.slotSearchLatency, m.turnLatency)
	return m
}

func (m *IntakeMetrics) ObserveTurn(channel, status string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(channel, status).Inc()
}

func (m *IntakeMetrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(outcome).Inc()
}

func (m *IntakeMetrics) ObserveEscalation(reason string) {
	if m == nil {
		return
	}
	m.escalationsTotal.WithLabelValues(reason).Inc()
}

func (m *IntakeMetrics) ObserveSlotSearch(result string, seconds float64) {
	if m == nil {
		return
	}
	m.slotSearchLatency.WithLabelValues(result).Observe(seconds)
}

func (m *IntakeMetrics) ObserveTurnLatency(channel string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(channel).Observe(seconds)
}
