package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestIntakeMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIntakeMetrics(reg)
	m.ObserveTurn("voice", "ok")
	m.ObserveOutcome("booked")
	m.ObserveEscalation("silence")
	m.ObserveSlotSearch("found", 0.2)
	m.ObserveTurnLatency("voice", 0.5)
}

func TestIntakeMetricsNilSafe(t *testing.T) {
	var m *IntakeMetrics
	m.ObserveTurn("voice", "ok")
	m.ObserveOutcome("booked")
	m.ObserveEscalation("silence")
	m.ObserveSlotSearch("found", 0.1)
	m.ObserveTurnLatency("sms", 0.1)
}
