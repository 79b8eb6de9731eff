// Package metrics exposes Prometheus counters for the insights engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine collectors on a private registry.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	CommitmentsTotal  *prometheus.CounterVec
	DroppedTotal      *prometheus.CounterVec
	EvolutionIndex    *prometheus.GaugeVec

	registry *prometheus.Registry
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execline_operations_total",
				Help: "Engine operations by name and outcome.",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "execline_operation_duration_seconds",
				Help:    "Engine operation latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		CommitmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execline_commitments_total",
				Help: "Top focus commitment transitions by action.",
			},
			[]string{"action"},
		),
		DroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execline_commitment_dropped_tasks_total",
				Help: "Committed tasks dropped on read by reason.",
			},
			[]string{"reason"},
		),
		EvolutionIndex: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "execline_evolution_index",
				Help: "Last computed evolution index by scope.",
			},
			[]string{"scope"},
		),
		registry: reg,
	}

	reg.MustRegister(m.OperationsTotal)
	reg.MustRegister(m.OperationDuration)
	reg.MustRegister(m.CommitmentsTotal)
	reg.MustRegister(m.DroppedTotal)
	reg.MustRegister(m.EvolutionIndex)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordOperation counts one finished operation and its latency. A nil
// receiver is a no-op so callers can run without metrics.
func (m *Metrics) RecordOperation(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) RecordCommitment(action string) {
	if m == nil {
		return
	}
	m.CommitmentsTotal.WithLabelValues(action).Inc()
}

func (m *Metrics) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.DroppedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetEvolutionIndex(scope string, index int) {
	if m == nil {
		return
	}
	m.EvolutionIndex.WithLabelValues(scope).Set(float64(index))
}
