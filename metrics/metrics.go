package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "fleetmip"

// SolverMetrics collects oracle and engine counters on a dedicated registry.
// All methods are safe on a nil receiver so callers can run without metrics.
type SolverMetrics struct {
	Registry *prometheus.Registry

	oracleInvocations *prometheus.CounterVec
	oracleCuts        *prometheus.CounterVec
	candidates        *prometheus.CounterVec
	nodes             *prometheus.CounterVec
	solveDuration     *prometheus.HistogramVec
	gap               *prometheus.GaugeVec
	objective         *prometheus.GaugeVec
}

func NewSolverMetrics() *SolverMetrics {
	m := &SolverMetrics{
		Registry: prometheus.NewRegistry(),
		oracleInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "oracle",
				Name:      "invocations_total",
				Help:      "Subtour oracle invocations by scenario",
			},
			[]string{"scenario"},
		),
		oracleCuts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "oracle",
				Name:      "cuts_total",
				Help:      "Subtour elimination cuts emitted by scenario",
			},
			[]string{"scenario"},
		),
		candidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "oracle",
				Name:      "candidates_total",
				Help:      "Integer candidates inspected by outcome (accepted, rejected)",
			},
			[]string{"scenario", "outcome"},
		),
		nodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "nodes_total",
				Help:      "Branch-and-bound nodes processed",
			},
			[]string{"scenario"},
		),
		solveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "solve_duration_seconds",
				Help:      "Wall-clock solve time by termination status",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 3600},
			},
			[]string{"scenario", "status"},
		),
		gap: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "mip_gap_ratio",
				Help:      "Relative optimality gap of the last solve",
			},
			[]string{"scenario"},
		),
		objective: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "objective_value",
				Help:      "Objective of the last incumbent",
			},
			[]string{"scenario"},
		),
	}
	m.Registry.MustRegister(
		m.oracleInvocations,
		m.oracleCuts,
		m.candidates,
		m.nodes,
		m.solveDuration,
		m.gap,
		m.objective,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveOracle records one oracle call and the cuts it returned.
func (m *SolverMetrics) ObserveOracle(scenario string, cuts int) {
	if m == nil {
		return
	}
	m.oracleInvocations.WithLabelValues(scenario).Inc()
	m.oracleCuts.WithLabelValues(scenario).Add(float64(cuts))
	outcome := "accepted"
	if cuts > 0 {
		outcome = "rejected"
	}
	m.candidates.WithLabelValues(scenario, outcome).Inc()
}

// ObserveSolve records the outcome of one engine run.
func (m *SolverMetrics) ObserveSolve(scenario, status string, d time.Duration, nodes int, gap, obj float64) {
	if m == nil {
		return
	}
	m.solveDuration.WithLabelValues(scenario, status).Observe(d.Seconds())
	m.nodes.WithLabelValues(scenario).Add(float64(nodes))
	m.gap.WithLabelValues(scenario).Set(gap)
	m.objective.WithLabelValues(scenario).Set(obj)
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *SolverMetrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
