// Package metrics exposes Prometheus collectors for the ingest and
// evaluation cycle.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	CycleDuration *prometheus.HistogramVec
	Cycles        *prometheus.CounterVec
	Ingested      *prometheus.CounterVec
	Skipped       *prometheus.CounterVec
	Opportunities *prometheus.CounterVec
	BestWorstCase prometheus.Gauge
	LastCycle     prometheus.Gauge
}

// New creates and registers every collector plus the Go and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbengine_cycle_duration_seconds",
				Help:    "Duration of each cycle stage in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbengine_cycles_total",
				Help: "Cycles run by outcome",
			},
			[]string{"result"},
		),
		Ingested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbengine_ingested_total",
				Help: "Records upserted by ingest stage",
			},
			[]string{"stage"},
		),
		Skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbengine_skipped_total",
				Help: "Records skipped by ingest stage and reason",
			},
			[]string{"stage", "reason"},
		),
		Opportunities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbengine_opportunities_total",
				Help: "Opportunities emitted by direction",
			},
			[]string{"direction"},
		),
		BestWorstCase: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbengine_best_worst_case",
			Help: "Worst-case profit of the top opportunity in the last cycle, 0 when none",
		}),
		LastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbengine_last_cycle_timestamp_seconds",
			Help: "Unix time of the last completed cycle",
		}),
	}

	m.registry.MustRegister(
		m.CycleDuration, m.Cycles, m.Ingested, m.Skipped,
		m.Opportunities, m.BestWorstCase, m.LastCycle,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveStage records how long a cycle stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.CycleDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveIngest adds one stage's upsert and skip counts.
func (m *Metrics) ObserveIngest(stage string, upserted int, skipped map[string]int) {
	m.Ingested.WithLabelValues(stage).Add(float64(upserted))
	for reason, n := range skipped {
		m.Skipped.WithLabelValues(stage, reason).Add(float64(n))
	}
}

// ObserveOpportunities counts a ranked batch and tracks its best worst case.
func (m *Metrics) ObserveOpportunities(opps []domain.Opportunity) {
	best := 0.0
	for i, o := range opps {
		m.Opportunities.WithLabelValues(string(o.Direction)).Inc()
		if i == 0 || o.WorstCase > best {
			best = o.WorstCase
		}
	}
	m.BestWorstCase.Set(best)
}

// ObserveCycle records a finished cycle.
func (m *Metrics) ObserveCycle(ok bool, at time.Time) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.Cycles.WithLabelValues(result).Inc()
	if ok {
		m.LastCycle.Set(float64(at.Unix()))
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
