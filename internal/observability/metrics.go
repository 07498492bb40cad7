package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// delay-reconstruction batch pipeline.
type Metrics struct {
	RowsLoaded      *prometheus.CounterVec // labels: table
	UnmatchedIDs    *prometheus.CounterVec // labels: stage
	ParseErrors     prometheus.Counter
	FiresProcessed  prometheus.Counter
	RecordsEmitted  prometheus.Counter
	RunsCompleted   prometheus.Counter
	RunsFailed      prometheus.Counter
	PipelineRunning prometheus.Gauge
	LastRunUnix     prometheus.Gauge
	RunDuration     prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RowsLoaded,
		m.UnmatchedIDs,
		m.ParseErrors,
		m.FiresProcessed,
		m.RecordsEmitted,
		m.RunsCompleted,
		m.RunsFailed,
		m.PipelineRunning,
		m.LastRunUnix,
		m.RunDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evac_delay_etl",
			Name:      "rows_loaded_total",
			Help:      "Input rows read per source table.",
		}, []string{"table"}),
		UnmatchedIDs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evac_delay_etl",
			Name:      "unmatched_identifiers_total",
			Help:      "Identifiers that failed normalization or had no join counterpart, per stage.",
		}, []string{"stage"}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evac_delay_etl",
			Name:      "parse_errors_total",
			Help:      "Change-log payloads that did not match the expected structure.",
		}),
		FiresProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evac_delay_etl",
			Name:      "fires_processed_total",
			Help:      "Fire events processed by the builder.",
		}),
		RecordsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evac_delay_etl",
			Name:      "delay_records_emitted_total",
			Help:      "Delay records written to the output dataset.",
		}),
		RunsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evac_delay_etl",
			Name:      "runs_completed_total",
			Help:      "Pipeline runs that wrote a dataset and report.",
		}),
		RunsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evac_delay_etl",
			Name:      "runs_failed_total",
			Help:      "Pipeline runs aborted before writing output.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "evac_delay_etl",
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		LastRunUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "evac_delay_etl",
			Name:      "last_successful_run_timestamp_seconds",
			Help:      "Unix time of the last completed run.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "evac_delay_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete load-build-write run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
	}
}
