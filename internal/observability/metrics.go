package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "covid_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for ingestion,
// sinks, and the query API.
type Metrics struct {
	IngestionRuns     *prometheus.CounterVec // labels: outcome={success,error}
	IngestionDuration prometheus.Histogram
	LastSuccess       prometheus.Gauge
	PipelineRunning   prometheus.Gauge

	FilesLoaded  prometheus.Counter
	FilesSkipped prometheus.Counter
	RowsIngested prometheus.Counter
	RowsSkipped  prometheus.Counter

	// Size of the currently published result.
	ObservationRows prometheus.Gauge
	CountryRows     prometheus.Gauge
	DatesIndexed    prometheus.Gauge

	// Sink metrics.
	SinkPublishErrors   *prometheus.CounterVec   // labels: sink
	SinkPublishDuration *prometheus.HistogramVec // labels: sink

	// Query API metrics.
	APIRequests *prometheus.CounterVec // labels: route, status
	APICache    *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.IngestionRuns,
		m.IngestionDuration,
		m.LastSuccess,
		m.PipelineRunning,
		m.FilesLoaded,
		m.FilesSkipped,
		m.RowsIngested,
		m.RowsSkipped,
		m.ObservationRows,
		m.CountryRows,
		m.DatesIndexed,
		m.SinkPublishErrors,
		m.SinkPublishDuration,
		m.APIRequests,
		m.APICache,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, which avoids
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		IngestionRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_runs_total",
			Help:      "Ingestion runs by outcome.",
		}, []string{"outcome"}),
		IngestionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingestion_duration_seconds",
			Help:      "Duration of a complete load-assemble-publish run.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successfully published result.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the ingestion scheduler is active, 0 when shut down.",
		}),
		FilesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_loaded_total",
			Help:      "Report files parsed into snapshots.",
		}),
		FilesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_skipped_total",
			Help:      "Report files excluded for bad names or unreadable content.",
		}),
		RowsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_ingested_total",
			Help:      "Report rows accepted into snapshots.",
		}),
		RowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Malformed report rows left out.",
		}),
		ObservationRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observation_rows",
			Help:      "Province-level rows in the published result.",
		}),
		CountryRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "country_rows",
			Help:      "Country rollup rows in the published result.",
		}),
		DatesIndexed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dates_indexed",
			Help:      "Distinct report dates in the published result.",
		}),
		SinkPublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_publish_errors_total",
			Help:      "Failed result publications by sink.",
		}, []string{"sink"}),
		SinkPublishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sink_publish_duration_seconds",
			Help:      "Duration of one result publication by sink.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"sink"}),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Query API requests by route template and status code.",
		}, []string{"route", "status"}),
		APICache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_cache_total",
			Help:      "Query cache lookups by result.",
		}, []string{"result"}),
	}
}
