// Package metrics holds the Prometheus collectors for a pipeline run. Each
// Metrics value owns its registry so runs and tests never share state.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
)

const namespace = "traffic"

// Metrics is the set of collectors updated by the pipeline and the API.
type Metrics struct {
	Registry *prometheus.Registry

	PagesFetched     prometheus.Counter
	RecordsFetched   prometheus.Counter
	RowsDropped      *prometheus.CounterVec
	RowsStored       prometheus.Counter
	AdjacencyEntries prometheus.Gauge
	ArtifactsWritten *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	HTTPRequests     *prometheus.CounterVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		PagesFetched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Number of API pages fetched",
		}),
		RecordsFetched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Number of records received from the API",
		}),
		RowsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows removed by a pipeline stage",
		}, []string{"stage"}),
		RowsStored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_stored_total",
			Help:      "Rows written to the store",
		}),
		AdjacencyEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "adjacency_entries",
			Help:      "Intersections with at least one adjacent intersection in the last run",
		}),
		ArtifactsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_written_total",
			Help:      "HTML artifacts written, by kind",
		}, []string{"kind"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Requests served by the browse API",
		}, []string{"method", "route", "status_code"}),
	}
}

// ObserveStage records the time elapsed since start for stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// WriteTextfile dumps the registry to path for the node_exporter textfile
// collector. Used by one-shot commands that exit before any scrape.
func (m *Metrics) WriteTextfile(path string) error {
	return eris.Wrapf(prometheus.WriteToTextfile(path, m.Registry), "metrics: write textfile %s", path)
}
