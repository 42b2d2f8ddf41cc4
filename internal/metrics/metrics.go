// Package metrics exposes Prometheus metrics for dataset generation, export and sinks.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/domain"
)

// Registry holds all metrics of a cdrgen process.
type Registry struct {
	// Generation
	CallsGenerated    *prometheus.CounterVec
	ChunksTotal       *prometheus.CounterVec
	ChunkDuration     *prometheus.HistogramVec
	ParallelFallbacks prometheus.Counter
	PhaseDuration     *prometheus.GaugeVec

	// Export
	RowsExported *prometheus.CounterVec

	// Sinks
	SinkRecords  *prometheus.CounterVec
	SinkBatches  *prometheus.CounterVec
	SinkDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewRegistry creates a registry with every metric initialized.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.initGenerationMetrics()
	r.initExportMetrics()
	r.initSinkMetrics()
	return r
}

func (r *Registry) initGenerationMetrics() {
	r.CallsGenerated = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdrgen_calls_generated_total",
			Help: "Call records generated, by anomaly type",
		},
		[]string{"anomaly_type"},
	)

	r.ChunksTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdrgen_chunks_total",
			Help: "Normal call chunks completed, by execution mode",
		},
		[]string{"mode"}, // parallel, serial
	)

	r.ChunkDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cdrgen_chunk_duration_seconds",
			Help:    "Time to generate one chunk of normal calls",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"mode"},
	)

	r.ParallelFallbacks = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "cdrgen_parallel_fallbacks_total",
			Help: "Parallel generation attempts that fell back to serial generation",
		},
	)

	r.PhaseDuration = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cdrgen_phase_duration_seconds",
			Help: "Duration of the last run of each generation phase",
		},
		[]string{"phase"},
	)
}

func (r *Registry) initExportMetrics() {
	r.RowsExported = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdrgen_export_rows_total",
			Help: "Rows written to exported tables",
		},
		[]string{"table"},
	)
}

func (r *Registry) initSinkMetrics() {
	r.SinkRecords = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdrgen_sink_records_total",
			Help: "Records pushed to external sinks",
		},
		[]string{"sink", "status"}, // status: ok, error
	)

	r.SinkBatches = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdrgen_sink_batches_total",
			Help: "Batches pushed to external sinks",
		},
		[]string{"sink", "status"},
	)

	r.SinkDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cdrgen_sink_batch_duration_seconds",
			Help:    "Time to push one batch to a sink",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sink"},
	)
}

// ChunkCompleted records a finished chunk of normal calls.
func (r *Registry) ChunkCompleted(mode string, _ int, elapsed time.Duration) {
	r.ChunksTotal.WithLabelValues(mode).Inc()
	r.ChunkDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// ParallelFallback records a fallback from parallel to serial generation.
func (r *Registry) ParallelFallback() {
	r.ParallelFallbacks.Inc()
}

// PhaseCompleted records the duration of a generation phase.
func (r *Registry) PhaseCompleted(phase string, elapsed time.Duration) {
	r.PhaseDuration.WithLabelValues(phase).Set(elapsed.Seconds())
}

// RecordsGenerated counts generated call records of one type.
func (r *Registry) RecordsGenerated(kind domain.AnomalyType, n int) {
	r.CallsGenerated.WithLabelValues(string(kind)).Add(float64(n))
}

// TableWritten counts exported rows.
func (r *Registry) TableWritten(table string, rows int) {
	r.RowsExported.WithLabelValues(table).Add(float64(rows))
}

// RecordSinkBatch records one batch pushed to a sink.
func (r *Registry) RecordSinkBatch(sink string, records int, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.SinkBatches.WithLabelValues(sink, status).Inc()
	r.SinkRecords.WithLabelValues(sink, status).Add(float64(records))
	r.SinkDuration.WithLabelValues(sink).Observe(elapsed.Seconds())
}

// WriteTextfile dumps the registry in the Prometheus text format.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// Handler serves the registry over HTTP.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
