package core

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the per-process registry singleton alongside the data-root
// path, using prometheus/client_golang counters.
type Metrics struct {
	EventsIngested   *prometheus.CounterVec
	EventsRejected   *prometheus.CounterVec
	JobsScheduled    prometheus.Counter
	JobsCompleted    *prometheus.CounterVec
	BlobBytesServed  prometheus.Counter
	WasmExecDuration prometheus.Histogram
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// active is the process-wide handle EventStore/Scheduler/RangeBlobServer
// reach for when recording observations; nil until DefaultMetrics runs, in
// which case recordings are silently skipped — a build that never calls
// DefaultMetrics just never registers the counters.
var active *Metrics

// DefaultMetrics returns the process-wide Metrics singleton, registering it
// with reg on first call.
func DefaultMetrics(reg prometheus.Registerer) *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			EventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "squiggle",
				Name:      "events_ingested_total",
				Help:      "Events accepted into an EventStore, by kind.",
			}, []string{"kind"}),
			EventsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "squiggle",
				Name:      "events_rejected_total",
				Help:      "Events rejected during ingest, by error kind.",
			}, []string{"reason"}),
			JobsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "squiggle",
				Name:      "jobs_scheduled_total",
				Help:      "Program-run jobs written to the scheduling document.",
			}),
			JobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "squiggle",
				Name:      "jobs_completed_total",
				Help:      "Worker job completions, by result status.",
			}, []string{"status"}),
			BlobBytesServed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "squiggle",
				Name:      "blob_bytes_served_total",
				Help:      "Bytes served by the range blob gateway.",
			}),
			WasmExecDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "squiggle",
				Name:      "wasm_exec_duration_seconds",
				Help:      "WASM job execution wall time.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
		reg.MustRegister(
			metrics.EventsIngested,
			metrics.EventsRejected,
			metrics.JobsScheduled,
			metrics.JobsCompleted,
			metrics.BlobBytesServed,
			metrics.WasmExecDuration,
		)
		active = metrics
	})
	return metrics
}

func recordIngested(kind Kind) {
	if active != nil {
		active.EventsIngested.WithLabelValues(kind.String()).Inc()
	}
}

func recordRejected(reason string) {
	if active != nil {
		active.EventsRejected.WithLabelValues(reason).Inc()
	}
}
