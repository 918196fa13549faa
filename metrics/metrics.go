package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// SubmissionsTotal counts assessment submissions by outcome.
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assessor",
		Subsystem: "analysis",
		Name:      "submissions_total",
		Help:      "Total number of assessment submissions, labeled by outcome.",
	}, []string{"result"})

	// LLMRequestDuration is end-to-end time per analysis call, by provider.
	LLMRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "assessor",
		Subsystem: "analysis",
		Name:      "llm_request_duration_seconds",
		Help:      "End-to-end time of one analysis request against the LLM provider.",
		// Coarse buckets; generation latency dominates here.
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"provider"})

	// LLMErrorsTotal counts failed analysis calls by classified kind.
	LLMErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assessor",
		Subsystem: "analysis",
		Name:      "llm_errors_total",
		Help:      "Total number of failed LLM calls, labeled by error kind.",
	}, []string{"kind"})

	// PersistFailuresTotal counts background writes that exhausted retries.
	PersistFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assessor",
		Subsystem: "store",
		Name:      "persist_failures_total",
		Help:      "Background persistence tasks that failed after all retries, labeled by task.",
	}, []string{"task"})

	// QueueDroppedTotal counts tasks dropped because the queue was full.
	QueueDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "assessor",
		Subsystem: "store",
		Name:      "queue_dropped_total",
		Help:      "Background tasks dropped on enqueue because the queue was full.",
	})

	// QueueDepth is the current number of queued background tasks.
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "assessor",
		Subsystem: "store",
		Name:      "queue_depth",
		Help:      "Current number of tasks waiting in the background persistence queue.",
	})

	// LeadsTotal counts captured newsletter leads.
	LeadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "assessor",
		Subsystem: "leads",
		Name:      "captured_total",
		Help:      "Total number of lead-capture requests accepted.",
	})

	// PaymentCompletionsTotal counts completed payments by mode.
	PaymentCompletionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assessor",
		Subsystem: "payment",
		Name:      "completions_total",
		Help:      "Completed premium upgrades, labeled by completion mode (checkout, native, demo).",
	}, []string{"mode"})

	// EventPublishErrorsTotal counts failed completed-assessment publishes.
	EventPublishErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "assessor",
		Subsystem: "events",
		Name:      "publish_errors_total",
		Help:      "Total number of failed completed-assessment event publishes.",
	})
)

// Register registers assessor metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			SubmissionsTotal,
			LLMRequestDuration,
			LLMErrorsTotal,
			PersistFailuresTotal,
			QueueDroppedTotal,
			QueueDepth,
			LeadsTotal,
			PaymentCompletionsTotal,
			EventPublishErrorsTotal,
		)
	})
}
