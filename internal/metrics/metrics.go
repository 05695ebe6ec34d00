package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels fully processed events.
	OutcomeSuccess = "success"
	// OutcomeError labels aborted runs (context, model or ledger failures).
	OutcomeError = "error"
)

var (
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triage_engine",
			Name:      "events_total",
			Help:      "Total number of error events handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	eventDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "triage_engine",
			Name:      "event_seconds",
			Help:      "End-to-end triage latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 8, 13, 21, 34},
		},
	)

	stageOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triage_engine",
			Name:      "stage_outcomes_total",
			Help:      "Per-stage outcomes, partitioned by stage and status.",
		},
		[]string{"stage", "status"},
	)

	escalationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "triage_engine",
			Name:      "escalations_total",
			Help:      "Total number of events that reached the escalation engine.",
		},
	)

	modelRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "triage_engine",
			Name:      "model_retries_total",
			Help:      "Total number of model invocation retries.",
		},
	)
)

// Register attaches triage-engine collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		eventsTotal,
		eventDurationSeconds,
		stageOutcomesTotal,
		escalationsTotal,
		modelRetriesTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveEvent records one end-to-end run with its duration and outcome label.
func ObserveEvent(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	eventsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	eventDurationSeconds.Observe(duration.Seconds())
}

// ObserveStage records the status of one pipeline stage.
func ObserveStage(stage, status string) {
	stageOutcomesTotal.WithLabelValues(stage, status).Inc()
}

// IncEscalations counts an event handed to the escalation engine.
func IncEscalations() {
	escalationsTotal.Inc()
}

// IncModelRetries counts one model invocation retry.
func IncModelRetries() {
	modelRetriesTotal.Inc()
}
