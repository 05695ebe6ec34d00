package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/triagestack/triage-engine/internal/metrics"
	"github.com/triagestack/triage-engine/internal/models"
	"github.com/triagestack/triage-engine/internal/pipeline"
	"github.com/triagestack/triage-engine/internal/utils"
)

// TriageService is the facade between the event stream and the pipeline. It
// owns run accounting: Prometheus counters, per-stage outcomes and the
// rolling latency window.
type TriageService struct {
	logger    *slog.Logger
	pipeline  *pipeline.Pipeline
	latencies *utils.LatencyTracker
}

// NewTriageService constructs the triage facade.
func NewTriageService(logger *slog.Logger, p *pipeline.Pipeline) *TriageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TriageService{
		logger:    logger,
		pipeline:  p,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// Handle processes one inbound event end to end.
func (s *TriageService) Handle(ctx context.Context, event models.ErrorEvent) error {
	if s.pipeline == nil {
		return utils.NewAppError("triage.handle", "pipeline not configured", nil)
	}

	s.logger.Debug("event received",
		slog.String("service", event.Service),
		slog.String("error_type", event.ErrorType),
		slog.String("issue_key", event.ResolvedIssueKey()))

	start := time.Now()
	report, err := s.pipeline.Process(ctx, event)
	duration := time.Since(start)

	for _, stage := range report.Stages {
		metrics.ObserveStage(string(stage.Stage), string(stage.Status))
	}

	if err != nil {
		metrics.ObserveEvent(duration, metrics.OutcomeError)
		s.logger.Error("triage run failed",
			slog.String("issue_key", event.ResolvedIssueKey()),
			slog.Any("error", err))
		return utils.NewAppError("triage.handle", event.ResolvedIssueKey(), err)
	}

	if report.Classification.Impact.Escalates() {
		metrics.IncEscalations()
	}

	s.latencies.Observe(duration)
	metrics.ObserveEvent(duration, metrics.OutcomeSuccess)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("triage latency", slog.Duration("p95", p95), slog.Int("samples", count))
	}

	return nil
}

// LatencyP95 returns the current p95 end-to-end latency.
func (s *TriageService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}
