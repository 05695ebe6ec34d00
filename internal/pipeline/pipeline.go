package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/triagestack/triage-engine/internal/models"
)

// ErrContextUnavailable marks a run aborted because the failing source
// could not be fetched from the code host.
var ErrContextUnavailable = errors.New("code context unavailable")

// Stage names one step of a triage run.
type Stage string

const (
	StageContextFetch Stage = "context_fetch"
	StageAnalyze      Stage = "analyze"
	StageClassify     Stage = "classify"
	StageNotify       Stage = "notify"
	StageDocument     Stage = "document"
)

// StageStatus is the outcome of one stage within a run.
type StageStatus string

const (
	StageOK      StageStatus = "ok"
	StageSkipped StageStatus = "skipped"
	StageFailed  StageStatus = "failed"
)

// StageResult records how one stage finished.
type StageResult struct {
	Stage    Stage
	Status   StageStatus
	Err      error
	Duration time.Duration
}

// RunReport is the full outcome of processing one event. The zero values of
// Analysis and Classification are meaningful only for the stages that ran.
type RunReport struct {
	Event          models.ErrorEvent
	Code           models.CodeContext
	Analysis       models.AnalysisResult
	Classification models.ErrorClassification
	DocumentID     string
	Stages         []StageResult
	Duration       time.Duration
}

// StageStatusOf returns the recorded status for a stage, or "" when the run
// aborted before reaching it.
func (r RunReport) StageStatusOf(stage Stage) StageStatus {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s.Status
		}
	}
	return ""
}

// CodeContextProvider fetches the source surrounding a failing line.
type CodeContextProvider interface {
	Fetch(ctx context.Context, repository, file string, line int, branch string) (models.CodeContext, error)
}

// Analyzer produces a structured diagnosis for one event.
type Analyzer interface {
	Analyze(ctx context.Context, event models.ErrorEvent, code models.CodeContext) (models.AnalysisResult, error)
}

// Classifier folds an analysis into the recurrence ledger.
type Classifier interface {
	Classify(ctx context.Context, event models.ErrorEvent, analysis models.AnalysisResult) (models.ErrorClassification, error)
}

// Escalator fans a classification out to notification channels. It owns its
// own failure handling and never blocks the run.
type Escalator interface {
	CheckAndEscalate(ctx context.Context, classification models.ErrorClassification)
}

// DocumentationPublisher persists one analysis as a documentation record.
type DocumentationPublisher interface {
	CreateRecord(ctx context.Context, analysis models.AnalysisResult) (string, error)
}

// Pipeline runs each incoming event through context fetch, model analysis,
// classification, escalation and documentation, in that order. Context fetch
// and analysis failures abort the run; notification and documentation
// failures are logged and the run still succeeds.
type Pipeline struct {
	logger     *slog.Logger
	contexts   CodeContextProvider
	analyzer   Analyzer
	classifier Classifier
	escalator  Escalator
	publisher  DocumentationPublisher
	runTimeout time.Duration
}

// NewPipeline constructs the orchestrator. analyzer and classifier are
// required; the remaining collaborators may be nil, which skips their stage.
func NewPipeline(
	logger *slog.Logger,
	contexts CodeContextProvider,
	analyzer Analyzer,
	classifier Classifier,
	escalator Escalator,
	publisher DocumentationPublisher,
	runTimeout time.Duration,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		logger:     logger,
		contexts:   contexts,
		analyzer:   analyzer,
		classifier: classifier,
		escalator:  escalator,
		publisher:  publisher,
		runTimeout: runTimeout,
	}
}

// Process runs one event through the pipeline.
func (p *Pipeline) Process(ctx context.Context, event models.ErrorEvent) (RunReport, error) {
	started := time.Now()
	report := RunReport{Event: event}

	if p.analyzer == nil || p.classifier == nil {
		return report, fmt.Errorf("pipeline not fully configured")
	}
	if err := event.Validate(); err != nil {
		return report, fmt.Errorf("invalid event: %w", err)
	}

	if p.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.runTimeout)
		defer cancel()
	}

	// Context fetch. Events without a file location, or deployments without
	// a code host, analyze on the event alone.
	var code models.CodeContext
	if p.contexts == nil || event.FilePath == "" {
		report.Stages = append(report.Stages, StageResult{Stage: StageContextFetch, Status: StageSkipped})
	} else {
		stageStart := time.Now()
		fetched, err := p.contexts.Fetch(ctx, event.Service, event.FilePath, event.Line, "")
		if err != nil {
			wrapped := fmt.Errorf("%w: %v", ErrContextUnavailable, err)
			report.Stages = append(report.Stages, StageResult{
				Stage:    StageContextFetch,
				Status:   StageFailed,
				Err:      wrapped,
				Duration: time.Since(stageStart),
			})
			report.Duration = time.Since(started)
			return report, wrapped
		}
		code = fetched
		report.Code = code
		report.Stages = append(report.Stages, StageResult{Stage: StageContextFetch, Status: StageOK, Duration: time.Since(stageStart)})
	}

	// Analysis.
	stageStart := time.Now()
	analysis, err := p.analyzer.Analyze(ctx, event, code)
	if err != nil {
		report.Stages = append(report.Stages, StageResult{
			Stage:    StageAnalyze,
			Status:   StageFailed,
			Err:      err,
			Duration: time.Since(stageStart),
		})
		report.Duration = time.Since(started)
		return report, fmt.Errorf("analyze: %w", err)
	}
	report.Analysis = analysis
	report.Stages = append(report.Stages, StageResult{Stage: StageAnalyze, Status: StageOK, Duration: time.Since(stageStart)})

	// Classification.
	stageStart = time.Now()
	classification, err := p.classifier.Classify(ctx, event, analysis)
	if err != nil {
		report.Stages = append(report.Stages, StageResult{
			Stage:    StageClassify,
			Status:   StageFailed,
			Err:      err,
			Duration: time.Since(stageStart),
		})
		report.Duration = time.Since(started)
		return report, fmt.Errorf("classify: %w", err)
	}
	report.Classification = classification
	report.Stages = append(report.Stages, StageResult{Stage: StageClassify, Status: StageOK, Duration: time.Since(stageStart)})

	// Escalation fan-out.
	if p.escalator == nil {
		report.Stages = append(report.Stages, StageResult{Stage: StageNotify, Status: StageSkipped})
	} else {
		stageStart = time.Now()
		p.escalator.CheckAndEscalate(ctx, classification)
		report.Stages = append(report.Stages, StageResult{Stage: StageNotify, Status: StageOK, Duration: time.Since(stageStart)})
	}

	// Documentation.
	if p.publisher == nil {
		report.Stages = append(report.Stages, StageResult{Stage: StageDocument, Status: StageSkipped})
	} else {
		stageStart = time.Now()
		docID, err := p.publisher.CreateRecord(ctx, analysis)
		if err != nil {
			p.logger.Warn("documentation publish failed",
				slog.String("issue_key", classification.IssueKey),
				slog.Any("error", err))
			report.Stages = append(report.Stages, StageResult{
				Stage:    StageDocument,
				Status:   StageFailed,
				Err:      err,
				Duration: time.Since(stageStart),
			})
		} else {
			report.DocumentID = docID
			report.Stages = append(report.Stages, StageResult{Stage: StageDocument, Status: StageOK, Duration: time.Since(stageStart)})
		}
	}

	report.Duration = time.Since(started)
	p.logger.Info("event processed",
		slog.String("issue_key", classification.IssueKey),
		slog.String("impact", string(classification.Impact)),
		slog.Int("recurrence", classification.RecurrenceCount),
		slog.Duration("took", report.Duration))
	return report, nil
}
