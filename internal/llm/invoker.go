package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/triagestack/triage-engine/internal/cache"
	"github.com/triagestack/triage-engine/internal/extract"
	"github.com/triagestack/triage-engine/internal/metrics"
	"github.com/triagestack/triage-engine/internal/models"
)

// ErrModelUnavailable reports that inference failed after exhausting the
// retry budget.
var ErrModelUnavailable = errors.New("model unavailable")

// ErrInvalidModelOutput reports that the model answered but no minimum
// viable diagnosis could be extracted. Kept distinct from unavailability for
// monitoring.
var ErrInvalidModelOutput = errors.New("invalid model output")

// Backend performs a single inference call.
type Backend interface {
	Generate(ctx context.Context, prompt string) (Completion, error)
}

// Completion is one raw model answer.
type Completion struct {
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
}

// Invoker runs model inference under a bounded retry policy and parses the
// raw answer into an AnalysisResult. An optional cache keyed by the
// normalized error signature skips inference for previously-seen errors;
// the invoker behaves identically (minus latency) with the cache disabled.
type Invoker struct {
	logger         *slog.Logger
	backend        Backend
	parser         *ResponseParser
	policy         Policy
	cacheProvider  cache.Provider
	cacheTTL       time.Duration
	attemptTimeout time.Duration
	modelName      string
	modelVersion   string
}

// NewInvoker constructs an Invoker. A nil cache provider disables the
// signature cache.
func NewInvoker(
	logger *slog.Logger,
	backend Backend,
	policy Policy,
	modelName, modelVersion string,
	attemptTimeout time.Duration,
	cacheProvider cache.Provider,
	cacheTTL time.Duration,
) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	return &Invoker{
		logger:         logger,
		backend:        backend,
		parser:         NewResponseParser(),
		policy:         policy.normalized(),
		cacheProvider:  cacheProvider,
		cacheTTL:       cacheTTL,
		attemptTimeout: attemptTimeout,
		modelName:      modelName,
		modelVersion:   modelVersion,
	}
}

// Analyze obtains a structured root-cause analysis for one event.
func (inv *Invoker) Analyze(ctx context.Context, event models.ErrorEvent, code models.CodeContext) (models.AnalysisResult, error) {
	if inv.backend == nil {
		return models.AnalysisResult{}, fmt.Errorf("inference backend not configured")
	}

	start := time.Now()
	cacheKey := "analysis:" + extract.Signature(event.Service, event.ErrorType, event.Message)

	completion, fromCache := inv.cachedCompletion(ctx, cacheKey)
	if !fromCache {
		var err error
		completion, err = inv.complete(ctx, BuildPrompt(event, code))
		if err != nil {
			return models.AnalysisResult{}, err
		}
	}

	diag := inv.parser.Parse(completion.Text)
	if !viable(diag) {
		return models.AnalysisResult{}, fmt.Errorf("%w: no root cause or suggestions in %d bytes", ErrInvalidModelOutput, len(completion.Text))
	}

	if !fromCache {
		inv.storeCompletion(ctx, cacheKey, completion)
	}

	return models.AnalysisResult{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Event:     event,
		Result:    diag,
		Metadata: models.AnalysisMetadata{
			ModelName:        inv.modelName,
			ModelVersion:     inv.modelVersion,
			ProcessingTimeMS: time.Since(start).Milliseconds(),
			TokenCount:       completion.TokenCount,
		},
	}, nil
}

func (inv *Invoker) complete(ctx context.Context, prompt string) (Completion, error) {
	var completion Completion
	err := inv.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 0 {
			metrics.IncModelRetries()
		}
		attemptCtx := ctx
		if inv.attemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, inv.attemptTimeout)
			defer cancel()
		}

		result, err := inv.backend.Generate(attemptCtx, prompt)
		if err != nil {
			inv.logger.Warn("model call failed",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", inv.policy.MaxAttempts),
				slog.String("model", inv.modelName),
				slog.Any("error", err))
			return err
		}
		completion = result
		return nil
	})
	if err != nil {
		return Completion{}, fmt.Errorf("%w: %d attempts exhausted: %v", ErrModelUnavailable, inv.policy.MaxAttempts, err)
	}
	return completion, nil
}

// viable requires at least a root cause or one suggestion; anything less is
// treated as invalid output rather than a degraded result.
func viable(diag models.Diagnosis) bool {
	return strings.TrimSpace(diag.RootCause) != "" || len(diag.Suggestions) > 0
}

func (inv *Invoker) cachedCompletion(ctx context.Context, key string) (Completion, bool) {
	payload, err := inv.cacheProvider.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			inv.logger.Warn("analysis cache read failed", slog.Any("error", err))
		}
		return Completion{}, false
	}
	var completion Completion
	if err := json.Unmarshal(payload, &completion); err != nil {
		inv.logger.Warn("analysis cache entry corrupt", slog.Any("error", err))
		return Completion{}, false
	}
	return completion, true
}

func (inv *Invoker) storeCompletion(ctx context.Context, key string, completion Completion) {
	payload, err := json.Marshal(completion)
	if err != nil {
		return
	}
	if err := inv.cacheProvider.Set(ctx, key, payload, inv.cacheTTL); err != nil {
		inv.logger.Warn("analysis cache write failed", slog.Any("error", err))
	}
}
