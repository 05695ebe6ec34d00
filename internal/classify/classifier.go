package classify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/triagestack/triage-engine/internal/models"
)

// Classifier folds analysis results into the recurrence ledger. The first
// observation of an issue key creates a classification with recurrence
// count 1; every repeat increments the count and replaces the attached
// analysis. Counts never decrease.
type Classifier struct {
	logger *slog.Logger
	ledger Ledger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewClassifier constructs a Classifier over the given ledger.
func NewClassifier(logger *slog.Logger, ledger Ledger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		logger: logger,
		ledger: ledger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Classify records one observation of the event's issue key and returns the
// updated classification. Concurrent calls for the same key are serialized
// per key, so N observations always yield recurrence count N.
func (c *Classifier) Classify(ctx context.Context, event models.ErrorEvent, analysis models.AnalysisResult) (models.ErrorClassification, error) {
	if c.ledger == nil {
		return models.ErrorClassification{}, fmt.Errorf("ledger not configured")
	}

	key := event.ResolvedIssueKey()
	lock := c.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()
	analysisCopy := analysis

	existing, found, err := c.ledger.GetByIssueKey(ctx, key)
	if err != nil {
		return models.ErrorClassification{}, fmt.Errorf("ledger read for %s: %w", key, err)
	}

	var next models.ErrorClassification
	if found {
		next = existing
		next.RecurrenceCount++
		next.Impact = analysis.Result.Impact
		next.Analysis = &analysisCopy
		next.LastSeen = now
	} else {
		next = models.ErrorClassification{
			IssueKey:        key,
			ErrorType:       event.ErrorType,
			Impact:          analysis.Result.Impact,
			RecurrenceCount: 1,
			FirstSeen:       now,
			LastSeen:        now,
			Analysis:        &analysisCopy,
		}
	}

	if err := c.ledger.Upsert(ctx, next); err != nil {
		return models.ErrorClassification{}, fmt.Errorf("ledger write for %s: %w", key, err)
	}

	if next.RecurrenceCount > 1 {
		c.logger.Debug("recurring issue observed",
			slog.String("issue_key", key),
			slog.Int("recurrence", next.RecurrenceCount))
	}
	return next, nil
}

// keyLock returns the mutex guarding one issue key. Locks are never
// reclaimed; the ledger itself grows with distinct keys anyway.
func (c *Classifier) keyLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	return lock
}
