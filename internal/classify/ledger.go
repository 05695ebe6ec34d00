package classify

import (
	"context"
	"sync"

	"github.com/triagestack/triage-engine/internal/models"
)

// Ledger is the durable recurrence store keyed by issue key. Entries are
// superseded in place and never deleted.
type Ledger interface {
	GetByIssueKey(ctx context.Context, key string) (models.ErrorClassification, bool, error)
	Upsert(ctx context.Context, classification models.ErrorClassification) error
	Snapshot(ctx context.Context) ([]models.ErrorClassification, error)
}

// MemoryLedger keeps classifications in process memory under one mutex.
// Read-modify-write isolation across runs is the classifier's job (it holds
// a per-key lock around Get+Upsert), so any Ledger implementation only needs
// individually consistent operations.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]models.ErrorClassification
}

// NewMemoryLedger constructs an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string]models.ErrorClassification)}
}

// GetByIssueKey returns the classification for key, if any.
func (l *MemoryLedger) GetByIssueKey(_ context.Context, key string) (models.ErrorClassification, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	return entry, ok, nil
}

// Upsert stores or replaces the classification for its issue key.
func (l *MemoryLedger) Upsert(_ context.Context, classification models.ErrorClassification) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[classification.IssueKey] = classification
	return nil
}

// Snapshot returns a copy of all current entries.
func (l *MemoryLedger) Snapshot(_ context.Context) ([]models.ErrorClassification, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := make([]models.ErrorClassification, 0, len(l.entries))
	for _, entry := range l.entries {
		entries = append(entries, entry)
	}
	return entries, nil
}
