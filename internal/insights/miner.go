package insights

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/triagestack/triage-engine/internal/classify"
	"github.com/triagestack/triage-engine/internal/models"
)

// Hotspot is one recurring issue surfaced by the miner.
type Hotspot struct {
	IssueKey        string
	Service         string
	ErrorType       string
	Impact          models.Impact
	RecurrenceCount int
	LastSeen        time.Time
	RootCause       string
}

// DigestPublisher stores one rendered digest page.
type DigestPublisher interface {
	PublishDigest(ctx context.Context, title, body string) (string, error)
}

// Miner periodically folds the recurrence ledger into a hotspot digest so
// chronically repeating issues stay visible between escalations.
type Miner struct {
	logger        *slog.Logger
	ledger        classify.Ledger
	publisher     DigestPublisher
	minRecurrence int
	topN          int
}

// NewMiner constructs the insights miner. publisher may be nil for dry runs.
func NewMiner(logger *slog.Logger, ledger classify.Ledger, publisher DigestPublisher, minRecurrence, topN int) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	if minRecurrence < 1 {
		minRecurrence = 2
	}
	if topN < 1 {
		topN = 10
	}
	return &Miner{
		logger:        logger,
		ledger:        ledger,
		publisher:     publisher,
		minRecurrence: minRecurrence,
		topN:          topN,
	}
}

// Mine returns the current hotspots, most frequent first. Ties break on
// recency, then issue key for a stable order.
func (m *Miner) Mine(ctx context.Context) ([]Hotspot, error) {
	entries, err := m.ledger.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger snapshot: %w", err)
	}

	hotspots := make([]Hotspot, 0, len(entries))
	for _, entry := range entries {
		if entry.RecurrenceCount < m.minRecurrence {
			continue
		}
		h := Hotspot{
			IssueKey:        entry.IssueKey,
			ErrorType:       entry.ErrorType,
			Impact:          entry.Impact,
			RecurrenceCount: entry.RecurrenceCount,
			LastSeen:        entry.LastSeen,
		}
		if entry.Analysis != nil {
			h.Service = entry.Analysis.Event.Service
			h.RootCause = entry.Analysis.Result.RootCause
		}
		hotspots = append(hotspots, h)
	}

	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].RecurrenceCount != hotspots[j].RecurrenceCount {
			return hotspots[i].RecurrenceCount > hotspots[j].RecurrenceCount
		}
		if !hotspots[i].LastSeen.Equal(hotspots[j].LastSeen) {
			return hotspots[i].LastSeen.After(hotspots[j].LastSeen)
		}
		return hotspots[i].IssueKey < hotspots[j].IssueKey
	})
	if len(hotspots) > m.topN {
		hotspots = hotspots[:m.topN]
	}
	return hotspots, nil
}

// Publish mines the ledger and stores a digest page. Empty mines publish
// nothing.
func (m *Miner) Publish(ctx context.Context, now time.Time) error {
	hotspots, err := m.Mine(ctx)
	if err != nil {
		return err
	}
	if len(hotspots) == 0 {
		m.logger.Debug("no hotspots to publish")
		return nil
	}
	if m.publisher == nil {
		return nil
	}

	title := fmt.Sprintf("Error hotspots %s", now.UTC().Format("2006-01-02"))
	id, err := m.publisher.PublishDigest(ctx, title, renderDigest(hotspots, now))
	if err != nil {
		return fmt.Errorf("publish digest: %w", err)
	}
	m.logger.Info("hotspot digest published",
		slog.String("page_id", id),
		slog.Int("hotspots", len(hotspots)))
	return nil
}

// Run publishes a digest every interval until ctx is cancelled.
func (m *Miner) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := m.Publish(ctx, now); err != nil {
				m.logger.Warn("hotspot digest failed", slog.Any("error", err))
			}
		}
	}
}

func renderDigest(hotspots []Hotspot, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "h2. Recurring errors as of %s\n\n", now.UTC().Format(time.RFC3339))
	b.WriteString("|| Issue || Service || Type || Impact || Seen || Last ||\n")
	for _, h := range hotspots {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d | %s |\n",
			h.IssueKey,
			orDash(h.Service),
			h.ErrorType,
			h.Impact,
			h.RecurrenceCount,
			h.LastSeen.UTC().Format(time.RFC3339))
	}
	b.WriteString("\n")
	for _, h := range hotspots {
		if h.RootCause == "" {
			continue
		}
		fmt.Fprintf(&b, "h3. %s\n%s\n\n", h.IssueKey, h.RootCause)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
