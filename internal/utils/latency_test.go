package utils

import (
	"testing"
	"time"
)

func TestLatencyTrackerPercentile(t *testing.T) {
	tracker := NewLatencyTracker(10)
	for _, d := range []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		30 * time.Millisecond,
		40 * time.Millisecond,
		50 * time.Millisecond,
	} {
		tracker.Observe(d)
	}

	if tracker.Count() != 5 {
		t.Fatalf("expected 5 samples, got %d", tracker.Count())
	}
	if p95 := tracker.Percentile(95); p95 < 40*time.Millisecond {
		t.Fatalf("expected p95 >= 40ms, got %v", p95)
	}
	if p0 := tracker.Percentile(0); p0 != 10*time.Millisecond {
		t.Fatalf("expected min 10ms, got %v", p0)
	}
	if p100 := tracker.Percentile(100); p100 != 50*time.Millisecond {
		t.Fatalf("expected max 50ms, got %v", p100)
	}
}

func TestLatencyTrackerEmpty(t *testing.T) {
	tracker := NewLatencyTracker(4)
	if got := tracker.Percentile(95); got != 0 {
		t.Fatalf("expected zero on empty tracker, got %v", got)
	}
}

func TestLatencyTrackerRingWraps(t *testing.T) {
	tracker := NewLatencyTracker(3)
	for i := 1; i <= 10; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}
	if tracker.Count() != 3 {
		t.Fatalf("expected bounded count 3, got %d", tracker.Count())
	}
	// Only the most recent samples (8ms, 9ms, 10ms) remain.
	if p0 := tracker.Percentile(0); p0 != 8*time.Millisecond {
		t.Fatalf("expected oldest retained sample 8ms, got %v", p0)
	}
}

func TestAppErrorFormatting(t *testing.T) {
	err := NewAppError("triage.handle", "pipeline not configured", nil)
	if err.Error() != "triage.handle: pipeline not configured" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
