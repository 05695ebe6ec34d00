package llm

import (
	"testing"

	"github.com/triagestack/triage-engine/internal/models"
)

func TestParseFullResponse(t *testing.T) {
	raw := `ROOT CAUSE: The amount field is read before the billing record is loaded,
so the first request after a cache flush dereferences nil.

SUGGESTIONS:
1. Guard the amount lookup with a presence check
2) Load the billing record eagerly in the handler
- Add a regression test for the cold-cache path

CATEGORY: NullSafety
IMPACT: critical
TAGS: billing, nil-deref, cold-cache
REFERENCES:
- https://wiki.internal/billing-cache
CONFIDENCE: 0.72`

	diag := NewResponseParser().Parse(raw)

	if diag.RootCause == "" {
		t.Fatalf("expected root cause to be extracted")
	}
	if len(diag.Suggestions) != 3 {
		t.Fatalf("expected 3 suggestions, got %d: %v", len(diag.Suggestions), diag.Suggestions)
	}
	if diag.Suggestions[0] != "Guard the amount lookup with a presence check" {
		t.Fatalf("unexpected first suggestion: %q", diag.Suggestions[0])
	}
	if diag.Category != "NullSafety" {
		t.Fatalf("expected NullSafety, got %q", diag.Category)
	}
	if diag.Impact != models.ImpactCritical {
		t.Fatalf("expected CRITICAL, got %s", diag.Impact)
	}
	if len(diag.Tags) != 3 {
		t.Fatalf("expected 3 tags, got %v", diag.Tags)
	}
	if len(diag.References) != 1 {
		t.Fatalf("expected 1 reference, got %v", diag.References)
	}
	if diag.ConfidenceLevel != 0.72 {
		t.Fatalf("expected explicit confidence 0.72, got %f", diag.ConfidenceLevel)
	}
}

func TestParseMissingSectionsUsesDefaults(t *testing.T) {
	diag := NewResponseParser().Parse("The model rambled without any labels at all.")

	if diag.RootCause != "" {
		t.Fatalf("expected empty root cause, got %q", diag.RootCause)
	}
	if len(diag.Suggestions) != 0 {
		t.Fatalf("expected no suggestions, got %v", diag.Suggestions)
	}
	if diag.Category != models.CategoryOther {
		t.Fatalf("expected Other, got %q", diag.Category)
	}
	if diag.Impact != models.ImpactMedium {
		t.Fatalf("expected MEDIUM, got %s", diag.Impact)
	}
	if diag.ConfidenceLevel != DefaultConfidence {
		t.Fatalf("expected default confidence, got %f", diag.ConfidenceLevel)
	}
	if len(diag.Tags) != 0 || len(diag.References) != 0 {
		t.Fatalf("expected empty tags and references, got %v / %v", diag.Tags, diag.References)
	}
}

func TestParseUnknownCategoryBecomesOther(t *testing.T) {
	diag := NewResponseParser().Parse("CATEGORY: Quantum Entanglement\nROOT CAUSE: x")
	if diag.Category != models.CategoryOther {
		t.Fatalf("expected Other, got %q", diag.Category)
	}
}

func TestParseImpactVariants(t *testing.T) {
	cases := map[string]models.Impact{
		"IMPACT: low":         models.ImpactLow,
		"IMPACT: HiGh":        models.ImpactHigh,
		"impact: CRITICAL":    models.ImpactCritical,
		"IMPACT: catastropic": models.ImpactMedium,
		"IMPACT:":             models.ImpactMedium,
	}
	parser := NewResponseParser()
	for raw, want := range cases {
		if got := parser.Parse(raw).Impact; got != want {
			t.Errorf("%q: expected %s, got %s", raw, want, got)
		}
	}
}

func TestParseConfidenceClamping(t *testing.T) {
	parser := NewResponseParser()

	if got := parser.Parse("CONFIDENCE: 1.7").ConfidenceLevel; got != 1 {
		t.Fatalf("expected clamp to 1, got %f", got)
	}
	if got := parser.Parse("CONFIDENCE: -3").ConfidenceLevel; got != 0 {
		t.Fatalf("expected clamp to 0, got %f", got)
	}
	if got := parser.Parse("CONFIDENCE: 85%").ConfidenceLevel; got != 0.85 {
		t.Fatalf("expected 0.85 from percentage, got %f", got)
	}
	if got := parser.Parse("CONFIDENCE: not sure").ConfidenceLevel; got != DefaultConfidence {
		t.Fatalf("expected default for unparseable confidence, got %f", got)
	}
}

func TestParseNeverPanicsOnNoise(t *testing.T) {
	inputs := []string{
		"",
		"\n\n\n",
		"SUGGESTIONS:",
		"TAGS: ,,,",
		"ROOT CAUSE:",
		"#### IMPACT",
		"1. 2. 3.",
	}
	parser := NewResponseParser()
	for _, raw := range inputs {
		diag := parser.Parse(raw)
		if diag.Suggestions == nil || diag.Tags == nil || diag.References == nil {
			t.Fatalf("expected non-nil slices for %q", raw)
		}
	}
}
