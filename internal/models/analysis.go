package models

import (
	"strings"
	"time"
)

// Impact captures ordinal severity driving escalation decisions.
type Impact string

const (
	ImpactLow      Impact = "LOW"
	ImpactMedium   Impact = "MEDIUM"
	ImpactHigh     Impact = "HIGH"
	ImpactCritical Impact = "CRITICAL"
)

// ParseImpact normalizes free-form model output into one of the four levels.
// Anything unrecognized maps to MEDIUM.
func ParseImpact(raw string) Impact {
	switch Impact(strings.ToUpper(strings.TrimSpace(raw))) {
	case ImpactLow:
		return ImpactLow
	case ImpactHigh:
		return ImpactHigh
	case ImpactCritical:
		return ImpactCritical
	case ImpactMedium:
		return ImpactMedium
	default:
		return ImpactMedium
	}
}

// Escalates reports whether the level is high enough to trigger escalation.
func (i Impact) Escalates() bool {
	return i == ImpactHigh || i == ImpactCritical
}

// CategoryOther is the fallback for category values outside the closed set.
const CategoryOther = "Other"

// Categories is the closed vocabulary accepted from model output.
var Categories = []string{
	"NullSafety",
	"Concurrency",
	"Resource",
	"Configuration",
	"Network",
	"Database",
	"Logic",
	"Performance",
	"Security",
	CategoryOther,
}

// NormalizeCategory maps a raw category onto the closed vocabulary,
// case-insensitively; non-members become Other.
func NormalizeCategory(raw string) string {
	trimmed := strings.TrimSpace(raw)
	for _, c := range Categories {
		if strings.EqualFold(c, trimmed) {
			return c
		}
	}
	return CategoryOther
}

// Diagnosis is the structured block extracted from the model's free-text
// answer. Missing fields hold documented defaults rather than being optional.
type Diagnosis struct {
	RootCause       string
	Suggestions     []string
	ConfidenceLevel float64
	Category        string
	Tags            []string
	References      []string
	Impact          Impact
}

// AnalysisMetadata records provenance for one model invocation.
type AnalysisMetadata struct {
	ModelName        string
	ModelVersion     string
	ProcessingTimeMS int64
	TokenCount       int
}

// AnalysisResult is the enriched record produced for one ErrorEvent.
type AnalysisResult struct {
	ID        string
	CreatedAt time.Time
	Event     ErrorEvent
	Result    Diagnosis
	Metadata  AnalysisMetadata
}
