package llm

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/triagestack/triage-engine/internal/models"
)

// ResponseParser extracts the structured diagnosis block from free-text model
// output. Model formatting drifts, so every field degrades to a documented
// default instead of failing the analysis; Parse never returns an error.
type ResponseParser struct{}

// NewResponseParser constructs a parser.
func NewResponseParser() *ResponseParser {
	return &ResponseParser{}
}

// DefaultConfidence is used when the model states no explicit confidence.
const DefaultConfidence = 0.9

type section int

const (
	sectionNone section = iota
	sectionRootCause
	sectionSuggestions
	sectionTags
	sectionReferences
)

var sectionLabels = []struct {
	prefix  string
	section section
}{
	{"root cause", sectionRootCause},
	{"rootcause", sectionRootCause},
	{"suggestions", sectionSuggestions},
	{"suggestion", sectionSuggestions},
	{"tags", sectionTags},
	{"references", sectionReferences},
	{"reference", sectionReferences},
}

var bulletPattern = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

// Parse extracts the diagnosis from raw model output.
func (p *ResponseParser) Parse(raw string) models.Diagnosis {
	diag := models.Diagnosis{
		Suggestions:     []string{},
		Tags:            []string{},
		References:      []string{},
		Category:        models.CategoryOther,
		Impact:          models.ImpactMedium,
		ConfidenceLevel: DefaultConfidence,
	}

	var (
		current        = sectionNone
		rootCauseLines []string
		suggestions    []string
		tagText        []string
		references     []string
	)

	for _, line := range strings.Split(raw, "\n") {
		stripped := strings.TrimSpace(strings.TrimLeft(line, "#*"))
		lower := strings.ToLower(stripped)

		// Single-value labels close any open section.
		if rest, ok := labelValue(lower, stripped, "category"); ok {
			diag.Category = models.NormalizeCategory(rest)
			current = sectionNone
			continue
		}
		if rest, ok := labelValue(lower, stripped, "impact"); ok {
			diag.Impact = models.ParseImpact(rest)
			current = sectionNone
			continue
		}
		if rest, ok := labelValue(lower, stripped, "confidence"); ok {
			if level, parsed := parseConfidence(rest); parsed {
				diag.ConfidenceLevel = level
			}
			current = sectionNone
			continue
		}

		if next, rest, ok := matchSection(lower, stripped); ok {
			current = next
			if rest != "" {
				appendSectionLine(&rootCauseLines, &suggestions, &tagText, &references, current, rest)
			}
			continue
		}

		if current == sectionNone || stripped == "" {
			continue
		}
		appendSectionLine(&rootCauseLines, &suggestions, &tagText, &references, current, stripped)
	}

	diag.RootCause = strings.TrimSpace(strings.Join(rootCauseLines, " "))
	diag.Suggestions = cleanItems(suggestions)
	diag.References = cleanItems(references)
	diag.Tags = splitTags(strings.Join(tagText, ","))
	return diag
}

func matchSection(lower, original string) (section, string, bool) {
	for _, candidate := range sectionLabels {
		if !strings.HasPrefix(lower, candidate.prefix) {
			continue
		}
		rest := strings.TrimSpace(original[len(candidate.prefix):])
		rest = strings.TrimLeft(rest, ":- ")
		return candidate.section, rest, true
	}
	return sectionNone, "", false
}

// labelValue matches "label: value" style lines (value possibly empty).
func labelValue(lower, original, label string) (string, bool) {
	if !strings.HasPrefix(lower, label) {
		return "", false
	}
	rest := original[len(label):]
	// Avoid matching e.g. "categorical" for "category".
	if rest != "" && rest[0] != ':' && rest[0] != ' ' && rest[0] != '-' && rest[0] != '=' {
		return "", false
	}
	if strings.HasPrefix(strings.ToLower(rest), " level") {
		rest = rest[len(" level"):]
	}
	return strings.Trim(rest, ":-= "), true
}

func appendSectionLine(rootCause, suggestions, tags, references *[]string, current section, line string) {
	switch current {
	case sectionRootCause:
		*rootCause = append(*rootCause, line)
	case sectionSuggestions:
		*suggestions = append(*suggestions, line)
	case sectionTags:
		*tags = append(*tags, line)
	case sectionReferences:
		*references = append(*references, line)
	}
}

func parseConfidence(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}
	percent := strings.HasSuffix(trimmed, "%")
	trimmed = strings.TrimSuffix(trimmed, "%")
	value, err := strconv.ParseFloat(strings.TrimSpace(trimmed), 64)
	if err != nil {
		return 0, false
	}
	if percent {
		value /= 100
	}
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	return value, true
}

func cleanItems(lines []string) []string {
	items := make([]string, 0, len(lines))
	for _, line := range lines {
		item := strings.TrimSpace(bulletPattern.ReplaceAllString(line, ""))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func splitTags(raw string) []string {
	tags := make([]string, 0, 4)
	seen := make(map[string]struct{})
	for _, tag := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, trimmed)
	}
	return tags
}
