package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/triagestack/triage-engine/internal/models"
)

// wireEvent is the JSON shape accepted on the error subject. Producers are
// polyglot, so field aliases seen in the wild are tolerated.
type wireEvent struct {
	Service    string `json:"service"`
	App        string `json:"app"`
	FilePath   string `json:"file_path"`
	File       string `json:"file"`
	Line       int    `json:"line"`
	ErrorType  string `json:"error_type"`
	Type       string `json:"type"`
	Message    string `json:"message"`
	StackTrace string `json:"stack_trace"`
	Stacktrace string `json:"stacktrace"`
	IssueKey   string `json:"issue_key"`
}

// DecodeEvent parses and validates one inbound payload.
func DecodeEvent(data []byte) (models.ErrorEvent, error) {
	var wire wireEvent
	if err := json.Unmarshal(data, &wire); err != nil {
		return models.ErrorEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}

	event := models.ErrorEvent{
		Service:    firstNonEmpty(wire.Service, wire.App),
		FilePath:   firstNonEmpty(wire.FilePath, wire.File),
		Line:       wire.Line,
		ErrorType:  firstNonEmpty(wire.ErrorType, wire.Type),
		Message:    wire.Message,
		StackTrace: firstNonEmpty(wire.StackTrace, wire.Stacktrace),
		IssueKey:   wire.IssueKey,
	}
	if err := event.Validate(); err != nil {
		return models.ErrorEvent{}, fmt.Errorf("invalid event: %w", err)
	}
	return event, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
