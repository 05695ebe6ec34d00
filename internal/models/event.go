package models

import (
	"fmt"
	"strings"
)

// ErrorEvent is a single error signal emitted by a running service.
// Events are immutable once received.
type ErrorEvent struct {
	Service    string
	FilePath   string
	Line       int
	ErrorType  string
	Message    string
	StackTrace string
	IssueKey   string
}

// ResolvedIssueKey returns the explicit tracker key when the event carries
// one, otherwise the service+file+line+type composite identity.
func (e ErrorEvent) ResolvedIssueKey() string {
	if e.IssueKey != "" {
		return e.IssueKey
	}
	return fmt.Sprintf("%s:%s:%d:%s", e.Service, e.FilePath, e.Line, e.ErrorType)
}

// Validate reports whether the event carries the minimum fields needed to
// run a triage pipeline.
func (e ErrorEvent) Validate() error {
	if strings.TrimSpace(e.Service) == "" {
		return fmt.Errorf("service is required")
	}
	if strings.TrimSpace(e.ErrorType) == "" {
		return fmt.Errorf("error type is required")
	}
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}

// CodeContext is the source snippet surrounding the failing line, fetched
// once per event and owned by the orchestrator for the run.
type CodeContext struct {
	FilePath   string
	Line       int
	Snippet    string
	Repository string
	Branch     string
	URL        string
}
