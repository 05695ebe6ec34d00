package models

import "time"

// ErrorClassification is the durable recurrence ledger entry for one issue
// key. It is superseded in place on every repeat occurrence, never deleted.
type ErrorClassification struct {
	IssueKey        string
	ErrorType       string
	Impact          Impact
	RecurrenceCount int
	FirstSeen       time.Time
	LastSeen        time.Time
	Analysis        *AnalysisResult
}

// EscalationRule maps (error type, impact level) to notification
// destinations. Rules are read-only reference data.
type EscalationRule struct {
	ID        string   `yaml:"id"`
	ErrorType string   `yaml:"error_type"`
	Impact    Impact   `yaml:"impact"`
	Channel   string   `yaml:"channel"`
	Users     []string `yaml:"users"`
	Active    bool     `yaml:"active"`
}

// Matches reports whether the rule applies to the given identity. An empty
// rule error type acts as a wildcard.
func (r EscalationRule) Matches(errorType string, impact Impact) bool {
	if !r.Active {
		return false
	}
	if r.Impact != impact {
		return false
	}
	return r.ErrorType == "" || r.ErrorType == errorType
}
