package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertType distinguishes informational, warning and error notifications.
type AlertType string

const (
	AlertInfo    AlertType = "info"
	AlertWarning AlertType = "warning"
	AlertError   AlertType = "error"
)

// AlertMetadata carries routing hints attached to a notification.
type AlertMetadata struct {
	Source   string
	Severity string
	Tags     []string
}

// Alert is a single outbound notification. Alerts are created fresh per
// send and never mutated afterwards.
type Alert struct {
	ID        string
	CreatedAt time.Time
	Type      AlertType
	Title     string
	Message   string
	Details   map[string]any
	Metadata  AlertMetadata
}

// NewAlert constructs an Alert with a fresh identifier and timestamp.
func NewAlert(alertType AlertType, title, message string) Alert {
	return Alert{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Type:      alertType,
		Title:     title,
		Message:   message,
		Details:   make(map[string]any),
	}
}
