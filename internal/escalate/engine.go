package escalate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/triagestack/triage-engine/internal/models"
)

// NotificationSender dispatches one alert and reports the downstream id.
type NotificationSender interface {
	Send(ctx context.Context, alert models.Alert) (string, error)
	CheckAvailability(ctx context.Context) bool
}

// Engine decides whether a classification warrants stakeholder escalation
// and fans notifications out to every matching active rule. It never raises
// to the caller: notification failures are logged and swallowed so a chat
// outage cannot abort the surrounding pipeline.
type Engine struct {
	logger *slog.Logger
	rules  RuleStore
	sender NotificationSender
}

// NewEngine constructs an escalation engine.
func NewEngine(logger *slog.Logger, rules RuleStore, sender NotificationSender) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger, rules: rules, sender: sender}
}

// CheckAndEscalate escalates HIGH and CRITICAL classifications to the
// destinations of every matching active rule. Each rule is processed
// independently; one failed send does not stop the others.
func (e *Engine) CheckAndEscalate(ctx context.Context, classification models.ErrorClassification) {
	if !classification.Impact.Escalates() {
		return
	}
	if e.rules == nil || e.sender == nil {
		e.logger.Warn("escalation skipped: rules or sender not configured",
			slog.String("issue_key", classification.IssueKey))
		return
	}

	rules, err := e.rules.FindActiveRules(ctx, classification.ErrorType, classification.Impact)
	if err != nil {
		e.logger.Error("escalation rule lookup failed",
			slog.String("issue_key", classification.IssueKey),
			slog.Any("error", err))
		return
	}
	if len(rules) == 0 {
		e.logger.Info("no escalation rules matched",
			slog.String("error_type", classification.ErrorType),
			slog.String("impact", string(classification.Impact)))
		return
	}

	for _, rule := range rules {
		e.dispatchRule(ctx, rule, classification)
	}
}

func (e *Engine) dispatchRule(ctx context.Context, rule models.EscalationRule, classification models.ErrorClassification) {
	if rule.Channel == "" {
		return
	}

	alert := e.incidentAlert(rule, classification)
	if _, err := e.sender.Send(ctx, alert); err != nil {
		e.logger.Error("escalation alert failed",
			slog.String("rule", rule.ID),
			slog.String("channel", rule.Channel),
			slog.Any("error", err))
	}

	if len(rule.Users) == 0 {
		return
	}
	mention := e.mentionAlert(rule, classification)
	if _, err := e.sender.Send(ctx, mention); err != nil {
		e.logger.Error("escalation mention failed",
			slog.String("rule", rule.ID),
			slog.String("channel", rule.Channel),
			slog.Any("error", err))
	}
}

func (e *Engine) incidentAlert(rule models.EscalationRule, classification models.ErrorClassification) models.Alert {
	alert := models.NewAlert(
		models.AlertError,
		fmt.Sprintf("[%s] %s in %s", classification.Impact, classification.ErrorType, serviceOf(classification)),
		formatIncident(classification),
	)
	alert.Details["issue_key"] = classification.IssueKey
	alert.Details["error_type"] = classification.ErrorType
	alert.Details["impact"] = string(classification.Impact)
	alert.Details["recurrence_count"] = classification.RecurrenceCount
	alert.Details["channel"] = rule.Channel
	alert.Metadata = models.AlertMetadata{
		Source:   "triage-engine",
		Severity: strings.ToLower(string(classification.Impact)),
		Tags:     analysisTags(classification),
	}
	return alert
}

func (e *Engine) mentionAlert(rule models.EscalationRule, classification models.ErrorClassification) models.Alert {
	mentions := make([]string, 0, len(rule.Users))
	for _, user := range rule.Users {
		mentions = append(mentions, "@"+strings.TrimPrefix(user, "@"))
	}
	alert := models.NewAlert(
		models.AlertWarning,
		fmt.Sprintf("Attention needed: %s", classification.IssueKey),
		fmt.Sprintf("%s please review %s", strings.Join(mentions, " "), classification.IssueKey),
	)
	alert.Details["issue_key"] = classification.IssueKey
	alert.Details["channel"] = rule.Channel
	alert.Details["users"] = append([]string(nil), rule.Users...)
	alert.Metadata = models.AlertMetadata{
		Source:   "triage-engine",
		Severity: strings.ToLower(string(classification.Impact)),
	}
	return alert
}

// formatIncident surfaces issue key, error type, impact, the recurrence
// count when the issue has repeated, and the model's root cause when known.
func formatIncident(classification models.ErrorClassification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Issue: %s\n", classification.IssueKey)
	fmt.Fprintf(&b, "Type: %s\n", classification.ErrorType)
	fmt.Fprintf(&b, "Impact: %s\n", classification.Impact)
	if classification.RecurrenceCount > 1 {
		fmt.Fprintf(&b, "Recurrence: seen %d times\n", classification.RecurrenceCount)
	}
	if classification.Analysis != nil && classification.Analysis.Result.RootCause != "" {
		fmt.Fprintf(&b, "Root cause: %s\n", classification.Analysis.Result.RootCause)
	}
	return strings.TrimRight(b.String(), "\n")
}

func serviceOf(classification models.ErrorClassification) string {
	if classification.Analysis != nil && classification.Analysis.Event.Service != "" {
		return classification.Analysis.Event.Service
	}
	return "unknown-service"
}

func analysisTags(classification models.ErrorClassification) []string {
	if classification.Analysis == nil {
		return nil
	}
	return append([]string(nil), classification.Analysis.Result.Tags...)
}
