package escalate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triagestack/triage-engine/internal/models"
)

type stubRuleStore struct {
	rules []models.EscalationRule
	err   error
}

func (s *stubRuleStore) FindActiveRules(_ context.Context, errorType string, impact models.Impact) ([]models.EscalationRule, error) {
	if s.err != nil {
		return nil, s.err
	}
	matched := make([]models.EscalationRule, 0)
	for _, rule := range s.rules {
		if rule.Matches(errorType, impact) {
			matched = append(matched, rule)
		}
	}
	return matched, nil
}

type stubSender struct {
	sent []models.Alert
	err  error
}

func (s *stubSender) Send(_ context.Context, alert models.Alert) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, alert)
	return "msg-" + alert.ID, nil
}

func (s *stubSender) CheckAvailability(context.Context) bool { return s.err == nil }

func classificationWith(impact models.Impact, recurrence int) models.ErrorClassification {
	return models.ErrorClassification{
		IssueKey:        "pay:Billing.java:12:NullPointerException",
		ErrorType:       "NullPointerException",
		Impact:          impact,
		RecurrenceCount: recurrence,
		Analysis: &models.AnalysisResult{
			Event:  models.ErrorEvent{Service: "pay"},
			Result: models.Diagnosis{RootCause: "amount read before load", Tags: []string{"billing"}},
		},
	}
}

func activeRule(channel string, users ...string) models.EscalationRule {
	return models.EscalationRule{
		ID:        "r1",
		ErrorType: "NullPointerException",
		Impact:    models.ImpactCritical,
		Channel:   channel,
		Users:     users,
		Active:    true,
	}
}

func TestNeverEscalatesBelowHigh(t *testing.T) {
	sender := &stubSender{}
	engine := NewEngine(nil, &stubRuleStore{rules: []models.EscalationRule{activeRule("#incidents")}}, sender)

	engine.CheckAndEscalate(context.Background(), classificationWith(models.ImpactLow, 1))
	engine.CheckAndEscalate(context.Background(), classificationWith(models.ImpactMedium, 1))

	assert.Empty(t, sender.sent)
}

func TestEscalatesCriticalToMatchingRule(t *testing.T) {
	sender := &stubSender{}
	engine := NewEngine(nil, &stubRuleStore{rules: []models.EscalationRule{activeRule("#incidents")}}, sender)

	engine.CheckAndEscalate(context.Background(), classificationWith(models.ImpactCritical, 1))

	require.Len(t, sender.sent, 1)
	message := sender.sent[0].Message
	assert.Contains(t, message, "pay:Billing.java:12:NullPointerException")
	assert.Contains(t, message, "NullPointerException")
	assert.Contains(t, message, "CRITICAL")
	assert.Contains(t, message, "amount read before load")
	assert.NotContains(t, message, "Recurrence", "first occurrence must not mention recurrence")
}

func TestRecurrenceMentionedOnlyWhenRepeated(t *testing.T) {
	sender := &stubSender{}
	engine := NewEngine(nil, &stubRuleStore{rules: []models.EscalationRule{activeRule("#incidents")}}, sender)

	engine.CheckAndEscalate(context.Background(), classificationWith(models.ImpactCritical, 2))

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Message, "seen 2 times")
}

func TestMentionMessageForRuleUsers(t *testing.T) {
	sender := &stubSender{}
	engine := NewEngine(nil, &stubRuleStore{rules: []models.EscalationRule{activeRule("#incidents", "alice", "@bob")}}, sender)

	engine.CheckAndEscalate(context.Background(), classificationWith(models.ImpactCritical, 1))

	require.Len(t, sender.sent, 2)
	mention := sender.sent[1]
	assert.Contains(t, mention.Message, "@alice")
	assert.Contains(t, mention.Message, "@bob")
	assert.False(t, strings.Contains(mention.Message, "@@bob"), "user handles must not be double-prefixed")
}

func TestAllMatchingRulesProcessed(t *testing.T) {
	rules := []models.EscalationRule{
		activeRule("#incidents"),
		{ID: "r2", Impact: models.ImpactCritical, Channel: "#oncall", Active: true},
		{ID: "r3", Impact: models.ImpactCritical, Channel: "#ignored", Active: false},
	}
	sender := &stubSender{}
	engine := NewEngine(nil, &stubRuleStore{rules: rules}, sender)

	engine.CheckAndEscalate(context.Background(), classificationWith(models.ImpactCritical, 1))

	require.Len(t, sender.sent, 2)
	channels := []string{
		sender.sent[0].Details["channel"].(string),
		sender.sent[1].Details["channel"].(string),
	}
	assert.ElementsMatch(t, []string{"#incidents", "#oncall"}, channels)
}

func TestSendFailuresAreSwallowed(t *testing.T) {
	sender := &stubSender{err: errors.New("chat outage")}
	engine := NewEngine(nil, &stubRuleStore{rules: []models.EscalationRule{activeRule("#incidents", "alice")}}, sender)

	assert.NotPanics(t, func() {
		engine.CheckAndEscalate(context.Background(), classificationWith(models.ImpactCritical, 1))
	})
}

func TestRuleLookupFailureIsSwallowed(t *testing.T) {
	engine := NewEngine(nil, &stubRuleStore{err: errors.New("store down")}, &stubSender{})

	assert.NotPanics(t, func() {
		engine.CheckAndEscalate(context.Background(), classificationWith(models.ImpactCritical, 1))
	})
}
