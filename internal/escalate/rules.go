package escalate

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/triagestack/triage-engine/internal/models"
)

// RuleStore resolves active escalation rules for an (error type, impact)
// pair.
type RuleStore interface {
	FindActiveRules(ctx context.Context, errorType string, impact models.Impact) ([]models.EscalationRule, error)
}

// YAMLRuleStore serves rules from a YAML rule pack loaded at startup.
type YAMLRuleStore struct {
	rules  []models.EscalationRule
	logger *slog.Logger
}

type rulePackFile struct {
	Rules []models.EscalationRule `yaml:"rules"`
}

// NewYAMLRuleStore loads the rule pack at path. An empty path or a missing
// file yields an empty store rather than an error, matching how optional
// rule packs are treated elsewhere.
func NewYAMLRuleStore(path string, logger *slog.Logger) (*YAMLRuleStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store := &YAMLRuleStore{logger: logger}
	if path == "" {
		return store, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("escalation rule pack missing", slog.String("path", path))
			return store, nil
		}
		return nil, err
	}

	var pack rulePackFile
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, err
	}
	store.rules = pack.Rules
	logger.Info("escalation rule pack loaded", slog.String("path", path), slog.Int("rules", len(pack.Rules)))
	return store, nil
}

// FindActiveRules returns every active rule matching the identity. Order is
// not guaranteed to be meaningful.
func (s *YAMLRuleStore) FindActiveRules(_ context.Context, errorType string, impact models.Impact) ([]models.EscalationRule, error) {
	matched := make([]models.EscalationRule, 0, 2)
	for _, rule := range s.rules {
		if rule.Matches(errorType, impact) {
			matched = append(matched, rule)
		}
	}
	return matched, nil
}
