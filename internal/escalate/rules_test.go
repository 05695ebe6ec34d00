package escalate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triagestack/triage-engine/internal/models"
)

const rulePack = `rules:
  - id: npe-critical
    error_type: NullPointerException
    impact: CRITICAL
    channel: "#incidents"
    users: [alice, bob]
    active: true
  - id: any-high
    impact: HIGH
    channel: "#oncall"
    active: true
  - id: retired
    error_type: NullPointerException
    impact: CRITICAL
    channel: "#legacy"
    active: false
`

func writeRulePack(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rulePack), 0o600))
	return path
}

func TestYAMLRuleStoreMatchesTypeAndImpact(t *testing.T) {
	store, err := NewYAMLRuleStore(writeRulePack(t), nil)
	require.NoError(t, err)

	rules, err := store.FindActiveRules(context.Background(), "NullPointerException", models.ImpactCritical)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "npe-critical", rules[0].ID)
	assert.Equal(t, []string{"alice", "bob"}, rules[0].Users)
}

func TestYAMLRuleStoreWildcardErrorType(t *testing.T) {
	store, err := NewYAMLRuleStore(writeRulePack(t), nil)
	require.NoError(t, err)

	rules, err := store.FindActiveRules(context.Background(), "TimeoutException", models.ImpactHigh)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "any-high", rules[0].ID)
}

func TestYAMLRuleStoreExcludesInactive(t *testing.T) {
	store, err := NewYAMLRuleStore(writeRulePack(t), nil)
	require.NoError(t, err)

	rules, err := store.FindActiveRules(context.Background(), "NullPointerException", models.ImpactCritical)
	require.NoError(t, err)
	for _, rule := range rules {
		assert.NotEqual(t, "retired", rule.ID)
	}
}

func TestYAMLRuleStoreMissingFile(t *testing.T) {
	store, err := NewYAMLRuleStore(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.NoError(t, err)

	rules, err := store.FindActiveRules(context.Background(), "NullPointerException", models.ImpactCritical)
	require.NoError(t, err)
	assert.Empty(t, rules)
}
