package governance

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assemblage-lab/governor/pkg/contracts"
)

func TestNewConstitution_Validation(t *testing.T) {
	pred := func(*contracts.AnalysisResult, contracts.EscalationConfiguration) (bool, error) { return false, nil }
	ok := Consequence{Level: contracts.LevelSoft, Code: contracts.ReasonHighAbsence}

	_, err := NewConstitution("not-a-version", nil)
	require.Error(t, err)

	_, err = NewConstitution("1.0.0", []GovernanceRule{{ID: "A", Evaluate: pred, Consequence: ok}, {ID: "A", Evaluate: pred, Consequence: ok}})
	require.ErrorIs(t, err, ErrDuplicateRule)

	_, err = NewConstitution("1.0.0", []GovernanceRule{{ID: "A", Consequence: ok}})
	require.ErrorIs(t, err, ErrInvalidRule)

	_, err = NewConstitution("1.0.0", []GovernanceRule{{ID: "A", Evaluate: pred, Consequence: Consequence{Level: "SEVERE", Code: contracts.ReasonHighAbsence}}})
	require.ErrorIs(t, err, ErrInvalidRule)

	_, err = NewConstitution("1.0.0", []GovernanceRule{{ID: "A", Evaluate: pred, Consequence: Consequence{Level: contracts.LevelSoft, Code: "FREEFORM"}}})
	require.ErrorIs(t, err, ErrInvalidRule)
}

func TestConstitution_Amend(t *testing.T) {
	base := DefaultConstitution()
	assert.Equal(t, "1.0.0", base.Version())
	assert.Equal(t, 4, base.Len())

	pred := func(*contracts.AnalysisResult, contracts.EscalationConfiguration) (bool, error) { return true, nil }

	added, err := base.Amend(GovernanceRule{
		ID:          "RULE_COMMUNITY",
		Evaluate:    pred,
		Consequence: Consequence{Level: contracts.LevelSoft, Code: contracts.ReasonHighColoniality, Reason: "voted"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", added.Version())
	assert.Equal(t, 5, added.Len())
	assert.Equal(t, 4, base.Len(), "receiver must not change")

	r, ok := added.Lookup("RULE_COMMUNITY")
	require.True(t, ok)
	assert.Equal(t, &RuleMeta{Source: SourceCommunityVote, Version: 1}, r.Meta)

	replaced, err := added.Amend(GovernanceRule{
		ID:          RuleBlindspotIntensity,
		Evaluate:    pred,
		Consequence: Consequence{Level: contracts.LevelMedium, Code: contracts.ReasonHighBlindspotIntensity, Reason: "stricter"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", replaced.Version())
	assert.Equal(t, 5, replaced.Len())
	assert.Equal(t, RuleBlindspotIntensity, replaced.Rules()[0].ID, "replacement keeps position")
	assert.Equal(t, &RuleMeta{Source: SourceCommunityVote, Version: 2}, replaced.Rules()[0].Meta)

	orig, _ := base.Lookup(RuleBlindspotIntensity)
	assert.Equal(t, contracts.LevelSoft, orig.Consequence.Level)

	_, err = base.Amend(GovernanceRule{ID: "bad"})
	require.ErrorIs(t, err, ErrInvalidRule)
}

func TestConstitution_RulesReturnsCopy(t *testing.T) {
	c := DefaultConstitution()
	rules := c.Rules()
	rules[0].ID = "MUTATED"
	_, ok := c.Lookup(RuleBlindspotIntensity)
	assert.True(t, ok)
}

func TestCELCompiler_Compile(t *testing.T) {
	compiler, err := NewCELCompiler()
	require.NoError(t, err)

	pred, err := compiler.Compile("R", `analysis.blindspot_intensity == "High" && config.recurrence_count >= 2`)
	require.NoError(t, err)

	hit, err := pred(doc(contracts.IntensityHigh, "x", ""), generalConfig(2))
	require.NoError(t, err)
	assert.True(t, hit)

	hit, err = pred(doc(contracts.IntensityHigh, "x", ""), generalConfig(1))
	require.NoError(t, err)
	assert.False(t, hit)

	hit, err = pred(nil, generalConfig(5))
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCELCompiler_LinesOfFlight(t *testing.T) {
	compiler, err := NewCELCompiler()
	require.NoError(t, err)

	pred, err := compiler.Compile("R", `analysis.lines_of_flight.exists(l, l.risk_level == "High") && config.risk_domain_severity == "LEGAL"`)
	require.NoError(t, err)

	cfg := generalConfig(1)
	cfg.RiskDomainSeverity = contracts.DomainLegal
	hit, err := pred(doc(contracts.IntensityLow, "", "", contracts.IntensityHigh), cfg)
	require.NoError(t, err)
	assert.True(t, hit)

	hit, err = pred(doc(contracts.IntensityLow, "", ""), cfg)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCELCompiler_Rejects(t *testing.T) {
	compiler, err := NewCELCompiler()
	require.NoError(t, err)

	tests := []struct {
		name string
		expr string
	}{
		{"syntax", `analysis.key_insight ==`},
		{"non boolean", `"not a verdict"`},
		{"clock", `timestamp("2024-01-01T00:00:00Z") > timestamp("2023-01-01T00:00:00Z")`},
		{"regex", `analysis.key_insight.matches("a+")`},
		{"double", `double(config.recurrence_count) > 1.5`},
		{"dyn", `dyn(analysis.key_insight) == ""`},
		{"unknown variable", `document.key_insight == ""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compiler.Compile("R", tt.expr)
			assert.Error(t, err)
		})
	}
}

func TestCELProfileValidator_StableOrder(t *testing.T) {
	v := NewCELProfileValidator()
	issues := v.ValidateExpression(`now() > timestamp("x") && double(1) > 0.0`)
	require.Len(t, issues, 3)
	assert.Equal(t, "now", issues[0].Name)
	assert.Equal(t, "timestamp", issues[1].Name)
	assert.Equal(t, "banned_type", issues[2].Type)

	assert.Empty(t, v.ValidateExpression(`analysis.dominant_logic.contains("Surveillance")`))
}

const amendments = `
version: "1.3.0"
rules:
  - id: RULE_LEGAL_TRAJECTORY
    description: Bind reassembly for risky trajectories in legal texts
    expression: 'config.risk_domain_severity == "LEGAL" && analysis.lines_of_flight.exists(l, l.risk_level == "High")'
    level: hard
    code: HIGH_RISK_TRAJECTORY
  - id: RULE_BLINDSPOT_INTENSITY
    description: Medium intensity is advisory too
    expression: 'analysis.blindspot_intensity in ["High", "Medium"]'
    level: SOFT
    code: HIGH_BLINDSPOT_INTENSITY
    reason: Elevated Blindspot Intensity detected.
    meta:
      source: COMMUNITY_VOTE
      version: 7
`

func TestParseConstitution(t *testing.T) {
	c, err := ParseConstitution([]byte(amendments))
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", c.Version())
	assert.Equal(t, 5, c.Len())

	legal, ok := c.Lookup("RULE_LEGAL_TRAJECTORY")
	require.True(t, ok)
	assert.Equal(t, contracts.LevelHard, legal.Consequence.Level)
	assert.Equal(t, contracts.ReasonHighRiskTrajectory.DefaultMessage(), legal.Consequence.Reason)
	assert.NotEmpty(t, legal.Expression)

	blind, _ := c.Lookup(RuleBlindspotIntensity)
	assert.Equal(t, &RuleMeta{Source: SourceCommunityVote, Version: 7}, blind.Meta)

	res := NewRuleEngine(c, nil).Evaluate(context.Background(), doc(contracts.IntensityMedium, "", ""), generalConfig(1))
	assert.Equal(t, contracts.LevelSoft, res.Level)
	assert.Equal(t, "Elevated Blindspot Intensity detected.", res.Reasons[0].Message)
}

func TestParseConstitution_Errors(t *testing.T) {
	tests := map[string]string{
		"bad yaml":       "rules: [",
		"unknown code":   "rules:\n  - id: R\n    expression: 'true'\n    level: SOFT\n    code: FREEFORM\n",
		"unknown level":  "rules:\n  - id: R\n    expression: 'true'\n    level: SEVERE\n    code: MANUAL_TRIGGER\n",
		"missing id":     "rules:\n  - expression: 'true'\n    level: SOFT\n    code: MANUAL_TRIGGER\n",
		"duplicate id":   "rules:\n  - {id: R, expression: 'true', level: SOFT, code: MANUAL_TRIGGER}\n  - {id: R, expression: 'true', level: SOFT, code: MANUAL_TRIGGER}\n",
		"bad expression": "rules:\n  - {id: R, expression: 'now() > 1', level: SOFT, code: MANUAL_TRIGGER}\n",
		"bad version":    "version: one\nrules: []\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConstitution([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestParseConstitution_ReplaceDefaults(t *testing.T) {
	c, err := ParseConstitution([]byte("replace_defaults: true\nrules:\n  - {id: ONLY, expression: 'config.recurrence_count > 1', level: MEDIUM, code: RECURRENT_PATTERN}\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, "1.1.0", c.Version())
}

func TestLoadConstitution(t *testing.T) {
	path := filepath.Join(t.TempDir(), "constitution.yaml")
	require.NoError(t, os.WriteFile(path, []byte(amendments), 0o600))

	c, err := LoadConstitution(path)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Len())

	_, err = LoadConstitution(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
