package governance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/assemblage-lab/governor/pkg/contracts"
)

// DeterministicResult is the rule engine's verdict before any AI signal.
type DeterministicResult struct {
	Level   contracts.EscalationLevel `json:"level"`
	Reasons []contracts.Reason        `json:"reasons"`
	Fired   []string                  `json:"fired"` // IDs of matching rules, in order
}

// RuleEngine evaluates a constitution against one document.
type RuleEngine struct {
	constitution *Constitution
	logger       *slog.Logger
}

// NewRuleEngine creates an engine over c; a nil c uses the default constitution.
func NewRuleEngine(c *Constitution, logger *slog.Logger) *RuleEngine {
	if c == nil {
		c = DefaultConstitution()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleEngine{
		constitution: c,
		logger:       logger.With("component", "rule_engine"),
	}
}

// Constitution returns the rule set the engine evaluates.
func (e *RuleEngine) Constitution() *Constitution {
	return e.constitution
}

// Evaluate runs every rule. Each match contributes its reason; only a
// strictly more severe level replaces the running maximum, so the first
// rule to reach a severity owns it. A faulting rule is logged and skipped.
func (e *RuleEngine) Evaluate(ctx context.Context, doc *contracts.AnalysisResult, cfg contracts.EscalationConfiguration) DeterministicResult {
	result := DeterministicResult{
		Level:   contracts.LevelNone,
		Reasons: []contracts.Reason{},
		Fired:   []string{},
	}

	for _, rule := range e.constitution.rules {
		matched, err := safeEvaluate(rule, doc, cfg)
		if err != nil {
			e.logger.ErrorContext(ctx, "rule failed to evaluate", "rule_id", rule.ID, "error", err)
			continue
		}
		if !matched {
			continue
		}

		result.Reasons = append(result.Reasons, contracts.Reason{
			Code:    rule.Consequence.Code,
			Message: rule.Consequence.Reason,
		})
		result.Fired = append(result.Fired, rule.ID)
		if rule.Consequence.Level.Severity() > result.Level.Severity() {
			result.Level = rule.Consequence.Level
		}
	}

	return result
}

func safeEvaluate(rule GovernanceRule, doc *contracts.AnalysisResult, cfg contracts.EscalationConfiguration) (matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
			err = fmt.Errorf("rule %s panicked: %v", rule.ID, r)
		}
	}()
	return rule.Evaluate(doc, cfg)
}
