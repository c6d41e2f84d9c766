package governance

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/decls"
	"github.com/google/cel-go/common/types"

	"github.com/assemblage-lab/governor/pkg/contracts"
)

// CELCompiler turns CEL source into rule predicates, so that amendments to
// the constitution can be stored as data instead of code.
//
// Expressions see two variables:
//
//	analysis: key_insight, raw_response, blindspot_intensity, dominant_logic,
//	          lines_of_flight (list of {name, description, risk_level})
//	config:   recurrence_count (int), risk_domain_severity, evaluator_variance,
//	          enforcement_signal_strength
type CELCompiler struct {
	env       *cel.Env
	validator *CELProfileValidator
}

// NewCELCompiler initializes the CEL environment.
func NewCELCompiler() (*CELCompiler, error) {
	env, err := cel.NewEnv(
		cel.VariableDecls(
			decls.NewVariable("analysis", types.NewMapType(types.StringType, types.DynType)),
			decls.NewVariable("config", types.NewMapType(types.StringType, types.DynType)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &CELCompiler{env: env, validator: NewCELProfileValidator()}, nil
}

// Compile validates expr against the deterministic profile and compiles it.
func (c *CELCompiler) Compile(ruleID, expr string) (Predicate, error) {
	if issues := c.validator.ValidateExpression(expr); len(issues) > 0 {
		msgs := make([]string, 0, len(issues))
		for _, is := range issues {
			msgs = append(msgs, is.Message)
		}
		return nil, fmt.Errorf("rule %s: %s", ruleID, strings.Join(msgs, "; "))
	}

	ast, iss := c.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("rule %s: compilation failed: %w", ruleID, iss.Err())
	}
	switch ast.OutputType().Kind() {
	case types.BoolKind, types.DynKind:
	default:
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", ruleID, ast.OutputType())
	}

	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("rule %s: program construction failed: %w", ruleID, err)
	}

	return func(doc *contracts.AnalysisResult, cfg contracts.EscalationConfiguration) (bool, error) {
		out, _, err := prg.Eval(map[string]any{
			"analysis": analysisInput(doc),
			"config":   configInput(cfg),
		})
		if err != nil {
			return false, fmt.Errorf("rule %s: evaluation error: %w", ruleID, err)
		}
		matched, ok := out.Value().(bool)
		if !ok {
			return false, fmt.Errorf("rule %s: non-boolean result %v", ruleID, out.Value())
		}
		return matched, nil
	}, nil
}

// analysisInput flattens the document so every key is always present.
func analysisInput(doc *contracts.AnalysisResult) map[string]any {
	in := map[string]any{
		"key_insight":         "",
		"raw_response":        "",
		"blindspot_intensity": string(doc.BlindspotIntensity()),
		"dominant_logic":      doc.DominantLogic(),
	}
	if doc != nil {
		in["key_insight"] = doc.KeyInsight
		in["raw_response"] = doc.RawResponse
	}

	flights := make([]any, 0)
	for _, l := range doc.LinesOfFlight() {
		flights = append(flights, map[string]any{
			"name":        l.Name,
			"description": l.Description,
			"risk_level":  string(l.RiskLevel),
		})
	}
	in["lines_of_flight"] = flights
	return in
}

func configInput(cfg contracts.EscalationConfiguration) map[string]any {
	return map[string]any{
		"recurrence_count":            int64(cfg.RecurrenceCount),
		"risk_domain_severity":        string(cfg.RiskDomainSeverity),
		"evaluator_variance":          cfg.EvaluatorVariance,
		"enforcement_signal_strength": string(cfg.EnforcementSignalStrength),
	}
}
