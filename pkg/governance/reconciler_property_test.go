//go:build property
// +build property

package governance_test

import (
	"context"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/assemblage-lab/governor/pkg/contracts"
	"github.com/assemblage-lab/governor/pkg/governance"
)

var levels = []interface{}{
	contracts.LevelNone, contracts.LevelSoft, contracts.LevelMedium, contracts.LevelHard,
}

func deterministic(l contracts.EscalationLevel) governance.DeterministicResult {
	det := governance.DeterministicResult{Level: l}
	if l != contracts.LevelNone {
		det.Reasons = []contracts.Reason{contracts.MustReason(contracts.ReasonHighBlindspotIntensity, "")}
	}
	return det
}

func TestReconcileProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	levelGen := gen.OneConstOf(levels...)
	doc := &contracts.AnalysisResult{KeyInsight: "A sufficiently long insight."}
	cfg := contracts.EscalationConfiguration{RecurrenceCount: 1, RiskDomainSeverity: contracts.DomainGeneral}

	properties.Property("oracle never lowers the deterministic level", prop.ForAll(
		func(det, ai contracts.EscalationLevel) bool {
			r := governance.NewHybridReconciler(governance.OracleFunc(
				func(context.Context, *contracts.AnalysisResult, contracts.EscalationConfiguration) (*governance.OracleOpinion, error) {
					return &governance.OracleOpinion{Level: ai, Reasons: []contracts.ReasonCode{contracts.ReasonHighAbsence}}, nil
				}))
			status := r.Reconcile(context.Background(), doc, deterministic(det), cfg)
			if det == contracts.LevelHard {
				return status.Level == contracts.LevelHard
			}
			return status.Level == contracts.MaxLevel(det, ai)
		},
		levelGen, levelGen,
	))

	properties.Property("hard verdicts never consult the oracle", prop.ForAll(
		func(ai contracts.EscalationLevel) bool {
			called := false
			r := governance.NewHybridReconciler(governance.OracleFunc(
				func(context.Context, *contracts.AnalysisResult, contracts.EscalationConfiguration) (*governance.OracleOpinion, error) {
					called = true
					return &governance.OracleOpinion{Level: ai}, nil
				}))
			status := r.Reconcile(context.Background(), doc, deterministic(contracts.LevelHard), cfg)
			return !called && status.Level == contracts.LevelHard && status.Configuration.EvaluatorVariance == 0
		},
		levelGen,
	))

	properties.Property("variance is the severity gap over three", prop.ForAll(
		func(det, ai contracts.EscalationLevel) bool {
			if det == contracts.LevelHard {
				return true
			}
			r := governance.NewHybridReconciler(governance.OracleFunc(
				func(context.Context, *contracts.AnalysisResult, contracts.EscalationConfiguration) (*governance.OracleOpinion, error) {
					return &governance.OracleOpinion{Level: ai}, nil
				}))
			status := r.Reconcile(context.Background(), doc, deterministic(det), cfg)
			want := math.Abs(float64(det.Severity()-ai.Severity())) / 3
			return math.Abs(status.Configuration.EvaluatorVariance-want) < 1e-9
		},
		levelGen, levelGen,
	))

	properties.TestingRun(t)
}
