package governance

import (
	"context"

	"github.com/assemblage-lab/governor/pkg/contracts"
	"github.com/assemblage-lab/governor/pkg/observability"
	"github.com/assemblage-lab/governor/pkg/recurrence"
)

// Assessment is everything one pipeline run produced.
type Assessment struct {
	Recurrence    contracts.RecurrenceContext
	Deterministic DeterministicResult
	Status        contracts.EscalationStatus // raw: no reassembly actions applied
}

// Evaluator runs recurrence, configuration inference, the rule engine and
// the reconciler in that order. It holds no per-document state and is safe
// for concurrent use.
type Evaluator struct {
	engine     *RuleEngine
	reconciler *HybridReconciler
	telemetry  *observability.Provider
}

// NewEvaluator wires the pipeline. Nil arguments fall back to the default
// constitution and a reconciler without an oracle.
func NewEvaluator(engine *RuleEngine, reconciler *HybridReconciler, telemetry *observability.Provider) *Evaluator {
	if engine == nil {
		engine = NewRuleEngine(nil, nil)
	}
	if reconciler == nil {
		reconciler = NewHybridReconciler(nil)
	}
	return &Evaluator{engine: engine, reconciler: reconciler, telemetry: telemetry}
}

// Engine returns the rule engine.
func (e *Evaluator) Engine() *RuleEngine {
	return e.engine
}

// Assess evaluates doc against a corpus snapshot. excludeID, when set,
// removes that corpus entry from recurrence matching.
func (e *Evaluator) Assess(ctx context.Context, doc *contracts.AnalysisResult, corpus []contracts.Source, excludeID string) Assessment {
	rc := recurrence.Calculate(doc, corpus, excludeID)
	cfg := InferConfiguration(doc, &rc)

	ctx, done := e.telemetry.TrackOperation(ctx, observability.OperationEvaluate,
		observability.EvaluationAttrs(excludeID, e.engine.Constitution().Version(), cfg.RecurrenceCount, string(cfg.RiskDomainSeverity))...,
	)
	det := e.engine.Evaluate(ctx, doc, cfg)
	status := e.reconciler.Reconcile(ctx, doc, det, cfg)

	e.telemetry.RecordEvaluation(ctx, string(status.Level), e.reconciler.HasOracle() && det.Level != contracts.LevelHard)
	done(nil)

	return Assessment{Recurrence: rc, Deterministic: det, Status: status}
}

// Evaluate returns only the raw status.
func (e *Evaluator) Evaluate(ctx context.Context, doc *contracts.AnalysisResult, corpus []contracts.Source, excludeID string) contracts.EscalationStatus {
	return e.Assess(ctx, doc, corpus, excludeID).Status
}
