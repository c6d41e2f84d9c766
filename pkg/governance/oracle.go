package governance

import (
	"context"

	"github.com/assemblage-lab/governor/pkg/contracts"
)

// OracleOpinion is the escalation an external evaluator proposes.
type OracleOpinion struct {
	Level     contracts.EscalationLevel `json:"level"`
	Reasons   []contracts.ReasonCode    `json:"reasons"`
	Rationale string                    `json:"rationale,omitempty"`

	// Degraded marks a stand-in opinion produced because the evaluator
	// failed. It is not persisted and must not be reused.
	Degraded bool `json:"-"`
}

// EscalationOracle is a non-deterministic second opinion on a document.
// A nil opinion with a nil error means the oracle abstains.
type EscalationOracle interface {
	Evaluate(ctx context.Context, doc *contracts.AnalysisResult, cfg contracts.EscalationConfiguration) (*OracleOpinion, error)
}

// OracleFunc adapts a function to EscalationOracle.
type OracleFunc func(ctx context.Context, doc *contracts.AnalysisResult, cfg contracts.EscalationConfiguration) (*OracleOpinion, error)

// Evaluate calls f.
func (f OracleFunc) Evaluate(ctx context.Context, doc *contracts.AnalysisResult, cfg contracts.EscalationConfiguration) (*OracleOpinion, error) {
	return f(ctx, doc, cfg)
}
