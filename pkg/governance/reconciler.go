package governance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/assemblage-lab/governor/pkg/contracts"
	"github.com/assemblage-lab/governor/pkg/observability"
)

// DefaultOracleTimeout bounds a single oracle call.
const DefaultOracleTimeout = 20 * time.Second

// AISignalMarker prefixes oracle rationale merged into a status.
const AISignalMarker = "[AI Signal]: "

// Oracle call outcomes, as reported to telemetry.
const (
	OracleOutcomeOpinion = "opinion"
	OracleOutcomeAbstain = "abstain"
	OracleOutcomeError   = "error"
	OracleOutcomeTimeout = "timeout"
	OracleOutcomePanic   = "panic"
)

// HybridReconciler merges the deterministic verdict with an oracle opinion.
// The oracle can raise or corroborate a level, never lower it.
type HybridReconciler struct {
	oracle    EscalationOracle
	timeout   time.Duration
	logger    *slog.Logger
	telemetry *observability.Provider
}

// ReconcilerOption configures a HybridReconciler.
type ReconcilerOption func(*HybridReconciler)

// WithOracleTimeout overrides DefaultOracleTimeout. Non-positive values are ignored.
func WithOracleTimeout(d time.Duration) ReconcilerOption {
	return func(r *HybridReconciler) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithReconcilerLogger sets the logger.
func WithReconcilerLogger(l *slog.Logger) ReconcilerOption {
	return func(r *HybridReconciler) {
		if l != nil {
			r.logger = l.With("component", "reconciler")
		}
	}
}

// WithReconcilerTelemetry records oracle outcomes and latency.
func WithReconcilerTelemetry(p *observability.Provider) ReconcilerOption {
	return func(r *HybridReconciler) {
		r.telemetry = p
	}
}

// NewHybridReconciler creates a reconciler. A nil oracle makes every
// reconciliation deterministic-only.
func NewHybridReconciler(oracle EscalationOracle, opts ...ReconcilerOption) *HybridReconciler {
	r := &HybridReconciler{
		oracle:  oracle,
		timeout: DefaultOracleTimeout,
		logger:  slog.Default().With("component", "reconciler"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HasOracle reports whether non-HARD verdicts are sent to an oracle.
func (r *HybridReconciler) HasOracle() bool {
	return r != nil && r.oracle != nil
}

// Reconcile builds the raw status (no actions applied) from det and, unless
// det is already HARD, the oracle's opinion. Oracle faults are logged and
// the deterministic verdict stands.
func (r *HybridReconciler) Reconcile(ctx context.Context, doc *contracts.AnalysisResult, det DeterministicResult, cfg contracts.EscalationConfiguration) contracts.EscalationStatus {
	level := det.Level.Normalize()
	reasons := append([]contracts.Reason{}, det.Reasons...)

	msgs := make([]string, 0, len(reasons))
	for _, rs := range reasons {
		msgs = append(msgs, rs.Message)
	}
	rationale := strings.Join(msgs, "\n")

	if level != contracts.LevelHard && r.oracle != nil {
		if opinion := r.consult(ctx, doc, cfg); opinion != nil {
			ai := opinion.Level.Normalize()
			cfg.EvaluatorVariance = math.Abs(float64(level.Severity()-ai.Severity())) / 3

			if ai.Severity() > level.Severity() || (ai == level && ai != contracts.LevelNone) {
				level = ai
				reasons = append(reasons, r.oracleReasons(ctx, opinion.Reasons)...)
				if opinion.Rationale != "" {
					marked := AISignalMarker + opinion.Rationale
					if rationale != "" {
						rationale += "\n\n" + marked
					} else {
						rationale = marked
					}
				}
				cfg.EnforcementSignalStrength = contracts.SignalMedium
			}
		}
	}

	if level == contracts.LevelHard {
		cfg.EnforcementSignalStrength = contracts.SignalHigh
	} else if cfg.EnforcementSignalStrength == "" {
		cfg.EnforcementSignalStrength = contracts.SignalLow
	}

	return contracts.EscalationStatus{
		Level:              level,
		Status:             contracts.StateForLevel(level),
		Reasons:            reasons,
		Rationale:          rationale,
		Configuration:      cfg,
		Actions:            []contracts.ReassemblyAction{},
		PrintedLimitations: []string{},
	}
}

func (r *HybridReconciler) consult(ctx context.Context, doc *contracts.AnalysisResult, cfg contracts.EscalationConfiguration) *OracleOpinion {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	opinion, err := r.safeCall(ctx, doc, cfg)
	outcome := OracleOutcomeOpinion
	switch {
	case errors.Is(err, errOraclePanic):
		outcome = OracleOutcomePanic
	case err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		outcome = OracleOutcomeTimeout
	case err != nil:
		outcome = OracleOutcomeError
	case opinion == nil:
		outcome = OracleOutcomeAbstain
	}
	r.telemetry.RecordOracleCall(ctx, outcome, time.Since(start))

	if err != nil {
		r.logger.WarnContext(ctx, "oracle unavailable, keeping deterministic verdict",
			"outcome", outcome, "error", err)
		return nil
	}
	return opinion
}

var errOraclePanic = errors.New("oracle panicked")

func (r *HybridReconciler) safeCall(ctx context.Context, doc *contracts.AnalysisResult, cfg contracts.EscalationConfiguration) (op *OracleOpinion, err error) {
	defer func() {
		if p := recover(); p != nil {
			op = nil
			err = fmt.Errorf("%w: %v", errOraclePanic, p)
		}
	}()
	return r.oracle.Evaluate(ctx, doc, cfg)
}

// oracleReasons keeps the codes that belong to the closed set.
func (r *HybridReconciler) oracleReasons(ctx context.Context, codes []contracts.ReasonCode) []contracts.Reason {
	out := make([]contracts.Reason, 0, len(codes))
	for _, code := range codes {
		reason, err := contracts.NewReason(code, "")
		if err != nil {
			r.logger.WarnContext(ctx, "dropping oracle reason", "code", string(code), "error", err)
			continue
		}
		out = append(out, reason)
	}
	return out
}
