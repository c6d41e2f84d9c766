package contracts

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ReassemblyActionType tags the variants of ReassemblyAction.
type ReassemblyActionType string

const (
	ActionMitigation   ReassemblyActionType = "MITIGATION"
	ActionDeferral     ReassemblyActionType = "DEFERRAL"
	ActionReEvaluation ReassemblyActionType = "RE_EVALUATION"
)

// Mitigation strategies offered to reviewers.
const (
	StrategyContext = "MITIGATION_CONTEXT" // Add discursive context
	StrategyScope   = "MITIGATION_SCOPE"   // Restrict policy scope
	StrategyActors  = "MITIGATION_ACTORS"  // Tag hidden actors
	StrategyCustom  = "MITIGATION_CUSTOM"
)

// JustificationPrefix marks a mitigation that argues the finding is valid nuance.
const JustificationPrefix = "[Justification] "

// DeferralReason explains why an escalation cannot be resolved now.
type DeferralReason string

const (
	DeferralStructuralLimit DeferralReason = "STRUCTURAL_LIMIT" // Structural limit of corpus
	DeferralScopeLimit      DeferralReason = "SCOPE_LIMIT"      // Outside policy mandate
	DeferralEpistemicGap    DeferralReason = "EPISTEMIC_GAP"    // Acknowledged epistemic gap
)

// ErrInvalidAction is returned for reassembly actions missing variant fields.
var ErrInvalidAction = errors.New("invalid reassembly action")

// ReassemblyAction is an audit entry recorded by a reviewer. It is a tagged
// union over Type; only the fields of the active variant are set:
//
//	MITIGATION:    StrategyID, Rationale, Timestamp
//	DEFERRAL:      Reason, Rationale, Timestamp
//	RE_EVALUATION: PreviousScore, NewScore, Timestamp, Rationale (optional)
//
// Actions are append-only; nothing ever edits one after it is recorded.
type ReassemblyAction struct {
	Type          ReassemblyActionType `json:"type"`
	StrategyID    string               `json:"strategyId,omitempty"`
	Reason        DeferralReason       `json:"reason,omitempty"`
	Rationale     string               `json:"rationale,omitempty"`
	PreviousScore *float64             `json:"previousScore,omitempty"`
	NewScore      *float64             `json:"newScore,omitempty"`
	Timestamp     int64                `json:"timestamp"` // Unix milliseconds
}

// NewMitigation records that a risk was remediated with the given strategy.
func NewMitigation(strategyID, rationale string, at time.Time) ReassemblyAction {
	if strategyID == "" {
		strategyID = StrategyCustom
	}
	return ReassemblyAction{
		Type:       ActionMitigation,
		StrategyID: strategyID,
		Rationale:  rationale,
		Timestamp:  at.UnixMilli(),
	}
}

// NewJustification records a mitigation arguing the flagged content is valid nuance.
func NewJustification(argument string, at time.Time) ReassemblyAction {
	return NewMitigation(StrategyCustom, JustificationPrefix+argument, at)
}

// NewDeferral records an acknowledged limitation that prevents resolution.
func NewDeferral(reason DeferralReason, rationale string, at time.Time) ReassemblyAction {
	return ReassemblyAction{
		Type:      ActionDeferral,
		Reason:    reason,
		Rationale: rationale,
		Timestamp: at.UnixMilli(),
	}
}

// NewReEvaluation records a score change. It does not change status.
func NewReEvaluation(previousScore, newScore float64, rationale string, at time.Time) ReassemblyAction {
	return ReassemblyAction{
		Type:          ActionReEvaluation,
		PreviousScore: &previousScore,
		NewScore:      &newScore,
		Rationale:     rationale,
		Timestamp:     at.UnixMilli(),
	}
}

// Validate checks that the fields of the active variant are present.
func (a ReassemblyAction) Validate() error {
	if a.Timestamp <= 0 {
		return fmt.Errorf("%w: %s missing timestamp", ErrInvalidAction, a.Type)
	}
	switch a.Type {
	case ActionMitigation:
		if a.StrategyID == "" {
			return fmt.Errorf("%w: mitigation missing strategyId", ErrInvalidAction)
		}
	case ActionDeferral:
		switch a.Reason {
		case DeferralStructuralLimit, DeferralScopeLimit, DeferralEpistemicGap:
		default:
			return fmt.Errorf("%w: unknown deferral reason %q", ErrInvalidAction, a.Reason)
		}
	case ActionReEvaluation:
		if a.PreviousScore == nil || a.NewScore == nil {
			return fmt.Errorf("%w: re-evaluation missing scores", ErrInvalidAction)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, a.Type)
	}
	return nil
}

// IsJustification reports whether a mitigation was recorded as a justification.
func (a ReassemblyAction) IsJustification() bool {
	return a.Type == ActionMitigation && strings.HasPrefix(a.Rationale, JustificationPrefix)
}

// RecordedAt converts the millisecond timestamp back to a time.
func (a ReassemblyAction) RecordedAt() time.Time {
	return time.UnixMilli(a.Timestamp).UTC()
}
