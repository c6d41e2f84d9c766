package escalation

import (
	"fmt"

	"github.com/assemblage-lab/governor/pkg/contracts"
)

// EffectiveState folds the action log over the computed status. Any
// mitigation resolves the escalation; otherwise any deferral defers it.
// Re-evaluations are recorded for audit only.
func EffectiveState(raw contracts.EscalationState, actions []contracts.ReassemblyAction) contracts.EscalationState {
	deferred := false
	for _, a := range actions {
		switch a.Type {
		case contracts.ActionMitigation:
			return contracts.StateResolved
		case contracts.ActionDeferral:
			deferred = true
		}
	}
	if deferred {
		return contracts.StateDeferred
	}
	return raw
}

// Transition is the status right after action is recorded on a status in
// state current. Mitigations resolve and deferrals defer, whatever came
// before; re-evaluations leave it unchanged. A later full evaluation folds
// the whole log with EffectiveState instead.
func Transition(current contracts.EscalationState, action contracts.ReassemblyAction) contracts.EscalationState {
	switch action.Type {
	case contracts.ActionMitigation:
		return contracts.StateResolved
	case contracts.ActionDeferral:
		return contracts.StateDeferred
	default:
		return current
	}
}

// PrintedLimitations renders one acknowledged limitation per deferral, in
// the order they were recorded.
func PrintedLimitations(actions []contracts.ReassemblyAction) []string {
	out := []string{}
	for _, a := range actions {
		if a.Type != contracts.ActionDeferral {
			continue
		}
		out = append(out, fmt.Sprintf("Deferred (%s): %s", a.Reason, a.Rationale))
	}
	return out
}

// Apply returns raw with actions attached and the effective status set.
// raw is not modified.
func Apply(raw contracts.EscalationStatus, actions []contracts.ReassemblyAction) contracts.EscalationStatus {
	out := raw.Clone()
	out.Actions = append([]contracts.ReassemblyAction{}, actions...)
	out.Status = EffectiveState(raw.Status, actions)
	out.PrintedLimitations = PrintedLimitations(actions)
	return out
}
