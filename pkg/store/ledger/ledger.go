// Package ledger is the durable, append-only log of reassembly actions.
// Every backend chains each document's entries by hash so tampering with
// recorded actions is detectable with Verify.
package ledger

import (
	"context"

	"github.com/assemblage-lab/governor/pkg/contracts"
)

// Ledger is the durable interface for reassembly actions.
type Ledger interface {
	// Append validates and records action as the next entry for documentID.
	Append(ctx context.Context, documentID string, action contracts.ReassemblyAction) (Entry, error)

	// Entries returns the document's entries in sequence order.
	Entries(ctx context.Context, documentID string) ([]Entry, error)

	// Get retrieves an entry by ID.
	Get(ctx context.Context, id string) (Entry, error)

	// Documents lists the IDs of documents with at least one entry, sorted.
	Documents(ctx context.Context) ([]string, error)
}

// ActionLog adapts a Ledger to the action store used by the escalation
// state store.
type ActionLog struct {
	Ledger Ledger
}

// Record appends action for documentID.
func (a ActionLog) Record(ctx context.Context, documentID string, action contracts.ReassemblyAction) error {
	_, err := a.Ledger.Append(ctx, documentID, action)
	return err
}

// Actions returns the recorded actions for documentID, oldest first.
func (a ActionLog) Actions(ctx context.Context, documentID string) ([]contracts.ReassemblyAction, error) {
	entries, err := a.Ledger.Entries(ctx, documentID)
	if err != nil {
		return nil, err
	}
	actions := make([]contracts.ReassemblyAction, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	return actions, nil
}
