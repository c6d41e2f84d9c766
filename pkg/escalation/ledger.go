package escalation

import (
	"context"
	"sync"

	"github.com/assemblage-lab/governor/pkg/contracts"
)

// ActionLedger is durable storage for reassembly actions, keyed by document.
// Implementations are append-only.
type ActionLedger interface {
	Record(ctx context.Context, documentID string, action contracts.ReassemblyAction) error
	Actions(ctx context.Context, documentID string) ([]contracts.ReassemblyAction, error)
}

// MemoryLedger is an in-process ActionLedger.
type MemoryLedger struct {
	mu      sync.RWMutex
	actions map[string][]contracts.ReassemblyAction
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{actions: make(map[string][]contracts.ReassemblyAction)}
}

func (l *MemoryLedger) Record(_ context.Context, documentID string, action contracts.ReassemblyAction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.actions[documentID] = append(l.actions[documentID], action)
	return nil
}

func (l *MemoryLedger) Actions(_ context.Context, documentID string) ([]contracts.ReassemblyAction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]contracts.ReassemblyAction(nil), l.actions[documentID]...), nil
}
