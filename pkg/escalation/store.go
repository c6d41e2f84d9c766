// Package escalation owns the session state of one document's escalation:
// the status computed by the governance pipeline, the reviewer's
// reassembly actions, and the effective status derived from both.
//
// The pipeline itself is pure (see package governance). Store is the thin
// reactive layer around it that a UI or service observes.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/assemblage-lab/governor/pkg/contracts"
	"github.com/assemblage-lab/governor/pkg/governance"
)

// ErrNoStatus is returned when an action is recorded before any evaluation.
var ErrNoStatus = errors.New("no escalation status to act on")

// Snapshot is what observers receive on every state change.
type Snapshot struct {
	Status    *contracts.EscalationStatus
	Analyzing bool
}

// Store holds the escalation state for a single document. It is safe for
// concurrent use. When evaluations overlap, the most recently started one
// wins and older results are discarded.
type Store struct {
	mu         sync.Mutex
	evaluator  *governance.Evaluator
	ledger     ActionLedger
	documentID string
	raw        *contracts.EscalationStatus
	status     *contracts.EscalationStatus
	actions    []contracts.ReassemblyAction
	analyzing  bool
	generation uint64
	cancel     context.CancelFunc
	observers  map[int]func(Snapshot)
	nextObs    int
	clock      func() time.Time
	logger     *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLedger persists actions for documentID to l, and seeds from it when
// neither memory nor the document carries actions.
func WithLedger(l ActionLedger, documentID string) StoreOption {
	return func(s *Store) {
		s.ledger = l
		s.documentID = documentID
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l.With("component", "escalation_store")
		}
	}
}

// WithClock overrides the clock used to stamp actions without a timestamp.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		s.clock = clock
	}
}

// NewStore creates a store over the evaluation pipeline. A nil evaluator
// uses the default constitution without an oracle.
func NewStore(evaluator *governance.Evaluator, opts ...StoreOption) *Store {
	if evaluator == nil {
		evaluator = governance.NewEvaluator(nil, nil, nil)
	}
	s := &Store{
		evaluator: evaluator,
		observers: make(map[int]func(Snapshot)),
		clock:     time.Now,
		logger:    slog.Default().With("component", "escalation_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type evaluateOptions struct {
	excludeID string
}

// EvaluateOption configures a single evaluation.
type EvaluateOption func(*evaluateOptions)

// WithExcludeID removes the corpus entry with this id from recurrence
// matching, typically the document itself.
func WithExcludeID(id string) EvaluateOption {
	return func(o *evaluateOptions) {
		o.excludeID = id
	}
}

// Evaluate runs the governance pipeline for doc against a corpus snapshot
// and applies the recorded actions. It never fails: oracle and rule faults
// degrade to the deterministic verdict.
func (s *Store) Evaluate(ctx context.Context, doc *contracts.AnalysisResult, corpus []contracts.Source, opts ...EvaluateOption) contracts.EscalationStatus {
	var o evaluateOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	evalCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.analyzing = true
	prior := len(s.actions) > 0
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	defer cancel()

	raw := s.evaluator.Evaluate(evalCtx, doc, corpus, o.excludeID)

	var seed []contracts.ReassemblyAction
	if !prior {
		seed = s.seedActions(ctx, doc)
	}

	s.mu.Lock()
	actions := s.actions
	if len(actions) == 0 {
		actions = seed
	}
	effective := Apply(raw, actions)

	if gen != s.generation {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "discarding superseded evaluation", "generation", gen)
		return effective
	}

	s.raw = &raw
	s.actions = effective.Actions
	s.status = &effective
	s.analyzing = false
	s.cancel = nil
	snap = s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	s.logger.InfoContext(ctx, "escalation evaluated",
		"level", effective.Level,
		"status", effective.Status,
		"reasons", len(effective.Reasons),
		"actions", len(effective.Actions),
	)
	return effective.Clone()
}

// seedActions restores actions from the document's persisted status, or
// failing that from the durable ledger.
func (s *Store) seedActions(ctx context.Context, doc *contracts.AnalysisResult) []contracts.ReassemblyAction {
	if persisted := doc.PersistedActions(); len(persisted) > 0 {
		return append([]contracts.ReassemblyAction(nil), persisted...)
	}
	if s.ledger == nil {
		return nil
	}
	actions, err := s.ledger.Actions(ctx, s.documentID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load actions from ledger", "document_id", s.documentID, "error", err)
		return nil
	}
	return actions
}

// AddReassemblyAction records action and moves the status the way the
// action type dictates, without re-running the rules. With a ledger configured, the action is
// persisted first; if that fails, nothing changes.
func (s *Store) AddReassemblyAction(ctx context.Context, action contracts.ReassemblyAction) error {
	if action.Timestamp == 0 {
		action.Timestamp = s.clock().UnixMilli()
	}
	if err := action.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.raw == nil {
		s.mu.Unlock()
		return ErrNoStatus
	}
	if s.ledger != nil {
		if err := s.ledger.Record(ctx, s.documentID, action); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to record %s action: %w", action.Type, err)
		}
	}
	current := s.raw.Status
	if s.status != nil {
		current = s.status.Status
	}
	s.actions = append(s.actions, action)
	effective := Apply(*s.raw, s.actions)
	effective.Status = Transition(current, action)
	s.status = &effective
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	s.logger.InfoContext(ctx, "reassembly action recorded",
		"type", action.Type,
		"status", effective.Status,
	)
	return nil
}

// Restore seeds the store from a persisted status record, as when a
// document is reopened.
func (s *Store) Restore(status contracts.EscalationStatus) {
	raw := status.Clone()
	raw.Level = raw.Level.Normalize()
	raw.Status = contracts.StateForLevel(raw.Level)
	raw.Actions = []contracts.ReassemblyAction{}
	raw.PrintedLimitations = []string{}

	s.mu.Lock()
	s.raw = &raw
	s.actions = append([]contracts.ReassemblyAction(nil), status.Actions...)
	effective := Apply(raw, s.actions)
	s.status = &effective
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// Status returns a copy of the current effective status.
func (s *Store) Status() (contracts.EscalationStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == nil {
		return contracts.EscalationStatus{}, false
	}
	return s.status.Clone(), true
}

// HasUnresolvedRisks reports whether the current status still blocks:
// an escalation was detected and no action has resolved or deferred it.
func (s *Store) HasUnresolvedRisks() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status != nil &&
		s.status.Level != contracts.LevelNone &&
		s.status.Status == contracts.StateDetected
}

// IsAnalyzing reports whether an evaluation is in flight.
func (s *Store) IsAnalyzing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analyzing
}

// Subscribe registers fn for state changes and returns a function that
// removes it. fn is called outside the store's lock.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{Analyzing: s.analyzing}
	if s.status != nil {
		st := s.status.Clone()
		snap.Status = &st
	}
	return snap
}

func (s *Store) notify(snap Snapshot) {
	s.mu.Lock()
	fns := make([]func(Snapshot), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
