package escalation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assemblage-lab/governor/pkg/contracts"
	"github.com/assemblage-lab/governor/pkg/governance"
)

var fixedTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func highDoc(logic string) *contracts.AnalysisResult {
	return &contracts.AnalysisResult{
		KeyInsight: "Platform governance",
		AssemblageAnalysis: &contracts.AssemblageAnalysis{
			BlindspotIntensity: contracts.IntensityHigh,
			DominantLogic:      logic,
		},
	}
}

func lowDoc() *contracts.AnalysisResult {
	return &contracts.AnalysisResult{
		AssemblageAnalysis: &contracts.AssemblageAnalysis{BlindspotIntensity: contracts.IntensityLow},
	}
}

type failingLedger struct{}

func (failingLedger) Record(context.Context, string, contracts.ReassemblyAction) error {
	return errors.New("disk full")
}

func (failingLedger) Actions(context.Context, string) ([]contracts.ReassemblyAction, error) {
	return nil, errors.New("disk full")
}

func TestStore_EvaluateDetected(t *testing.T) {
	s := NewStore(nil)
	_, ok := s.Status()
	assert.False(t, ok)
	assert.False(t, s.HasUnresolvedRisks())

	status := s.Evaluate(context.Background(), highDoc("Surveillance Capitalism"), nil)
	assert.Equal(t, contracts.LevelSoft, status.Level)
	assert.Equal(t, contracts.StateDetected, status.Status)
	assert.NotNil(t, status.Actions)
	assert.NotNil(t, status.PrintedLimitations)
	assert.True(t, s.HasUnresolvedRisks())
	assert.False(t, s.IsAnalyzing())
}

func TestStore_NoneIsResolved(t *testing.T) {
	s := NewStore(nil)
	status := s.Evaluate(context.Background(), lowDoc(), nil)
	assert.Equal(t, contracts.LevelNone, status.Level)
	assert.Equal(t, contracts.StateResolved, status.Status)
	assert.False(t, s.HasUnresolvedRisks())
}

func TestStore_ActionBeforeEvaluation(t *testing.T) {
	s := NewStore(nil)
	err := s.AddReassemblyAction(context.Background(), contracts.NewMitigation(contracts.StrategyContext, "added context", fixedTime))
	require.ErrorIs(t, err, ErrNoStatus)
}

func TestStore_MitigationResolvesAnyLevel(t *testing.T) {
	docs := map[string]*contracts.AnalysisResult{
		"soft": highDoc("x"),
		"none": lowDoc(),
	}
	corpus := []contracts.Source{
		{ID: "a", Analysis: highDoc("x")},
		{ID: "b", Analysis: highDoc("x")},
	}
	docs["hard"] = highDoc("x")

	for name, d := range docs {
		t.Run(name, func(t *testing.T) {
			s := NewStore(nil)
			var src []contracts.Source
			if name == "hard" {
				src = corpus
			}
			s.Evaluate(context.Background(), d, src)

			require.NoError(t, s.AddReassemblyAction(context.Background(), contracts.NewMitigation(contracts.StrategyScope, "narrowed", fixedTime)))
			status, ok := s.Status()
			require.True(t, ok)
			assert.Equal(t, contracts.StateResolved, status.Status)
			assert.False(t, s.HasUnresolvedRisks())
		})
	}
}

func TestStore_DeferralDefers(t *testing.T) {
	s := NewStore(nil)
	s.Evaluate(context.Background(), highDoc("x"), nil)

	require.NoError(t, s.AddReassemblyAction(context.Background(), contracts.NewDeferral(contracts.DeferralEpistemicGap, "no field data", fixedTime)))
	status, _ := s.Status()
	assert.Equal(t, contracts.StateDeferred, status.Status)
	assert.Equal(t, contracts.LevelSoft, status.Level)
	assert.Equal(t, []string{"Deferred (EPISTEMIC_GAP): no field data"}, status.PrintedLimitations)
	assert.False(t, s.HasUnresolvedRisks())

	require.NoError(t, s.AddReassemblyAction(context.Background(), contracts.NewMitigation("", "fixed", fixedTime)))
	status, _ = s.Status()
	assert.Equal(t, contracts.StateResolved, status.Status, "mitigation outranks deferral")
	assert.Len(t, status.Actions, 2)
}

func TestStore_DeferralAfterMitigationDefers(t *testing.T) {
	s := NewStore(nil)
	s.Evaluate(context.Background(), highDoc("x"), nil)

	require.NoError(t, s.AddReassemblyAction(context.Background(), contracts.NewMitigation(contracts.StrategyScope, "narrowed", fixedTime)))
	require.NoError(t, s.AddReassemblyAction(context.Background(), contracts.NewDeferral(contracts.DeferralEpistemicGap, "awaiting data", fixedTime)))
	status, _ := s.Status()
	assert.Equal(t, contracts.StateDeferred, status.Status)
	assert.Equal(t, []string{"Deferred (EPISTEMIC_GAP): awaiting data"}, status.PrintedLimitations)

	require.NoError(t, s.AddReassemblyAction(context.Background(), contracts.NewReEvaluation(0.8, 0.4, "", fixedTime)))
	status, _ = s.Status()
	assert.Equal(t, contracts.StateDeferred, status.Status)

	// A full evaluation folds the log, where any mitigation resolves.
	s.Evaluate(context.Background(), highDoc("x"), nil)
	status, _ = s.Status()
	assert.Equal(t, contracts.StateResolved, status.Status)
	assert.Len(t, status.Actions, 3)
}

func TestStore_ReEvaluationIsAuditOnly(t *testing.T) {
	s := NewStore(nil)
	s.Evaluate(context.Background(), highDoc("x"), nil)

	require.NoError(t, s.AddReassemblyAction(context.Background(), contracts.NewReEvaluation(0.8, 0.4, "", fixedTime)))
	status, _ := s.Status()
	assert.Equal(t, contracts.StateDetected, status.Status)
	assert.Len(t, status.Actions, 1)
	assert.True(t, s.HasUnresolvedRisks())
}

func TestStore_InvalidAction(t *testing.T) {
	s := NewStore(nil)
	s.Evaluate(context.Background(), highDoc("x"), nil)

	err := s.AddReassemblyAction(context.Background(), contracts.ReassemblyAction{Type: contracts.ActionDeferral, Reason: "BORED", Timestamp: 1})
	require.ErrorIs(t, err, contracts.ErrInvalidAction)
	status, _ := s.Status()
	assert.Empty(t, status.Actions)
}

func TestStore_StampsMissingTimestamp(t *testing.T) {
	s := NewStore(nil, WithClock(func() time.Time { return fixedTime }))
	s.Evaluate(context.Background(), highDoc("x"), nil)

	require.NoError(t, s.AddReassemblyAction(context.Background(), contracts.ReassemblyAction{Type: contracts.ActionMitigation, StrategyID: contracts.StrategyActors}))
	status, _ := s.Status()
	assert.Equal(t, fixedTime.UnixMilli(), status.Actions[0].Timestamp)
}

func TestStore_ActionsSurviveReevaluation(t *testing.T) {
	s := NewStore(nil)
	s.Evaluate(context.Background(), highDoc("x"), nil)
	require.NoError(t, s.AddReassemblyAction(context.Background(), contracts.NewMitigation(contracts.StrategyContext, "ctx", fixedTime)))

	d := highDoc("x")
	d.EscalationStatus = &contracts.EscalationStatus{
		Actions: []contracts.ReassemblyAction{contracts.NewDeferral(contracts.DeferralScopeLimit, "persisted", fixedTime)},
	}
	status := s.Evaluate(context.Background(), d, nil)
	assert.Equal(t, contracts.StateResolved, status.Status, "in-memory actions take precedence")
	require.Len(t, status.Actions, 1)
	assert.Equal(t, contracts.ActionMitigation, status.Actions[0].Type)
}

func TestStore_SeedsFromDocument(t *testing.T) {
	ledger := NewMemoryLedger()
	require.NoError(t, ledger.Record(context.Background(), "doc-1", contracts.NewMitigation(contracts.StrategyContext, "ledger", fixedTime)))
	s := NewStore(nil, WithLedger(ledger, "doc-1"))

	d := highDoc("x")
	d.EscalationStatus = &contracts.EscalationStatus{
		Actions: []contracts.ReassemblyAction{contracts.NewDeferral(contracts.DeferralStructuralLimit, "persisted", fixedTime)},
	}
	status := s.Evaluate(context.Background(), d, nil)
	assert.Equal(t, contracts.StateDeferred, status.Status, "document actions take precedence over the ledger")
	assert.Equal(t, []string{"Deferred (STRUCTURAL_LIMIT): persisted"}, status.PrintedLimitations)
}

func TestStore_SeedsFromLedger(t *testing.T) {
	ledger := NewMemoryLedger()
	require.NoError(t, ledger.Record(context.Background(), "doc-1", contracts.NewMitigation(contracts.StrategyContext, "ledger", fixedTime)))
	require.NoError(t, ledger.Record(context.Background(), "doc-2", contracts.NewDeferral(contracts.DeferralScopeLimit, "other doc", fixedTime)))

	s := NewStore(nil, WithLedger(ledger, "doc-1"))
	status := s.Evaluate(context.Background(), highDoc("x"), nil)
	assert.Equal(t, contracts.StateResolved, status.Status)
	assert.Len(t, status.Actions, 1)
}

func TestStore_LedgerWrittenFirst(t *testing.T) {
	ledger := NewMemoryLedger()
	s := NewStore(nil, WithLedger(ledger, "doc-1"))
	s.Evaluate(context.Background(), highDoc("x"), nil)

	require.NoError(t, s.AddReassemblyAction(context.Background(), contracts.NewDeferral(contracts.DeferralScopeLimit, "mandate", fixedTime)))
	stored, err := ledger.Actions(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestStore_LedgerFailureLeavesStateUnchanged(t *testing.T) {
	s := NewStore(nil, WithLedger(failingLedger{}, "doc-1"))
	status := s.Evaluate(context.Background(), highDoc("x"), nil)
	assert.Equal(t, contracts.StateDetected, status.Status, "ledger read failure is not fatal")

	err := s.AddReassemblyAction(context.Background(), contracts.NewMitigation(contracts.StrategyContext, "ctx", fixedTime))
	require.Error(t, err)

	after, _ := s.Status()
	assert.Equal(t, contracts.StateDetected, after.Status)
	assert.Empty(t, after.Actions)
}

func TestStore_Restore(t *testing.T) {
	s := NewStore(nil)
	s.Restore(contracts.EscalationStatus{
		Level:   contracts.LevelMedium,
		Status:  contracts.StateDeferred,
		Reasons: []contracts.Reason{contracts.MustReason(contracts.ReasonHighRiskTrajectory, "")},
		Actions: []contracts.ReassemblyAction{contracts.NewDeferral(contracts.DeferralEpistemicGap, "gap", fixedTime)},
	})

	status, ok := s.Status()
	require.True(t, ok)
	assert.Equal(t, contracts.StateDeferred, status.Status)
	assert.Equal(t, []string{"Deferred (EPISTEMIC_GAP): gap"}, status.PrintedLimitations)

	// Restored actions are the in-memory log; a mitigation resolves it.
	require.NoError(t, s.AddReassemblyAction(context.Background(), contracts.NewMitigation(contracts.StrategyScope, "scoped", fixedTime)))
	status, _ = s.Status()
	assert.Equal(t, contracts.StateResolved, status.Status)
}

func TestStore_StatusIsACopy(t *testing.T) {
	s := NewStore(nil)
	s.Evaluate(context.Background(), highDoc("x"), nil)

	status, _ := s.Status()
	status.Reasons[0].Message = "tampered"
	status.Actions = append(status.Actions, contracts.NewMitigation("", "", fixedTime))

	again, _ := s.Status()
	assert.Equal(t, "High Blindspot Intensity detected.", again.Reasons[0].Message)
	assert.Empty(t, again.Actions)
}

func TestStore_Subscribe(t *testing.T) {
	s := NewStore(nil)

	var mu sync.Mutex
	var snaps []Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		snaps = append(snaps, snap)
		mu.Unlock()
	})

	s.Evaluate(context.Background(), highDoc("x"), nil)
	require.NoError(t, s.AddReassemblyAction(context.Background(), contracts.NewMitigation(contracts.StrategyContext, "ctx", fixedTime)))

	mu.Lock()
	require.Len(t, snaps, 3)
	assert.True(t, snaps[0].Analyzing)
	assert.Nil(t, snaps[0].Status)
	assert.False(t, snaps[1].Analyzing)
	require.NotNil(t, snaps[1].Status)
	assert.Equal(t, contracts.StateDetected, snaps[1].Status.Status)
	assert.Equal(t, contracts.StateResolved, snaps[2].Status.Status)
	mu.Unlock()

	unsubscribe()
	s.Evaluate(context.Background(), lowDoc(), nil)
	mu.Lock()
	assert.Len(t, snaps, 3)
	mu.Unlock()
}

func TestStore_SupersededEvaluationDiscarded(t *testing.T) {
	entered := make(chan struct{})
	var calls atomic.Int32
	oracle := governance.OracleFunc(func(ctx context.Context, _ *contracts.AnalysisResult, _ contracts.EscalationConfiguration) (*governance.OracleOpinion, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, nil
	})
	ev := governance.NewEvaluator(nil, governance.NewHybridReconciler(oracle), nil)
	s := NewStore(ev)

	done := make(chan contracts.EscalationStatus)
	go func() {
		done <- s.Evaluate(context.Background(), highDoc("x"), nil)
	}()

	<-entered
	assert.True(t, s.IsAnalyzing())

	latest := s.Evaluate(context.Background(), lowDoc(), nil)
	stale := <-done

	assert.Equal(t, contracts.LevelSoft, stale.Level)
	assert.Equal(t, contracts.LevelNone, latest.Level)

	status, _ := s.Status()
	assert.Equal(t, contracts.LevelNone, status.Level, "the most recently started evaluation wins")
	assert.False(t, s.IsAnalyzing())
}
