package governance

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/assemblage-lab/governor/pkg/contracts"
	"github.com/assemblage-lab/governor/pkg/observability"
)

type spyOracle struct {
	calls   atomic.Int32
	opinion *OracleOpinion
}

func (s *spyOracle) Evaluate(context.Context, *contracts.AnalysisResult, contracts.EscalationConfiguration) (*OracleOpinion, error) {
	s.calls.Add(1)
	return s.opinion, nil
}

func newSpyEvaluator(op *OracleOpinion) (*Evaluator, *spyOracle) {
	spy := &spyOracle{opinion: op}
	return NewEvaluator(nil, NewHybridReconciler(spy), nil), spy
}

func TestEvaluator_LowIntensityResolves(t *testing.T) {
	ev, spy := newSpyEvaluator(opinion(contracts.LevelNone, "fine"))

	status := ev.Evaluate(context.Background(), doc(contracts.IntensityLow, "", ""), nil, "")
	assert.Equal(t, contracts.LevelNone, status.Level)
	assert.Equal(t, contracts.StateResolved, status.Status)
	assert.Equal(t, int32(1), spy.calls.Load())
	assert.Equal(t, 1, status.Configuration.RecurrenceCount)
}

func TestEvaluator_AdvisoryWithoutRecurrence(t *testing.T) {
	ev, spy := newSpyEvaluator(nil)

	a := ev.Assess(context.Background(), doc(contracts.IntensityHigh, "Surveillance Capitalism", "platform data"), nil, "")
	assert.Equal(t, contracts.LevelSoft, a.Status.Level)
	assert.Equal(t, contracts.StateDetected, a.Status.Status)
	assert.Equal(t, []string{RuleBlindspotIntensity}, a.Deterministic.Fired)
	assert.Equal(t, 1, a.Recurrence.RecurrenceCount)
	assert.Equal(t, contracts.DomainGeneral, a.Status.Configuration.RiskDomainSeverity)
	assert.Equal(t, int32(1), spy.calls.Load())
}

func TestEvaluator_RecurrenceBlocksWithoutOracle(t *testing.T) {
	ev, spy := newSpyEvaluator(opinion(contracts.LevelNone, ""))
	current := doc(contracts.IntensityHigh, "Surveillance Capitalism", "")
	corpus := []contracts.Source{
		{ID: "a", Analysis: doc(contracts.IntensityHigh, "Surveillance", "")},
		{ID: "b", Analysis: doc(contracts.IntensityHigh, "surveillance capitalism and its discontents", "")},
		{ID: "c", Analysis: doc(contracts.IntensityLow, "Surveillance", "")},
	}

	a := ev.Assess(context.Background(), current, corpus, "")
	assert.Equal(t, 3, a.Recurrence.RecurrenceCount)
	assert.Equal(t, []string{"a", "b"}, a.Recurrence.SimilarProcessIDs)
	assert.Equal(t, contracts.LevelHard, a.Status.Level)
	assert.Contains(t, a.Status.ReasonCodes(), contracts.ReasonRecurrentPattern)
	assert.Equal(t, int32(0), spy.calls.Load())
}

func TestEvaluator_MedicalDomain(t *testing.T) {
	ev, _ := newSpyEvaluator(nil)

	status := ev.Evaluate(context.Background(), doc(contracts.IntensityHigh, "x", "A medical device rollout"), nil, "")
	assert.Equal(t, contracts.DomainMedical, status.Configuration.RiskDomainSeverity)
	assert.Equal(t, contracts.LevelMedium, status.Level)
	require.Len(t, status.Reasons, 2)
}

func TestEvaluator_TrajectoryAlone(t *testing.T) {
	ev, _ := newSpyEvaluator(nil)

	status := ev.Evaluate(context.Background(), doc(contracts.IntensityLow, "", "", contracts.IntensityHigh), nil, "")
	assert.Equal(t, contracts.LevelMedium, status.Level)
	assert.Equal(t, []contracts.ReasonCode{contracts.ReasonHighRiskTrajectory}, status.ReasonCodes())
}

func TestEvaluator_Defaults(t *testing.T) {
	ev := NewEvaluator(nil, nil, nil)
	assert.Equal(t, DefaultConstitutionVersion, ev.Engine().Constitution().Version())

	status := ev.Evaluate(context.Background(), nil, nil, "")
	assert.Equal(t, contracts.LevelNone, status.Level)
	assert.NotNil(t, status.Reasons)
}

// eligibility sums governor.escalation.evaluations by the oracle eligible attribute.
func eligibility(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "governor.escalation.evaluations" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(observability.AttrOracleEligible)
				out[v.Emit()] += dp.Value
			}
		}
	}
	return out
}

func TestEvaluator_RecordsOracleEligibility(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	telemetry, err := observability.New(context.Background(), &observability.Config{
		ServiceName: "governor-test",
		SampleRate:  1,
		Enabled:     true,
		Reader:      reader,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = telemetry.Shutdown(context.Background()) })

	offline := NewEvaluator(nil, NewHybridReconciler(nil), telemetry)
	offline.Evaluate(context.Background(), doc(contracts.IntensityHigh, "x", ""), nil, "")
	assert.Equal(t, map[string]int64{"false": 1}, eligibility(t, reader))

	spy := &spyOracle{}
	online := NewEvaluator(nil, NewHybridReconciler(spy), telemetry)
	online.Evaluate(context.Background(), doc(contracts.IntensityHigh, "x", ""), nil, "")
	assert.Equal(t, map[string]int64{"false": 1, "true": 1}, eligibility(t, reader))
	assert.Equal(t, int32(1), spy.calls.Load())
}
