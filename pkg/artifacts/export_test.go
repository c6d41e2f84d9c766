package artifacts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assemblage-lab/governor/pkg/contracts"
)

func sampleEnvelope() StatusEnvelope {
	return StatusEnvelope{
		DocumentID:          "doc-1",
		ConstitutionVersion: "1.0.0",
		ExportedAt:          time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.FixedZone("CET", 3600)),
		Status: contracts.EscalationStatus{
			Level:   contracts.LevelMedium,
			Status:  contracts.StateDeferred,
			Reasons: []contracts.Reason{contracts.MustReason(contracts.ReasonHighRiskTrajectory, "")},
			Actions: []contracts.ReassemblyAction{
				contracts.NewDeferral(contracts.DeferralEpistemicGap, "no sources", time.UnixMilli(1700000000000)),
			},
			PrintedLimitations: []string{"Deferred (EPISTEMIC_GAP): no sources"},
		},
	}
}

func TestCanonicalize(t *testing.T) {
	out, err := Canonicalize(map[string]any{"b": 1, "a": []any{2.50, "é"}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[2.5,"é"],"b":1}`, string(out))
}

func TestExportStatus_Deterministic(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	h1, err := ExportStatus(ctx, store, sampleEnvelope())
	require.NoError(t, err)
	h2, err := ExportStatus(ctx, store, sampleEnvelope())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	other := sampleEnvelope()
	other.Status.Level = contracts.LevelHard
	h3, err := ExportStatus(ctx, store, other)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestExportStatus_LoadRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	hash, err := ExportStatus(ctx, store, sampleEnvelope())
	require.NoError(t, err)

	env, err := LoadStatus(ctx, store, hash)
	require.NoError(t, err)
	assert.Equal(t, KindEscalationStatus, env.Kind)
	assert.Equal(t, "doc-1", env.DocumentID)
	assert.Equal(t, time.UTC, env.ExportedAt.Location())
	assert.Equal(t, 123*time.Millisecond, time.Duration(env.ExportedAt.Nanosecond()))
	assert.Equal(t, contracts.StateDeferred, env.Status.Status)
	assert.Equal(t, []string{"Deferred (EPISTEMIC_GAP): no sources"}, env.Status.PrintedLimitations)
}

func TestLoadStatus_RejectsOtherKinds(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	hash, err := store.Store(ctx, []byte(`{"kind":"something/else"}`))
	require.NoError(t, err)
	_, err = LoadStatus(ctx, store, hash)
	require.ErrorContains(t, err, "not an escalation status")

	_, err = LoadStatus(ctx, store, missingHash)
	require.ErrorIs(t, err, ErrNotFound)
}
