package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/assemblage-lab/governor/pkg/contracts"
)

// KindEscalationStatus tags exported status envelopes.
const KindEscalationStatus = "governor/escalation-status"

// StatusEnvelope is the exported record of one effective status.
type StatusEnvelope struct {
	Kind                string                     `json:"kind"`
	DocumentID          string                     `json:"document_id,omitempty"`
	ConstitutionVersion string                     `json:"constitution_version"`
	ExportedAt          time.Time                  `json:"exported_at"`
	Status              contracts.EscalationStatus `json:"status"`
}

// Canonicalize renders v as RFC 8785 canonical JSON.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return out, nil
}

// ExportStatus stores env canonically and returns its content hash. The
// same envelope always yields the same hash.
func ExportStatus(ctx context.Context, store Store, env StatusEnvelope) (string, error) {
	if env.Kind == "" {
		env.Kind = KindEscalationStatus
	}
	env.ExportedAt = env.ExportedAt.UTC().Truncate(time.Millisecond)
	env.Status = env.Status.Clone()

	data, err := Canonicalize(env)
	if err != nil {
		return "", err
	}
	hash, err := store.Store(ctx, data)
	if err != nil {
		return "", fmt.Errorf("export status: %w", err)
	}
	return hash, nil
}

// LoadStatus fetches an exported envelope and checks it against its hash.
func LoadStatus(ctx context.Context, store Store, hash string) (StatusEnvelope, error) {
	data, err := store.Get(ctx, hash)
	if err != nil {
		return StatusEnvelope{}, err
	}
	if got := ContentHash(data); got != hash {
		return StatusEnvelope{}, fmt.Errorf("artifact %s content mismatch: got %s", hash, got)
	}

	var env StatusEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return StatusEnvelope{}, fmt.Errorf("decode artifact %s: %w", hash, err)
	}
	if env.Kind != KindEscalationStatus {
		return StatusEnvelope{}, fmt.Errorf("artifact %s is %q, not an escalation status", hash, env.Kind)
	}
	return env, nil
}
