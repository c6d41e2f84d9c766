package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/assemblage-lab/governor/pkg/contracts"
)

// ErrNotFound is returned when a ledger entry is not found.
var ErrNotFound = errors.New("not found")

// ErrChainBroken is returned by Verify when an entry's hash does not follow
// from its predecessor.
var ErrChainBroken = errors.New("ledger hash chain broken")

// GenesisHash is the previous hash of a document's first entry.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Entry is one recorded reassembly action. Entries for a document form a
// hash chain ordered by Sequence, starting at 1.
type Entry struct {
	ID           string                     `json:"id"`
	DocumentID   string                     `json:"document_id"`
	Sequence     int64                      `json:"sequence"`
	Action       contracts.ReassemblyAction `json:"action"`
	RecordedAt   time.Time                  `json:"recorded_at"`
	Hash         string                     `json:"hash"`
	PreviousHash string                     `json:"previous_hash"`
}

type hashPayload struct {
	PreviousHash string                     `json:"previous_hash"`
	DocumentID   string                     `json:"document_id"`
	Sequence     int64                      `json:"sequence"`
	Action       contracts.ReassemblyAction `json:"action"`
}

// computeHash is SHA256(previous_hash, document_id, sequence, action) over
// their JSON encoding.
func computeHash(e Entry) (string, error) {
	b, err := json.Marshal(hashPayload{
		PreviousHash: e.PreviousHash,
		DocumentID:   e.DocumentID,
		Sequence:     e.Sequence,
		Action:       e.Action,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// seal fills in the chain fields of e given the previous entry's hash.
func seal(e *Entry, previousHash string) error {
	if previousHash == "" {
		previousHash = GenesisHash
	}
	e.PreviousHash = previousHash
	h, err := computeHash(*e)
	if err != nil {
		return fmt.Errorf("hash entry: %w", err)
	}
	e.Hash = h
	return nil
}

// Verify checks that entries, all for the same document and in sequence
// order, form an unbroken chain.
func Verify(entries []Entry) error {
	prev := GenesisHash
	for i, e := range entries {
		if e.Sequence != int64(i+1) {
			return fmt.Errorf("%w: entry %s has sequence %d, want %d", ErrChainBroken, e.ID, e.Sequence, i+1)
		}
		if e.PreviousHash != prev {
			return fmt.Errorf("%w: entry %s does not follow %s", ErrChainBroken, e.ID, prev)
		}
		h, err := computeHash(e)
		if err != nil {
			return err
		}
		if h != e.Hash {
			return fmt.Errorf("%w: entry %s hash mismatch", ErrChainBroken, e.ID)
		}
		prev = e.Hash
	}
	return nil
}
