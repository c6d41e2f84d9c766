package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/assemblage-lab/governor/pkg/contracts"
)

// FileLedger implements Ledger using a local JSON file (for simple durability).
type FileLedger struct {
	path  string
	mu    sync.RWMutex
	data  map[string][]Entry // document ID -> entries in sequence order
	clock func() time.Time   // Injectable clock
}

func NewFileLedger(path string) (*FileLedger, error) {
	return NewFileLedgerWithClock(path, time.Now)
}

func NewFileLedgerWithClock(path string, clock func() time.Time) (*FileLedger, error) {
	fl := &FileLedger{
		path:  path,
		data:  make(map[string][]Entry),
		clock: clock,
	}
	if err := fl.load(); err != nil {
		return nil, err
	}
	return fl, nil
}

func (f *FileLedger) load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := os.Stat(f.path); os.IsNotExist(err) {
		return nil // Start empty
	}

	bytes, err := os.ReadFile(f.path)
	if err != nil {
		return err
	}
	if len(bytes) == 0 {
		return nil
	}

	if err := json.Unmarshal(bytes, &f.data); err != nil {
		return fmt.Errorf("corrupt ledger file %s: %w", f.path, err)
	}
	return nil
}

func (f *FileLedger) save() error {
	bytes, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, bytes, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileLedger) Append(ctx context.Context, documentID string, action contracts.ReassemblyAction) (Entry, error) {
	if err := action.Validate(); err != nil {
		return Entry{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	chain := f.data[documentID]
	prev := GenesisHash
	if n := len(chain); n > 0 {
		prev = chain[n-1].Hash
	}

	e := Entry{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Sequence:   int64(len(chain) + 1),
		Action:     action,
		RecordedAt: f.clock().UTC(),
	}
	if err := seal(&e, prev); err != nil {
		return Entry{}, err
	}

	f.data[documentID] = append(chain, e)
	if err := f.save(); err != nil {
		f.data[documentID] = chain
		return Entry{}, err
	}
	return e, nil
}

func (f *FileLedger) Entries(ctx context.Context, documentID string) ([]Entry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return append([]Entry{}, f.data[documentID]...), nil
}

func (f *FileLedger) Get(ctx context.Context, id string) (Entry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, chain := range f.data {
		for _, e := range chain {
			if e.ID == id {
				return e, nil
			}
		}
	}
	return Entry{}, ErrNotFound
}

func (f *FileLedger) Documents(ctx context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ids := make([]string, 0, len(f.data))
	for id, chain := range f.data {
		if len(chain) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
