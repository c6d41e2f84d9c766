package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/assemblage-lab/governor/pkg/contracts"
)

// Dialect selects placeholder syntax.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// SQLLedger implements Ledger using database/sql.
// It supports both Postgres and SQLite via standard drivers.
type SQLLedger struct {
	db      *sql.DB
	dialect Dialect
	clock   func() time.Time
}

func NewSQLLedger(db *sql.DB, dialect Dialect) *SQLLedger {
	return &SQLLedger{db: db, dialect: dialect, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (s *SQLLedger) WithClock(clock func() time.Time) *SQLLedger {
	s.clock = clock
	return s
}

const schema = `
CREATE TABLE IF NOT EXISTS reassembly_actions (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	sequence BIGINT NOT NULL,
	action_type TEXT NOT NULL,
	action TEXT NOT NULL,
	recorded_at BIGINT NOT NULL,
	hash TEXT NOT NULL,
	previous_hash TEXT NOT NULL,
	UNIQUE (document_id, sequence)
);
`

const entryColumns = `id, document_id, sequence, action, recorded_at, hash, previous_hash`

func (s *SQLLedger) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// rebind rewrites ? placeholders as $n for Postgres.
func (s *SQLLedger) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLLedger) Append(ctx context.Context, documentID string, action contracts.ReassemblyAction) (Entry, error) {
	if err := action.Validate(); err != nil {
		return Entry{}, err
	}
	actionJSON, err := json.Marshal(action)
	if err != nil {
		return Entry{}, fmt.Errorf("encode action: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		lastSeq  int64
		lastHash string
	)
	err = tx.QueryRowContext(ctx,
		s.rebind(`SELECT sequence, hash FROM reassembly_actions WHERE document_id = ? ORDER BY sequence DESC LIMIT 1`),
		documentID,
	).Scan(&lastSeq, &lastHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("read chain tail: %w", err)
	}

	e := Entry{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Sequence:   lastSeq + 1,
		Action:     action,
		RecordedAt: time.UnixMilli(s.clock().UnixMilli()).UTC(),
	}
	if err := seal(&e, lastHash); err != nil {
		return Entry{}, err
	}

	_, err = tx.ExecContext(ctx,
		s.rebind(`INSERT INTO reassembly_actions (id, document_id, sequence, action_type, action, recorded_at, hash, previous_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.DocumentID, e.Sequence, string(action.Type), string(actionJSON), e.RecordedAt.UnixMilli(), e.Hash, e.PreviousHash,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (s *SQLLedger) Entries(ctx context.Context, documentID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+entryColumns+` FROM reassembly_actions WHERE document_id = ? ORDER BY sequence ASC`),
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *SQLLedger) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+entryColumns+` FROM reassembly_actions WHERE id = ?`), id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

func (s *SQLLedger) Documents(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT document_id FROM reassembly_actions ORDER BY document_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e          Entry
		actionJSON string
		recordedMs int64
	)
	if err := row.Scan(&e.ID, &e.DocumentID, &e.Sequence, &actionJSON, &recordedMs, &e.Hash, &e.PreviousHash); err != nil {
		return Entry{}, err
	}
	if err := json.Unmarshal([]byte(actionJSON), &e.Action); err != nil {
		// Fail loud for integrity.
		return Entry{}, fmt.Errorf("corrupt action in entry %s: %w", e.ID, err)
	}
	e.RecordedAt = time.UnixMilli(recordedMs).UTC()
	return e, nil
}
