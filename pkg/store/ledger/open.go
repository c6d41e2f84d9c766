package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"  // Postgres driver
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Open selects a backend from dsn:
//
//	postgres://... or postgresql://...   Postgres
//	sqlite:<path> or a path ending .db   SQLite
//	anything else                        JSON file
//
// The returned close function releases the database handle, if any.
func Open(ctx context.Context, dsn string) (Ledger, func() error, error) {
	noop := func() error { return nil }

	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return openSQL(ctx, "postgres", dsn, DialectPostgres)
	case strings.HasPrefix(dsn, "sqlite:"):
		return openSQL(ctx, "sqlite", strings.TrimPrefix(dsn, "sqlite:"), DialectSQLite)
	case strings.HasSuffix(dsn, ".db"), strings.HasSuffix(dsn, ".sqlite"):
		return openSQL(ctx, "sqlite", dsn, DialectSQLite)
	case dsn == "":
		return nil, noop, fmt.Errorf("ledger: empty dsn")
	default:
		fl, err := NewFileLedger(dsn)
		if err != nil {
			return nil, noop, err
		}
		return fl, noop, nil
	}
}

func openSQL(ctx context.Context, driver, dsn string, dialect Dialect) (Ledger, func() error, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	l := NewSQLLedger(db, dialect)
	if err := l.Init(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to init ledger schema: %w", err)
	}
	return l, db.Close, nil
}
