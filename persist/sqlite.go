package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jonwraymond/respcache/cache"
)

const createTables = `
CREATE TABLE IF NOT EXISTS cache_entries (
	position INTEGER PRIMARY KEY,
	key TEXT NOT NULL UNIQUE,
	query TEXT NOT NULL,
	response BLOB NOT NULL,
	created_at_ns INTEGER NOT NULL,
	size INTEGER NOT NULL,
	hits INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS cache_counters (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	hit_count INTEGER NOT NULL,
	miss_count INTEGER NOT NULL
);
`

// SQLiteStore persists state in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and migrates it.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persist: open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createTables); err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Name implements Backend.
func (s *SQLiteStore) Name() string { return DriverSQLite }

// Load reads entries in position order and the counters. An empty database
// yields (nil, nil).
func (s *SQLiteStore) Load(ctx context.Context) (*cache.State, error) {
	var (
		st         cache.State
		hasCounter = true
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT hit_count, miss_count FROM cache_counters WHERE id = 1`,
	).Scan(&st.HitCount, &st.MissCount)
	if errors.Is(err, sql.ErrNoRows) {
		hasCounter = false
	} else if err != nil {
		return nil, fmt.Errorf("persist: load counters: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, query, response, created_at_ns, size, hits FROM cache_entries ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("persist: load entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e  cache.Entry
			ns int64
		)
		if err := rows.Scan(&e.Key, &e.Query, &e.Response, &ns, &e.Size, &e.Hits); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		e.Timestamp = time.Unix(0, ns).UTC()
		st.Entries = append(st.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("persist: load entries: %w", err)
	}

	if !hasCounter && len(st.Entries) == 0 {
		return nil, nil
	}
	return &st, nil
}

// Save replaces both tables in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, st *cache.State) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("persist: clear entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cache_entries (position, key, query, response, created_at_ns, size, hits)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("persist: prepare: %w", err)
	}
	defer stmt.Close()

	for i, e := range st.Entries {
		resp := e.Response
		if resp == nil {
			resp = []byte{}
		}
		if _, err = stmt.ExecContext(ctx, i, e.Key, e.Query, resp, e.Timestamp.UnixNano(), e.Size, e.Hits); err != nil {
			return fmt.Errorf("persist: insert entry: %w", err)
		}
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_counters (id, hit_count, miss_count) VALUES (1, ?, ?)`,
		st.HitCount, st.MissCount,
	); err != nil {
		return fmt.Errorf("persist: save counters: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("persist: commit: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Backend = (*SQLiteStore)(nil)
