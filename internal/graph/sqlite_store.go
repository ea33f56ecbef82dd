package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentic-research/sitemap/api"
	_ "modernc.org/sqlite"
)

// SQLiteFile is the database file name inside a SQLite store directory.
const SQLiteFile = "index.db"

// SQLiteStore implements Store on a single SQLite table. The primary key uses
// the BINARY collation, so ORDER BY key matches Badger's byte order.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a SQLite store in dir.
func OpenSQLite(dir string) (*SQLiteStore, error) {
	if dir == "" {
		return nil, errors.New("path is required for persistent database")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create database directory %s: %w", dir, err)
	}
	dbPath := filepath.Join(dir, SQLiteFile)

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(4)

	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		key TEXT PRIMARY KEY,
		record BLOB NOT NULL
	) WITHOUT ROWID;
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getRow(ctx context.Context, q queryRower, key string) (*api.Record, error) {
	var raw []byte
	err := q.QueryRowContext(ctx, "SELECT record FROM nodes WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec, err := api.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return rec, nil
}

func putRow(ctx context.Context, e execer, key string, rec *api.Record) error {
	data, err := api.Encode(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = e.ExecContext(ctx, "INSERT OR REPLACE INTO nodes (key, record) VALUES (?, ?)", key, data)
	return err
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*api.Record, error) {
	return getRow(ctx, s.db, key)
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, key string, rec *api.Record) error {
	return putRow(ctx, s.db, key, rec)
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM nodes WHERE key = ?", key)
	return err
}

// Merge implements Store in one transaction.
func (s *SQLiteStore) Merge(ctx context.Context, batch map[string]*api.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin merge: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op once committed

	for key, rec := range batch {
		persisted, err := getRow(ctx, tx, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("read %s: %w", key, err)
		}
		if err := putRow(ctx, tx, key, mergeInto(persisted, rec)); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// Scan implements Store.
func (s *SQLiteStore) Scan(ctx context.Context, fn func(key string, rec *api.Record) error) error {
	rows, err := s.db.QueryContext(ctx, "SELECT key, record FROM nodes ORDER BY key")
	if err != nil {
		return fmt.Errorf("query nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		rec, err := api.Decode(raw)
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		if err := fn(key, rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
