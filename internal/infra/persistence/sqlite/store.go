// Package sqlite persists the survey snapshot to an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"surveycore/internal/infra/persistence"
	"surveycore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.StateStore = (*Store)(nil)

// Store persists the snapshot to a single SQLite table as JSON blobs, one row
// per bucket.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (creating when needed) the SQLite file at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "surveycore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Load reads every bucket and rebuilds the snapshot.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("%w: select state: %v", domain.ErrPersistenceFailure, err)
	}
	defer func() { _ = rows.Close() }()
	dec := persistence.NewDecoder()
	for rows.Next() {
		var (
			bucket  string
			payload []byte
		)
		if err := rows.Scan(&bucket, &payload); err != nil {
			return domain.Snapshot{}, false, fmt.Errorf("%w: scan: %v", domain.ErrPersistenceFailure, err)
		}
		if err := dec.Apply(bucket, payload); err != nil {
			return domain.Snapshot{}, false, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("%w: iterate state: %v", domain.ErrPersistenceFailure, err)
	}
	snap, ok := dec.Snapshot()
	return snap, ok, nil
}

// Save upserts every bucket in one transaction.
func (s *Store) Save(ctx context.Context, snapshot domain.Snapshot) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payloads, err := persistence.EncodeBuckets(snapshot)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrPersistenceFailure, err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, p := range payloads {
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, p.Bucket, p.Data); err != nil {
			return fmt.Errorf("%w: upsert %s: %v", domain.ErrPersistenceFailure, p.Bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

// Driver identifies the backend.
func (s *Store) Driver() string { return "sqlite" }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
