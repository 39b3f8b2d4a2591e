package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/networkearth/fishflow/internal/scenario"
)

// SQLiteStore persists catalog snapshots to a single SQLite table as JSON
// blobs, one bucket per scenario family.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewSQLiteStore opens (creating if needed) the catalog database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "fishflow.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS catalog (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create catalog table: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

var catalogBuckets = []string{"movement_scenarios", "depth_scenarios"}

// Load restores the snapshot from the catalog table.
func (s *SQLiteStore) Load(ctx context.Context) (Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM catalog`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("select catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot Snapshot
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return Snapshot{}, fmt.Errorf("scan: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		switch bucket {
		case "movement_scenarios":
			if err := json.Unmarshal(payload, &snapshot.Movement); err != nil {
				return Snapshot{}, fmt.Errorf("decode movement scenarios: %w", err)
			}
		case "depth_scenarios":
			if err := json.Unmarshal(payload, &snapshot.Depth); err != nil {
				return Snapshot{}, fmt.Errorf("decode depth scenarios: %w", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("iterate catalog: %w", err)
	}
	return snapshot.sorted(), nil
}

// Replace snapshots the full catalog into the table.
func (s *SQLiteStore) Replace(ctx context.Context, snapshot Snapshot) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot = snapshot.sorted()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range catalogBuckets {
		var data []byte
		switch bucket {
		case "movement_scenarios":
			data, err = json.Marshal(orEmptyMovement(snapshot.Movement))
		case "depth_scenarios":
			data, err = json.Marshal(orEmptyDepth(snapshot.Depth))
		}
		if err != nil {
			retErr = err
			return retErr
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO catalog(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	return tx.Commit()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *SQLiteStore) Path() string { return s.path }

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func orEmptyMovement(in []scenario.MovementScenario) []scenario.MovementScenario {
	if in == nil {
		return []scenario.MovementScenario{}
	}
	return in
}

func orEmptyDepth(in []scenario.DepthScenario) []scenario.DepthScenario {
	if in == nil {
		return []scenario.DepthScenario{}
	}
	return in
}
