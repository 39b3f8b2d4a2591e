package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	pgDriver = "pgx"
	// Default DSN keeps parity with Open defaults while allowing overrides via env.
	pgDefaultDSN = "postgres://localhost/fishflow?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// PostgresStore persists catalog snapshots to Postgres using the same
// bucket layout as the sqlite store.
type PostgresStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewPostgresStore opens a Postgres-backed catalog store using the provided
// DSN (falls back to a localhost default) and ensures the catalog table
// exists.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		dsn = pgDefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(pgDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	ddl := `CREATE TABLE IF NOT EXISTS catalog (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("ensure catalog table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Load restores the snapshot from the catalog table.
func (s *PostgresStore) Load(ctx context.Context) (Snapshot, error) {
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
			return Snapshot{}, fmt.Errorf("scan catalog: %w", err)
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
func (s *PostgresStore) Replace(ctx context.Context, snapshot Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot = snapshot.sorted()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
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
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO catalog(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *PostgresStore) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a
// restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
