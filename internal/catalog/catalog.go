// Package catalog persists the scenario metadata discovered from the blob
// store so the API can serve catalog queries without re-listing the bucket.
// Only metadata is stored; computed analysis results are never persisted.
package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/networkearth/fishflow/internal/scenario"
)

// Snapshot is the full catalog state written after each discovery pass.
type Snapshot struct {
	Movement []scenario.MovementScenario `json:"movement"`
	Depth    []scenario.DepthScenario    `json:"depth"`
}

// sorted returns a copy with deterministic scenario ordering.
func (s Snapshot) sorted() Snapshot {
	out := Snapshot{
		Movement: append([]scenario.MovementScenario(nil), s.Movement...),
		Depth:    append([]scenario.DepthScenario(nil), s.Depth...),
	}
	sort.Slice(out.Movement, func(i, j int) bool { return out.Movement[i].ScenarioID < out.Movement[j].ScenarioID })
	sort.Slice(out.Depth, func(i, j int) bool { return out.Depth[i].ScenarioID < out.Depth[j].ScenarioID })
	return out
}

// Store persists and restores catalog snapshots.
type Store interface {
	// Load returns the held snapshot; an empty snapshot when none exists.
	Load(ctx context.Context) (Snapshot, error)
	// Replace persists the snapshot wholesale, superseding the previous one.
	Replace(ctx context.Context, snapshot Snapshot) error
}

// MemoryStore keeps the snapshot in process memory (tests / ephemeral runs).
type MemoryStore struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// NewMemoryStore returns an empty in-memory catalog store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Load returns a copy of the held snapshot.
func (s *MemoryStore) Load(context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.sorted(), nil
}

// Replace swaps in the new snapshot.
func (s *MemoryStore) Replace(_ context.Context, snapshot Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot.sorted()
	return nil
}

// StorageDriver identifies a concrete catalog storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// Open selects a catalog backend using environment variables. Defaults to
// sqlite when unset.
//
//	FISHFLOW_CATALOG_DRIVER: memory|sqlite|postgres (default sqlite)
//	FISHFLOW_SQLITE_PATH: path to sqlite file (default ./fishflow.db)
//	FISHFLOW_POSTGRES_DSN: postgres DSN when driver=postgres
func Open() (Store, error) {
	driver := os.Getenv("FISHFLOW_CATALOG_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return NewMemoryStore(), nil
	case StorageSQLite:
		return NewSQLiteStore(os.Getenv("FISHFLOW_SQLITE_PATH"))
	case StoragePostgres:
		return NewPostgresStore(os.Getenv("FISHFLOW_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown catalog driver %s", driver)
	}
}
