package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/networkearth/fishflow/internal/scenario"
)

// helper to set and restore env vars
func withEnv(key, value string, fn func()) {
	orig, had := os.LookupEnv(key)
	if value == "" {
		_ = os.Unsetenv(key)
	} else {
		_ = os.Setenv(key, value)
	}
	defer func() {
		if had {
			_ = os.Setenv(key, orig)
		} else {
			_ = os.Unsetenv(key)
		}
	}()
	fn()
}

func sampleSnapshot() Snapshot {
	return Snapshot{
		Movement: []scenario.MovementScenario{
			{
				ScenarioID:        "sockeye",
				Name:              "Sockeye Bristol Bay",
				Dates:             []scenario.Date{scenario.NewDate(2024, time.June, 1)},
				MaximumWindowSize: 14,
				GridSize:          100,
			},
			{
				ScenarioID:        "mackerel",
				Name:              "Atlantic Mackerel",
				Dates:             []scenario.Date{scenario.NewDate(2024, time.March, 1)},
				MaximumWindowSize: 30,
				GridSize:          400,
			},
		},
		Depth: []scenario.DepthScenario{
			{
				ScenarioID: "halibut",
				Name:       "Pacific Halibut",
				TimeWindow: []scenario.Date{scenario.NewDate(2024, time.January, 1), scenario.NewDate(2024, time.December, 31)},
				GridSize:   250,
				DepthBins:  []int{0, 25, 50, 100},
			},
		},
	}
}

func TestMemoryStoreReplaceAndLoad(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	empty, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(empty.Movement) != 0 || len(empty.Depth) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", empty)
	}

	if err := store.Replace(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Movement) != 2 || len(got.Depth) != 1 {
		t.Fatalf("snapshot = %+v", got)
	}
	// Load returns scenarios id-ascending regardless of insert order.
	if got.Movement[0].ScenarioID != "mackerel" || got.Movement[1].ScenarioID != "sockeye" {
		t.Fatalf("movement order = %s, %s", got.Movement[0].ScenarioID, got.Movement[1].ScenarioID)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.Replace(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Movement) != 2 || len(got.Depth) != 1 {
		t.Fatalf("snapshot = %+v", got)
	}
	if got.Depth[0].ScenarioID != "halibut" {
		t.Fatalf("depth[0] = %s", got.Depth[0].ScenarioID)
	}
}

func TestSQLiteStoreReplaceSupersedes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.Replace(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("first replace: %v", err)
	}
	smaller := Snapshot{Movement: sampleSnapshot().Movement[:1]}
	if err := store.Replace(ctx, smaller); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Movement) != 1 || len(got.Depth) != 0 {
		t.Fatalf("replace did not supersede: %+v", got)
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := store.Replace(context.Background(), sampleSnapshot()); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Movement) != 2 {
		t.Fatalf("snapshot lost on reopen: %+v", got)
	}
}

func TestOpen_DefaultSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	withEnv("FISHFLOW_CATALOG_DRIVER", "", func() {
		withEnv("FISHFLOW_SQLITE_PATH", path, func() {
			store, err := Open()
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			sqlite, ok := store.(*SQLiteStore)
			if !ok {
				t.Fatalf("expected *SQLiteStore, got %T", store)
			}
			_ = sqlite.Close()
		})
	})
}

func TestOpen_Memory(t *testing.T) {
	withEnv("FISHFLOW_CATALOG_DRIVER", "memory", func() {
		store, err := Open()
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if _, ok := store.(*MemoryStore); !ok {
			t.Fatalf("expected *MemoryStore, got %T", store)
		}
	})
}

func TestOpen_UnknownDriver(t *testing.T) {
	withEnv("FISHFLOW_CATALOG_DRIVER", "oracle", func() {
		if _, err := Open(); err == nil {
			t.Fatal("expected error for unknown driver")
		}
	})
}
