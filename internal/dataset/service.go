// Package dataset implements the scenario data service: it discovers
// published scenarios in the blob store, maintains the catalog, and serves
// geometries, habitat quality, transition matrices, occupancy chunks, and
// cell max-depths to the engine and the HTTP layer.
//
// Published layout, one prefix per model family:
//
//	movement/<scenario_id>/metadata.json
//	movement/<scenario_id>/geometries.geojson
//	movement/<scenario_id>/habitat.json
//	movement/<scenario_id>/matrices/<YYYY-MM-DD>.json
//	depth/<scenario_id>/metadata.json
//	depth/<scenario_id>/geometries.geojson
//	depth/<scenario_id>/max_depths.json
//	depth/<scenario_id>/occupancy/<YYYY-MM>/<depth_bin>.json
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/networkearth/fishflow/internal/analysis"
	"github.com/networkearth/fishflow/internal/blob"
	"github.com/networkearth/fishflow/internal/catalog"
	"github.com/networkearth/fishflow/internal/observability"
	"github.com/networkearth/fishflow/internal/scenario"
)

const (
	movementPrefix = "movement/"
	depthPrefix    = "depth/"
)

// ErrNotFound marks a scenario or data object absent from the store.
type ErrNotFound struct {
	Kind string
	ID   string
}

func (e ErrNotFound) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }

// Service is the scenario data service.
type Service struct {
	store   blob.Store
	catalog catalog.Store
	log     *zap.SugaredLogger
	metrics observability.MetricsRecorder
}

// Option customizes a Service.
type Option func(*Service)

// WithMetrics records data fetch outcomes on the supplied recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New constructs the data service over a blob store and catalog store. A
// nil logger is replaced with a nop logger.
func New(store blob.Store, cat catalog.Store, log *zap.SugaredLogger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Service{store: store, catalog: cat, log: log, metrics: observability.NopMetrics{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Discover lists both family prefixes, loads and validates each scenario's
// metadata, and replaces the catalog snapshot. Scenarios with unreadable or
// invalid metadata are skipped with a warning, matching the tolerance of
// the publishing pipeline.
func (s *Service) Discover(ctx context.Context) (catalog.Snapshot, error) {
	var snapshot catalog.Snapshot

	for _, id := range s.scenarioIDs(ctx, movementPrefix) {
		var meta scenario.MovementScenario
		if err := s.readJSON(ctx, movementPrefix+id+"/metadata.json", &meta); err != nil {
			s.log.Warnw("skipping movement scenario", "scenario", id, "error", err)
			continue
		}
		if err := meta.Validate(); err != nil {
			s.log.Warnw("invalid movement scenario metadata", "scenario", id, "error", err)
			continue
		}
		snapshot.Movement = append(snapshot.Movement, meta)
		s.log.Infow("loaded scenario", "family", "movement", "scenario", meta.ScenarioID)
	}

	for _, id := range s.scenarioIDs(ctx, depthPrefix) {
		var meta scenario.DepthScenario
		if err := s.readJSON(ctx, depthPrefix+id+"/metadata.json", &meta); err != nil {
			s.log.Warnw("skipping depth scenario", "scenario", id, "error", err)
			continue
		}
		if err := meta.Validate(); err != nil {
			s.log.Warnw("invalid depth scenario metadata", "scenario", id, "error", err)
			continue
		}
		snapshot.Depth = append(snapshot.Depth, meta)
		s.log.Infow("loaded scenario", "family", "depth", "scenario", meta.ScenarioID)
	}

	if err := s.catalog.Replace(ctx, snapshot); err != nil {
		return catalog.Snapshot{}, fmt.Errorf("persist catalog: %w", err)
	}
	return snapshot, nil
}

// scenarioIDs extracts unique scenario directories under a family prefix.
func (s *Service) scenarioIDs(ctx context.Context, prefix string) []string {
	infos, err := s.store.List(ctx, prefix)
	if err != nil {
		s.log.Warnw("listing scenarios failed", "prefix", prefix, "error", err)
		return nil
	}
	seen := make(map[string]bool)
	var ids []string
	for _, info := range infos {
		rest := strings.TrimPrefix(info.Key, prefix)
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 || parts[0] == "" {
			continue
		}
		if !seen[parts[0]] {
			seen[parts[0]] = true
			ids = append(ids, parts[0])
		}
	}
	return ids
}

// MovementScenarios returns the cataloged movement scenarios.
func (s *Service) MovementScenarios(ctx context.Context) ([]scenario.MovementScenario, error) {
	snap, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Movement, nil
}

// DepthScenarios returns the cataloged depth scenarios.
func (s *Service) DepthScenarios(ctx context.Context) ([]scenario.DepthScenario, error) {
	snap, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Depth, nil
}

// MovementScenario looks up one movement scenario by id.
func (s *Service) MovementScenario(ctx context.Context, id string) (scenario.MovementScenario, error) {
	snap, err := s.catalog.Load(ctx)
	if err != nil {
		return scenario.MovementScenario{}, err
	}
	for _, sc := range snap.Movement {
		if sc.ScenarioID == id {
			return sc, nil
		}
	}
	return scenario.MovementScenario{}, ErrNotFound{Kind: "movement scenario", ID: id}
}

// DepthScenario looks up one depth scenario by id.
func (s *Service) DepthScenario(ctx context.Context, id string) (scenario.DepthScenario, error) {
	snap, err := s.catalog.Load(ctx)
	if err != nil {
		return scenario.DepthScenario{}, err
	}
	for _, sc := range snap.Depth {
		if sc.ScenarioID == id {
			return sc, nil
		}
	}
	return scenario.DepthScenario{}, ErrNotFound{Kind: "depth scenario", ID: id}
}

// Geometries loads and validates the grid geometry set for a scenario under
// the given family prefix ("movement" or "depth").
func (s *Service) Geometries(ctx context.Context, family, id string) (scenario.GridGeometries, error) {
	raw, err := s.readAll(ctx, family+"/"+id+"/geometries.geojson")
	if err != nil {
		return scenario.GridGeometries{}, ErrNotFound{Kind: "geometries for scenario", ID: id}
	}
	return scenario.ParseGridGeometries(id, raw, s.log)
}

// HabitatQuality loads the habitat data set for a movement scenario.
func (s *Service) HabitatQuality(ctx context.Context, id string) (scenario.HabitatQuality, error) {
	var items []scenario.HabitatDataItem
	if err := s.readJSON(ctx, movementPrefix+id+"/habitat.json", &items); err != nil {
		return scenario.HabitatQuality{}, ErrNotFound{Kind: "habitat data for scenario", ID: id}
	}
	return scenario.HabitatQuality{ScenarioID: id, HabitatData: items}, nil
}

// FetchMatrix retrieves the transition matrix for one date. Absence is
// returned as ErrNotFound; the matrix chain calculator decides whether a
// gap is fatal.
func (s *Service) FetchMatrix(ctx context.Context, id string, date time.Time) (analysis.Matrix, error) {
	began := time.Now()
	var m analysis.Matrix
	err := s.readJSON(ctx, movementPrefix+id+"/matrices/"+analysis.DateKey(date)+".json", &m)
	s.metrics.Observe(ctx, "matrix_fetch", err == nil, time.Since(began))
	if err != nil {
		return nil, ErrNotFound{Kind: "transition matrix", ID: analysis.DateKey(date)}
	}
	return m, nil
}

// FetchMatrices retrieves matrices for an inclusive date range. Partial
// success is tolerated: dates that fail to load are simply absent from the
// result and logged.
func (s *Service) FetchMatrices(ctx context.Context, id string, start, end time.Time) (map[string]analysis.Matrix, error) {
	if analysis.Day(start).After(analysis.Day(end)) {
		return nil, fmt.Errorf("start date %s after end date %s", analysis.DateKey(start), analysis.DateKey(end))
	}
	out := make(map[string]analysis.Matrix)
	for d := analysis.Day(start); !d.After(analysis.Day(end)); d = d.AddDate(0, 0, 1) {
		m, err := s.FetchMatrix(ctx, id, d)
		if err != nil {
			s.log.Warnw("no matrix for date", "scenario", id, "date", analysis.DateKey(d))
			continue
		}
		out[analysis.DateKey(d)] = m
	}
	return out, nil
}

// chunkFile is the published occupancy chunk layout: timestamps plus
// per-cell probability sequences positionally aligned with them.
type chunkFile struct {
	Timestamps []time.Time          `json:"timestamps"`
	Cells      map[string][]float64 `json:"cells"`
}

// FetchChunk retrieves one (month, depth-bin) occupancy chunk. Implements
// analysis.ChunkFetcher.
func (s *Service) FetchChunk(ctx context.Context, id, month string, depth int) (*analysis.Chunk, error) {
	key := fmt.Sprintf("%s%s/occupancy/%s/%d.json", depthPrefix, id, month, depth)
	var cf chunkFile
	if err := s.readJSON(ctx, key, &cf); err != nil {
		return nil, ErrNotFound{Kind: "occupancy chunk", ID: fmt.Sprintf("%s/%d", month, depth)}
	}
	cells := make(map[int][]float64, len(cf.Cells))
	for rawID, values := range cf.Cells {
		var cellID int
		if _, err := fmt.Sscanf(rawID, "%d", &cellID); err != nil {
			s.log.Warnw("occupancy chunk has non-integer cell id", "scenario", id, "key", key, "cell", rawID)
			continue
		}
		if len(values) != len(cf.Timestamps) {
			return nil, fmt.Errorf("chunk %s: cell %d has %d values for %d timestamps", key, cellID, len(values), len(cf.Timestamps))
		}
		cells[cellID] = values
	}
	return &analysis.Chunk{Month: month, Depth: depth, Timestamps: cf.Timestamps, Cells: cells}, nil
}

// CellMaxDepths loads the per-cell max-depth assignment for a depth
// scenario. Cells carry analysis.NoDepthAssignment where the published
// vector holds a negative value.
func (s *Service) CellMaxDepths(ctx context.Context, id string) (analysis.CellDepths, error) {
	var raw []int
	if err := s.readJSON(ctx, depthPrefix+id+"/max_depths.json", &raw); err != nil {
		return nil, ErrNotFound{Kind: "max depths for scenario", ID: id}
	}
	depths := make(analysis.CellDepths, len(raw))
	for i, d := range raw {
		if d < 0 {
			depths[i] = analysis.NoDepthAssignment
			continue
		}
		depths[i] = d
	}
	return depths, nil
}

func (s *Service) readAll(ctx context.Context, key string) ([]byte, error) {
	_, rc, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

func (s *Service) readJSON(ctx context.Context, key string, v any) error {
	b, err := s.readAll(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
