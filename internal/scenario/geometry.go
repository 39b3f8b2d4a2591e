package scenario

import (
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// GeoJSONPolygon is the polygon geometry of one grid cell.
type GeoJSONPolygon struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
}

// GridCell pairs a cell id with its polygon.
type GridCell struct {
	CellID   int            `json:"cell_id"`
	Geometry GeoJSONPolygon `json:"geometry"`
}

// GridGeometries is the full geometry set for a scenario, sorted by cell id.
type GridGeometries struct {
	ScenarioID string     `json:"scenario_id"`
	Geometries []GridCell `json:"geometries"`
}

// geoJSON mirrors the FeatureCollection layout the scenario data is
// published in. Features carry the cell id in their properties.
type geoJSON struct {
	Features []struct {
		Properties map[string]json.RawMessage `json:"properties"`
		Geometry   json.RawMessage            `json:"geometry"`
	} `json:"features"`
}

// ParseGridGeometries converts a GeoJSON FeatureCollection into the grid
// geometry set. Features missing an integer cell_id property or a polygon
// geometry are skipped with a warning rather than failing the whole set;
// an empty result is an error. Cells are sorted by id for stable ordering.
func ParseGridGeometries(scenarioID string, raw []byte, log *zap.SugaredLogger) (GridGeometries, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	var fc geoJSON
	if err := json.Unmarshal(raw, &fc); err != nil {
		return GridGeometries{}, fmt.Errorf("invalid geojson for %s: %w", scenarioID, err)
	}
	if fc.Features == nil {
		return GridGeometries{}, fmt.Errorf("invalid geojson for %s: missing features", scenarioID)
	}

	cells := make([]GridCell, 0, len(fc.Features))
	for _, feature := range fc.Features {
		rawID, ok := feature.Properties["cell_id"]
		if !ok {
			log.Warnw("feature missing cell_id property", "scenario", scenarioID)
			continue
		}
		var cellID int
		if err := json.Unmarshal(rawID, &cellID); err != nil {
			log.Warnw("cell_id must be an integer", "scenario", scenarioID, "raw", string(rawID))
			continue
		}
		if len(feature.Geometry) == 0 {
			log.Warnw("feature missing geometry", "scenario", scenarioID, "cell", cellID)
			continue
		}
		var polygon GeoJSONPolygon
		if err := json.Unmarshal(feature.Geometry, &polygon); err != nil {
			log.Warnw("invalid geometry", "scenario", scenarioID, "cell", cellID, "error", err)
			continue
		}
		cells = append(cells, GridCell{CellID: cellID, Geometry: polygon})
	}
	if len(cells) == 0 {
		return GridGeometries{}, fmt.Errorf("no valid grid cells in %s", scenarioID)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].CellID < cells[j].CellID })
	return GridGeometries{ScenarioID: scenarioID, Geometries: cells}, nil
}
