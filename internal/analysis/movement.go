package analysis

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Direction selects the movement model mode.
type Direction int

const (
	// Forward propagates the selected occupancy through future daily
	// transitions: where will the selected mass be w days from the pivot.
	Forward Direction = iota
	// Basin attributes the selected occupancy retrospectively: how much of
	// each cell's mass w days before the pivot ends up in the selection.
	Basin
)

// String returns the wire name of the direction.
func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Basin:
		return "basin"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection maps a wire name to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forward":
		return Forward, nil
	case "basin":
		return Basin, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

// MissingDataError reports required data absent from a store or cache. The
// computation that raised it performed no numeric work; no partial or
// approximate result is substituted.
type MissingDataError struct {
	Kind string   // "transition matrix" or "occupancy chunk"
	Keys []string // the specific missing keys, ascending
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("missing %s data for %s", e.Kind, strings.Join(e.Keys, ", "))
}

// MovementRequest describes one matrix chain computation.
type MovementRequest struct {
	Direction Direction
	Cells     []int     // selected cell ids (multi-select; may be empty)
	Pivot     time.Time // pivot date t
	Window    int       // whole days, >= 1
	GridSize  int       // N
}

// chainDates lists the matrix dates the request needs, in application order.
// Forward applies t, t+1, up to t+w−1 ascending; basin applies t−1, t−2,
// down to t−w so attribution walks backward one transition at a time.
func (r MovementRequest) chainDates() []time.Time {
	pivot := Day(r.Pivot)
	dates := make([]time.Time, 0, r.Window)
	switch r.Direction {
	case Basin:
		for i := 1; i <= r.Window; i++ {
			dates = append(dates, pivot.AddDate(0, 0, -i))
		}
	default:
		for i := 0; i < r.Window; i++ {
			dates = append(dates, pivot.AddDate(0, 0, i))
		}
	}
	return dates
}

// applyChain is swappable so tests can spy on multiply counts.
var applyChain = applyStep

// applyStep advances the chain by one matrix. Forward pushes the state
// through the transition as a row vector, r[j] = sum_i v[i]*m[i][j]. Basin
// pulls attribution back through it as a column vector,
// r[i] = sum_j m[i][j]*v[j], so a cell's value is the share of its mass
// that reaches the selection.
func applyStep(d Direction, v []float64, m Matrix) []float64 {
	if d == Basin {
		return matrixVectorProduct(m, v)
	}
	return vectorMatrixProduct(v, m)
}

func vectorMatrixProduct(v []float64, m Matrix) []float64 {
	out := make([]float64, len(v))
	for i, vi := range v {
		if vi == 0 {
			continue
		}
		row := m[i]
		for j, mij := range row {
			out[j] += vi * mij
		}
	}
	return out
}

func matrixVectorProduct(m Matrix, v []float64) []float64 {
	out := make([]float64, len(v))
	for i, row := range m {
		var sum float64
		for j, mij := range row {
			sum += mij * v[j]
		}
		out[i] = sum
	}
	return out
}

// ComputeMovementAnalysis runs the matrix chain calculator against the store.
// It validates the request, confirms every required date is present (any gap
// aborts with a MissingDataError before any arithmetic), then applies the
// matrices strictly in date order. The result vector holds, per cell, the
// share of selected mass arriving there (forward) or originating there
// (basin).
func ComputeMovementAnalysis(store *MatrixStore, req MovementRequest) ([]float64, error) {
	if req.Window < 1 {
		return nil, fmt.Errorf("window must be at least 1 day, got %d", req.Window)
	}
	if req.GridSize <= 0 {
		return nil, fmt.Errorf("grid size must be positive, got %d", req.GridSize)
	}
	for _, c := range req.Cells {
		if c < 0 || c >= req.GridSize {
			return nil, fmt.Errorf("cell id %d outside grid [0, %d)", c, req.GridSize)
		}
	}

	dates := req.chainDates()
	var missing []string
	chain := make([]Matrix, 0, len(dates))
	for _, d := range dates {
		m, ok := store.Matrix(d)
		if !ok {
			missing = append(missing, DateKey(d))
			continue
		}
		if len(m) != req.GridSize {
			return nil, fmt.Errorf("matrix for %s has dimension %d, want %d", DateKey(d), len(m), req.GridSize)
		}
		for i, row := range m {
			if len(row) != req.GridSize {
				return nil, fmt.Errorf("matrix for %s has %d columns in row %d, want %d", DateKey(d), len(row), i, req.GridSize)
			}
		}
		chain = append(chain, m)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingDataError{Kind: "transition matrix", Keys: missing}
	}

	result := make([]float64, req.GridSize)
	if len(req.Cells) == 0 {
		// Empty selection is valid: the zero vector propagates to itself.
		return result, nil
	}
	for _, c := range req.Cells {
		result[c] = 1
	}
	for _, m := range chain {
		result = applyChain(req.Direction, result, m)
	}
	return result, nil
}
