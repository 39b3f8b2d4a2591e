package analysis

import (
	"sort"
	"time"
)

// CellDepths maps cell id (slice index) to the cell's max water-column depth
// bin. NoDepthAssignment marks a cell the scenario supplies no category for.
type CellDepths []int

// NoDepthAssignment is the sentinel for a cell without a max-depth category.
const NoDepthAssignment = -1

// ComputeCellRisk aggregates the cached occupancy down to one risk value per
// cell for map coloring: the minimum, across every qualifying timestamp in
// every loaded month, of the cell's probability summed over its selected
// depth bins. A timestamp qualifies when it passes the date range and the
// time-of-day filter.
//
// The result map contains only computable cells. A cell missing a depth
// assignment, with an empty depth selection for its category, or with no
// qualifying timestamp is absent from the map, which is distinct from a
// legitimate risk of zero.
func ComputeCellRisk(cache *ChunkCache, depths CellDepths, filter FilterState) map[int]float64 {
	chunks := cache.Chunks()
	risks := make(map[int]float64)
	for cell, maxDepth := range depths {
		if maxDepth == NoDepthAssignment {
			continue
		}
		selected := filter.DepthsFor(maxDepth)
		if len(selected) == 0 {
			continue
		}
		sums := sumByTimestamp(chunks, selected, cell, filter, true)
		min, ok := minValue(sums)
		if !ok {
			continue
		}
		risks[cell] = min
	}
	return risks
}

// SeriesPoint is one element of a cell's filtered time series. The
// WithinTimeOfDay tag is display-only: the time-of-day filter never removes
// points from the series.
type SeriesPoint struct {
	Timestamp       time.Time `json:"timestamp"`
	Value           float64   `json:"value"`
	WithinTimeOfDay bool      `json:"within_time_of_day"`
}

// TimeSeries is the chronological filtered series for one selected cell,
// with the series minimum and the tolerance band used as a threshold
// overlay.
type TimeSeries struct {
	Points             []SeriesPoint `json:"points"`
	Minimum            float64       `json:"minimum"`
	ToleranceThreshold float64       `json:"tolerance_threshold"`
}

// ComputeCellTimeSeries builds the full filtered series for one cell. The
// date range filter applies; the time-of-day filter only tags each point.
// Repeated timestamps across months and depth bins merge by addition. The
// second return is false when the cell has no computable series (no depth
// assignment, empty selection, or no timestamps in range).
func ComputeCellTimeSeries(cache *ChunkCache, depths CellDepths, filter FilterState, cell int, tolerance float64) (TimeSeries, bool) {
	if cell < 0 || cell >= len(depths) || depths[cell] == NoDepthAssignment {
		return TimeSeries{}, false
	}
	selected := filter.DepthsFor(depths[cell])
	if len(selected) == 0 {
		return TimeSeries{}, false
	}

	sums := sumByTimestamp(cache.Chunks(), selected, cell, filter, false)
	if len(sums) == 0 {
		return TimeSeries{}, false
	}

	points := make([]SeriesPoint, 0, len(sums))
	for _, entry := range sums {
		points = append(points, SeriesPoint{
			Timestamp:       entry.ts,
			Value:           entry.value,
			WithinTimeOfDay: filter.WithinTimeOfDay(entry.ts),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })

	min := points[0].Value
	for _, p := range points[1:] {
		if p.Value < min {
			min = p.Value
		}
	}
	return TimeSeries{
		Points:             points,
		Minimum:            min,
		ToleranceThreshold: min + tolerance,
	}, true
}

// timestampSum pairs a per-instant probability sum with a representative
// original timestamp, so later classification sees the source wall clock
// rather than a zone-stripped reconstruction.
type timestampSum struct {
	ts    time.Time
	value float64
}

// sumByTimestamp folds the cell's probabilities over the selected depth bins
// into per-instant sums keyed by unix second, applying the date filter and
// optionally the time-of-day filter. Timestamps repeated across chunks
// accumulate, which is what aligns depth bins of the same month.
func sumByTimestamp(chunks []*Chunk, selected []int, cell int, filter FilterState, applyTimeOfDay bool) map[int64]timestampSum {
	depthSet := make(map[int]bool, len(selected))
	for _, d := range selected {
		depthSet[d] = true
	}
	sums := make(map[int64]timestampSum)
	for _, ch := range chunks {
		if !depthSet[ch.Depth] {
			continue
		}
		values, ok := ch.Cells[cell]
		if !ok {
			continue
		}
		for i, ts := range ch.Timestamps {
			if i >= len(values) {
				break
			}
			if !filter.Dates.ContainsInstant(ts) {
				continue
			}
			if applyTimeOfDay && !filter.WithinTimeOfDay(ts) {
				continue
			}
			key := ts.Unix()
			entry, seen := sums[key]
			if !seen {
				entry.ts = ts
			}
			entry.value += values[i]
			sums[key] = entry
		}
	}
	return sums
}

func minValue(sums map[int64]timestampSum) (float64, bool) {
	if len(sums) == 0 {
		return 0, false
	}
	first := true
	var min float64
	for _, entry := range sums {
		if first || entry.value < min {
			min = entry.value
			first = false
		}
	}
	return min, true
}
