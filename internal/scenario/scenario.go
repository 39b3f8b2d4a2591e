// Package scenario defines the scenario metadata, grid geometry, and
// habitat types shared by the catalog, data service, and HTTP layers.
package scenario

import (
	"fmt"
	"time"
)

// Date is a civil calendar date serialized as YYYY-MM-DD, the format every
// scenario metadata file uses.
type Date struct {
	time.Time
}

// NewDate builds a Date at UTC midnight.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t.UTC()}, nil
}

// MarshalJSON renders the date as a quoted YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}

// UnmarshalJSON accepts a quoted YYYY-MM-DD string.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date literal %s", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MovementScenario describes one movement-model scenario: a catalog entry
// plus the parameters the matrix chain calculator needs.
type MovementScenario struct {
	ScenarioID        string    `json:"scenario_id"`
	Name              string    `json:"name"`
	Species           string    `json:"species"`
	Region            string    `json:"region"`
	Description       string    `json:"description"`
	Dates             []Date    `json:"dates"`
	MaximumWindowSize int       `json:"maximum_window_size"`
	GridSize          int       `json:"grid_size"`
	RValues           []float64 `json:"r_values"`
	MapCenter         []float64 `json:"map_center"` // [lat, lng]
	MapZoom           int       `json:"map_zoom"`
}

// Validate rejects metadata a scenario cannot be served without.
func (s MovementScenario) Validate() error {
	if s.ScenarioID == "" {
		return fmt.Errorf("scenario_id required")
	}
	if s.GridSize <= 0 {
		return fmt.Errorf("scenario %s: grid_size must be positive", s.ScenarioID)
	}
	if s.MaximumWindowSize < 1 {
		return fmt.Errorf("scenario %s: maximum_window_size must be at least 1", s.ScenarioID)
	}
	if len(s.Dates) == 0 {
		return fmt.Errorf("scenario %s: at least one habitat date required", s.ScenarioID)
	}
	return nil
}

// AvailableRange computes the matrix date range the scenario can serve: the
// union of every habitat date ± the maximum window size.
func (s MovementScenario) AvailableRange() (earliest, latest time.Time) {
	for i, d := range s.Dates {
		windowStart := d.AddDate(0, 0, -s.MaximumWindowSize)
		windowEnd := d.AddDate(0, 0, s.MaximumWindowSize)
		if i == 0 || windowStart.Before(earliest) {
			earliest = windowStart
		}
		if i == 0 || windowEnd.After(latest) {
			latest = windowEnd
		}
	}
	return earliest, latest
}

// DepthScenario describes one depth-occupancy scenario.
type DepthScenario struct {
	ScenarioID  string    `json:"scenario_id"`
	Name        string    `json:"name"`
	Species     string    `json:"species"`
	Region      string    `json:"region"`
	Description string    `json:"description"`
	TimeWindow  []Date    `json:"time_window"` // [start, end]
	GridSize    int       `json:"grid_size"`
	DepthBins   []int     `json:"depth_bins"`
	Resolution  string    `json:"resolution"`
	MapCenter   []float64 `json:"map_center"` // [lat, lng]
	MapZoom     int       `json:"map_zoom"`
}

// Validate rejects metadata a scenario cannot be served without.
func (s DepthScenario) Validate() error {
	if s.ScenarioID == "" {
		return fmt.Errorf("scenario_id required")
	}
	if s.GridSize <= 0 {
		return fmt.Errorf("scenario %s: grid_size must be positive", s.ScenarioID)
	}
	if len(s.TimeWindow) != 2 {
		return fmt.Errorf("scenario %s: time_window must be [start, end]", s.ScenarioID)
	}
	if s.TimeWindow[0].After(s.TimeWindow[1].Time) {
		return fmt.Errorf("scenario %s: time_window start after end", s.ScenarioID)
	}
	if len(s.DepthBins) == 0 {
		return fmt.Errorf("scenario %s: at least one depth bin required", s.ScenarioID)
	}
	return nil
}

// HasDepthBin reports whether the bin belongs to the scenario's depth set.
func (s DepthScenario) HasDepthBin(bin int) bool {
	for _, b := range s.DepthBins {
		if b == bin {
			return true
		}
	}
	return false
}

// HabitatDataItem is one habitat-quality sample: a date, the growth rate r
// it was computed under, and a per-cell probability vector.
type HabitatDataItem struct {
	Date        Date      `json:"date"`
	R           float64   `json:"r"`
	Probability []float64 `json:"probability"`
}

// HabitatQuality is the full habitat data set for a movement scenario.
type HabitatQuality struct {
	ScenarioID  string            `json:"scenario_id"`
	HabitatData []HabitatDataItem `json:"habitat_data"`
}
