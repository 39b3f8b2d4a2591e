package server

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/networkearth/fishflow/internal/analysis"
)

// timeOfDayRequest is one wall-clock window in a filter request, both ends
// given as "HH:MM". The end is exclusive; "24:00" closes out the day.
type timeOfDayRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// filterRequest is the wire form of a depth-model filter. Depth selection
// keys are max-depth bins as strings, JSON objects having no integer keys.
type filterRequest struct {
	DepthSelection map[string][]int   `json:"depth_selection"`
	StartDate      string             `json:"start_date" binding:"required"`
	EndDate        string             `json:"end_date" binding:"required"`
	TimesOfDay     []timeOfDayRequest `json:"times_of_day"`
}

// toFilterState validates the request and builds the immutable filter the
// engine works against.
func (r filterRequest) toFilterState() (analysis.FilterState, error) {
	var state analysis.FilterState

	start, err := time.Parse("2006-01-02", r.StartDate)
	if err != nil {
		return state, fmt.Errorf("start_date must be an ISO date: %w", err)
	}
	end, err := time.Parse("2006-01-02", r.EndDate)
	if err != nil {
		return state, fmt.Errorf("end_date must be an ISO date: %w", err)
	}
	state.Dates = analysis.DateRange{Start: start, End: end}

	state.Depths = make(analysis.DepthSelection, len(r.DepthSelection))
	for key, bins := range r.DepthSelection {
		maxDepth, err := strconv.Atoi(key)
		if err != nil {
			return state, fmt.Errorf("depth_selection key %q is not an integer", key)
		}
		selected := make(map[int]bool, len(bins))
		for _, bin := range bins {
			selected[bin] = true
		}
		state.Depths[maxDepth] = selected
	}

	for _, window := range r.TimesOfDay {
		iv, err := parseTimeOfDay(window)
		if err != nil {
			return state, err
		}
		state.TimesOfDay = append(state.TimesOfDay, iv)
	}

	if err := state.Validate(); err != nil {
		return state, err
	}
	return state, nil
}

func parseTimeOfDay(window timeOfDayRequest) (analysis.TimeOfDayInterval, error) {
	start, err := parseClock(window.Start)
	if err != nil {
		return analysis.TimeOfDayInterval{}, fmt.Errorf("times_of_day start: %w", err)
	}
	end, err := parseClock(window.End)
	if err != nil {
		return analysis.TimeOfDayInterval{}, fmt.Errorf("times_of_day end: %w", err)
	}
	return analysis.TimeOfDayInterval{Start: start, End: end}, nil
}

// parseClock converts "HH:MM" to minutes since midnight. "24:00" is allowed
// so an interval can reach the end of the day.
func parseClock(clock string) (int, error) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("%q is not an HH:MM time", clock)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%q is not an HH:MM time", clock)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%q is not an HH:MM time", clock)
	}
	if hours < 0 || minutes < 0 || minutes > 59 || hours > 24 || (hours == 24 && minutes != 0) {
		return 0, fmt.Errorf("%q is out of range", clock)
	}
	return hours*60 + minutes, nil
}
