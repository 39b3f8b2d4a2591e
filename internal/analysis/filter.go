package analysis

import (
	"fmt"
	"sort"
	"time"
)

// MonthKey formats a timestamp as the YYYY-MM chunk month key.
func MonthKey(t time.Time) string { return t.Format("2006-01") }

// DateRange is an inclusive civil date range. Start and End carry only their
// calendar date; helpers truncate to UTC midnight.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Validate rejects an inverted range.
func (r DateRange) Validate() error {
	if Day(r.Start).After(Day(r.End)) {
		return fmt.Errorf("date range start %s after end %s", DateKey(r.Start), DateKey(r.End))
	}
	return nil
}

// ContainsInstant reports whether the instant falls on a day within the
// inclusive range.
func (r DateRange) ContainsInstant(ts time.Time) bool {
	return !ts.Before(Day(r.Start)) && ts.Before(Day(r.End).AddDate(0, 0, 1))
}

// TimeOfDayInterval is a half-open [Start, End) wall-clock window expressed
// in minutes since midnight.
type TimeOfDayInterval struct {
	Start int
	End   int
}

// Validate bounds the interval to a single day.
func (iv TimeOfDayInterval) Validate() error {
	if iv.Start < 0 || iv.End > 24*60 || iv.Start >= iv.End {
		return fmt.Errorf("time-of-day interval [%d, %d) invalid", iv.Start, iv.End)
	}
	return nil
}

// contains tests minutes-since-midnight membership.
func (iv TimeOfDayInterval) contains(minute int) bool {
	return minute >= iv.Start && minute < iv.End
}

// DepthSelection maps a cell's max-depth bin to the set of depth bins whose
// occupancy should be included for cells of that category.
type DepthSelection map[int]map[int]bool

// FilterState is the active multi-dimensional filter for the depth model.
// It is constructed and validated at the boundary and treated as immutable
// by the engine; applying new filters means building a new FilterState.
type FilterState struct {
	Depths     DepthSelection
	Dates      DateRange
	TimesOfDay []TimeOfDayInterval // empty means all times qualify
}

// Validate checks the filter at the construction boundary.
func (f FilterState) Validate() error {
	if err := f.Dates.Validate(); err != nil {
		return err
	}
	for _, iv := range f.TimesOfDay {
		if err := iv.Validate(); err != nil {
			return err
		}
	}
	for maxDepth, bins := range f.Depths {
		if maxDepth < 0 {
			return fmt.Errorf("negative max-depth bin %d", maxDepth)
		}
		for bin := range bins {
			if bin < 0 {
				return fmt.Errorf("negative depth bin %d selected for max depth %d", bin, maxDepth)
			}
		}
	}
	return nil
}

// RequiredMonths lists every calendar month intersecting the date range,
// inclusive of partial months, in chronological order.
func (f FilterState) RequiredMonths() []string {
	start := Day(f.Dates.Start)
	end := Day(f.Dates.End)
	if start.After(end) {
		return nil
	}
	var months []string
	cursor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(end) {
		months = append(months, MonthKey(cursor))
		cursor = cursor.AddDate(0, 1, 0)
	}
	return months
}

// RequiredDepths returns the union of selected depth bins across all
// max-depth categories, ascending.
func (f FilterState) RequiredDepths() []int {
	set := make(map[int]bool)
	for _, bins := range f.Depths {
		for bin, on := range bins {
			if on {
				set[bin] = true
			}
		}
	}
	out := make([]int, 0, len(set))
	for bin := range set {
		out = append(out, bin)
	}
	sort.Ints(out)
	return out
}

// DepthsFor returns the selected depth bins for a cell's max-depth category,
// ascending. A missing category or empty selection yields nil.
func (f FilterState) DepthsFor(maxDepth int) []int {
	bins, ok := f.Depths[maxDepth]
	if !ok {
		return nil
	}
	out := make([]int, 0, len(bins))
	for bin, on := range bins {
		if on {
			out = append(out, bin)
		}
	}
	if len(out) == 0 {
		return nil
	}
	sort.Ints(out)
	return out
}

// WithinTimeOfDay reports whether the timestamp's local wall-clock
// time-of-day falls in at least one configured interval. An empty interval
// set means all times qualify. Classification is independent of the date
// range filter.
func (f FilterState) WithinTimeOfDay(ts time.Time) bool {
	if len(f.TimesOfDay) == 0 {
		return true
	}
	minute := ts.Hour()*60 + ts.Minute()
	for _, iv := range f.TimesOfDay {
		if iv.contains(minute) {
			return true
		}
	}
	return false
}
