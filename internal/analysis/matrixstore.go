// Package analysis implements the spatiotemporal risk analytics engine:
// the transition matrix store and matrix chain calculator for the movement
// model, and the chunk cache, resolver, and risk aggregator for the
// depth-occupancy model.
package analysis

import (
	"sort"
	"sync"
	"time"
)

// Matrix is a square N×N transition matrix. Entry [i][j] holds the fraction
// of occupancy moving from cell i to cell j over one day. Rows are assumed
// stochastic at the data-supply layer; nothing here enforces it.
type Matrix [][]float64

// DateKey formats a timestamp as the calendar-date key used throughout the
// movement model.
func DateKey(t time.Time) string { return t.Format("2006-01-02") }

// Day truncates a timestamp to UTC midnight so calendar arithmetic stays
// exact across DST boundaries.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MatrixStore holds date-keyed transition matrices for one scenario session.
// Insertion is additive: an existing date is never replaced, so concurrent
// merges commute. Absence of a date is a normal queryable state, never an
// error at this layer.
type MatrixStore struct {
	mu       sync.RWMutex
	matrices map[string]Matrix
}

// NewMatrixStore returns an empty store.
func NewMatrixStore() *MatrixStore {
	return &MatrixStore{matrices: make(map[string]Matrix)}
}

// Has reports whether a matrix for the given date is held.
func (s *MatrixStore) Has(date time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.matrices[DateKey(date)]
	return ok
}

// Matrix returns the matrix for the given date when present.
func (s *MatrixStore) Matrix(date time.Time) (Matrix, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matrices[DateKey(date)]
	return m, ok
}

// Insert adds a matrix for a date. Existing dates are kept untouched; the
// insert reports whether the matrix was newly added.
func (s *MatrixStore) Insert(date time.Time, m Matrix) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := DateKey(date)
	if _, exists := s.matrices[key]; exists {
		return false
	}
	s.matrices[key] = m
	return true
}

// InsertAll merges a fetched batch of matrices additively and returns how
// many dates were newly added.
func (s *MatrixStore) InsertAll(batch map[string]Matrix) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for key, m := range batch {
		if _, exists := s.matrices[key]; exists {
			continue
		}
		s.matrices[key] = m
		added++
	}
	return added
}

// Len returns the number of held dates.
func (s *MatrixStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matrices)
}

// Clear drops every matrix. Called when the scenario changes.
func (s *MatrixStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matrices = make(map[string]Matrix)
}

// Dates returns the held dates in ascending key order.
func (s *MatrixStore) Dates() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.matrices))
	for k := range s.matrices {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MissingDates computes the inclusive daily range [center−half, center+half]
// clipped to the validity range and returns the dates in it that are not yet
// held, ascending.
func (s *MatrixStore) MissingDates(center time.Time, halfWindow int, validity DateRange) []time.Time {
	start := Day(center).AddDate(0, 0, -halfWindow)
	end := Day(center).AddDate(0, 0, halfWindow)
	if vs := Day(validity.Start); start.Before(vs) {
		start = vs
	}
	if ve := Day(validity.End); end.After(ve) {
		end = ve
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var missing []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if _, ok := s.matrices[DateKey(d)]; !ok {
			missing = append(missing, d)
		}
	}
	return missing
}
