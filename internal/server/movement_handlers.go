package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/networkearth/fishflow/internal/analysis"
	"github.com/networkearth/fishflow/internal/dataset"
	"github.com/networkearth/fishflow/internal/scenario"
)

func (s *Server) movementScenarios(c *gin.Context) {
	scenarios, err := s.data.MovementScenarios(c.Request.Context())
	if err != nil {
		abortError(c, http.StatusInternalServerError, "catalog unavailable")
		return
	}
	if scenarios == nil {
		scenarios = []scenario.MovementScenario{}
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": scenarios})
}

func (s *Server) movementGeometries(c *gin.Context) {
	geoms, err := s.data.Geometries(c.Request.Context(), "movement", c.Param("id"))
	if err != nil {
		abortDataError(c, err)
		return
	}
	c.JSON(http.StatusOK, geoms)
}

func (s *Server) habitatQuality(c *gin.Context) {
	habitat, err := s.data.HabitatQuality(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortDataError(c, err)
		return
	}
	c.JSON(http.StatusOK, habitat)
}

// matrixEntry is one date's matrix in a matrices response.
type matrixEntry struct {
	Date   string          `json:"date"`
	Matrix analysis.Matrix `json:"matrix"`
}

// movementMatrices serves transition matrices for an inclusive date range,
// with the validation rules the catalog service has always enforced:
// ordered range, within the scenario's available window, bounded length.
func (s *Server) movementMatrices(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	meta, err := s.data.MovementScenario(ctx, id)
	if err != nil {
		abortDataError(c, err)
		return
	}

	start, err := time.Parse("2006-01-02", c.Query("start_date"))
	if err != nil {
		abortError(c, http.StatusBadRequest, "start_date must be an ISO date")
		return
	}
	end, err := time.Parse("2006-01-02", c.Query("end_date"))
	if err != nil {
		abortError(c, http.StatusBadRequest, "end_date must be an ISO date")
		return
	}
	if start.After(end) {
		abortError(c, http.StatusBadRequest, "start_date must be before or equal to end_date")
		return
	}

	earliest, latest := meta.AvailableRange()
	if start.Before(earliest) {
		abortError(c, http.StatusBadRequest, "start_date "+analysis.DateKey(start)+" is before earliest available date "+analysis.DateKey(earliest))
		return
	}
	if end.After(latest) {
		abortError(c, http.StatusBadRequest, "end_date "+analysis.DateKey(end)+" is after latest available date "+analysis.DateKey(latest))
		return
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > maxMatrixRangeDays {
		abortError(c, http.StatusBadRequest, "date range too large")
		return
	}

	fetched, err := s.data.FetchMatrices(ctx, id, start, end)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "matrix fetch failed")
		return
	}
	if len(fetched) == 0 {
		abortError(c, http.StatusNotFound, "movement matrices unavailable for this date range")
		return
	}

	entries := make([]matrixEntry, 0, len(fetched))
	for d := analysis.Day(start); !d.After(analysis.Day(end)); d = d.AddDate(0, 0, 1) {
		key := analysis.DateKey(d)
		if m, ok := fetched[key]; ok {
			entries = append(entries, matrixEntry{Date: key, Matrix: m})
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"scenario_id": id,
		"start_date":  analysis.DateKey(start),
		"end_date":    analysis.DateKey(end),
		"matrices":    entries,
	})
}

// movementAnalysisRequest is the compute request body.
type movementAnalysisRequest struct {
	Direction string `json:"direction" binding:"required"`
	Cells     []int  `json:"cells"`
	PivotDate string `json:"pivot_date" binding:"required"`
	Window    int    `json:"window" binding:"required"`
}

// movementAnalysis runs the matrix chain calculator for a scenario,
// fetching whatever matrices the session does not yet hold.
func (s *Server) movementAnalysis(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	meta, err := s.data.MovementScenario(ctx, id)
	if err != nil {
		abortDataError(c, err)
		return
	}

	var req movementAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	direction, err := analysis.ParseDirection(req.Direction)
	if err != nil {
		abortError(c, http.StatusBadRequest, err.Error())
		return
	}
	pivot, err := time.Parse("2006-01-02", req.PivotDate)
	if err != nil {
		abortError(c, http.StatusBadRequest, "pivot_date must be an ISO date")
		return
	}
	if req.Window < 1 || req.Window > meta.MaximumWindowSize {
		abortError(c, http.StatusBadRequest, "window outside the scenario's allowed range")
		return
	}

	session := s.activeSession(id)
	generation := session.Generation()
	request := analysis.MovementRequest{
		Direction: direction,
		Cells:     req.Cells,
		Pivot:     pivot,
		Window:    req.Window,
		GridSize:  meta.GridSize,
	}

	// Separate fetch phase: the full window is retrieved before any of it
	// is applied.
	windowStart, windowEnd := chainSpan(direction, pivot, req.Window)
	if !sessionHasSpan(session.Matrices(), windowStart, windowEnd) {
		fetched, err := s.data.FetchMatrices(ctx, id, windowStart, windowEnd)
		if err != nil {
			abortError(c, http.StatusInternalServerError, "matrix fetch failed")
			return
		}
		s.sessions.MergeMatrices(id, generation, fetched)
	}

	result, err := analysis.ComputeMovementAnalysis(session.Matrices(), request)
	if err != nil {
		var missing *analysis.MissingDataError
		if errors.As(err, &missing) {
			abortMissingData(c, missing)
			return
		}
		abortError(c, http.StatusBadRequest, err.Error())
		return
	}

	values := make(map[int]float64, len(result))
	for cell, v := range result {
		values[cell] = v
	}
	c.JSON(http.StatusOK, gin.H{
		"scenario_id": id,
		"direction":   direction.String(),
		"results":     values,
	})
}

// chainSpan returns the inclusive date span the chain needs.
func chainSpan(direction analysis.Direction, pivot time.Time, window int) (start, end time.Time) {
	day := analysis.Day(pivot)
	if direction == analysis.Basin {
		return day.AddDate(0, 0, -window), day.AddDate(0, 0, -1)
	}
	return day, day.AddDate(0, 0, window-1)
}

// activeSession makes the scenario current, invalidating pending fetches
// for whatever scenario was active before. Requests for the scenario that
// is already current keep its caches and generation.
func (s *Server) activeSession(scenarioID string) *analysis.Session {
	if cur := s.sessions.Current(); cur != nil && cur.ScenarioID() == scenarioID {
		return cur
	}
	return s.sessions.Switch(scenarioID)
}

func sessionHasSpan(store *analysis.MatrixStore, start, end time.Time) bool {
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !store.Has(d) {
			return false
		}
	}
	return true
}

// abortDataError maps store failures onto 404 when the object is simply
// absent and 500 otherwise.
func abortDataError(c *gin.Context, err error) {
	var nf dataset.ErrNotFound
	if errors.As(err, &nf) {
		abortError(c, http.StatusNotFound, nf.Error())
		return
	}
	abortError(c, http.StatusInternalServerError, "data store unavailable")
}
