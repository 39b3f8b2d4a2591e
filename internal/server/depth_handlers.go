package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/networkearth/fishflow/internal/analysis"
	"github.com/networkearth/fishflow/internal/scenario"
)

func (s *Server) depthScenarios(c *gin.Context) {
	scenarios, err := s.data.DepthScenarios(c.Request.Context())
	if err != nil {
		abortError(c, http.StatusInternalServerError, "catalog unavailable")
		return
	}
	if scenarios == nil {
		scenarios = []scenario.DepthScenario{}
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": scenarios})
}

func (s *Server) depthGeometries(c *gin.Context) {
	geoms, err := s.data.Geometries(c.Request.Context(), "depth", c.Param("id"))
	if err != nil {
		abortDataError(c, err)
		return
	}
	c.JSON(http.StatusOK, geoms)
}

func (s *Server) cellMaxDepths(c *gin.Context) {
	depths, err := s.data.CellMaxDepths(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortDataError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"max_depths": depths})
}

// occupancyChunk serves one month/depth occupancy chunk directly, bypassing
// the session cache. Useful for debugging scenario data.
func (s *Server) occupancyChunk(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	meta, err := s.data.DepthScenario(ctx, id)
	if err != nil {
		abortDataError(c, err)
		return
	}

	month := c.Query("month")
	if len(month) != len("2006-01") {
		abortError(c, http.StatusBadRequest, "month must be YYYY-MM")
		return
	}
	depth, err := strconv.Atoi(c.Query("depth_bin"))
	if err != nil {
		abortError(c, http.StatusBadRequest, "depth_bin must be an integer")
		return
	}
	if !meta.HasDepthBin(depth) {
		abortError(c, http.StatusBadRequest, "depth_bin is not one of the scenario's bins")
		return
	}

	chunk, err := s.data.FetchChunk(ctx, id, month, depth)
	if err != nil {
		abortDataError(c, err)
		return
	}
	c.JSON(http.StatusOK, chunk)
}

// riskRequest is the cell-risk compute body.
type riskRequest struct {
	filterRequest
}

// cellRisk resolves the occupancy chunks the filter needs and aggregates
// them to a per-cell minimum risk. Cells with no computable risk are absent
// from the response map.
func (s *Server) cellRisk(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := s.data.DepthScenario(ctx, id); err != nil {
		abortDataError(c, err)
		return
	}

	var req riskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	filter, err := req.toFilterState()
	if err != nil {
		abortError(c, http.StatusBadRequest, err.Error())
		return
	}

	depths, err := s.data.CellMaxDepths(ctx, id)
	if err != nil {
		abortDataError(c, err)
		return
	}

	session, err := s.resolveChunks(ctx, id, filter)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "chunk resolution interrupted")
		return
	}

	risks := analysis.ComputeCellRisk(session.Chunks(), depths, filter)
	c.JSON(http.StatusOK, gin.H{"scenario_id": id, "risks": risks})
}

// timeSeriesRequest adds the series cell and tolerance band to the filter.
type timeSeriesRequest struct {
	filterRequest
	Cell      int     `json:"cell"`
	Tolerance float64 `json:"tolerance"`
}

// cellTimeSeries builds the filtered occupancy series for one cell. The
// time-of-day filter tags points rather than removing them.
func (s *Server) cellTimeSeries(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := s.data.DepthScenario(ctx, id); err != nil {
		abortDataError(c, err)
		return
	}

	var req timeSeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	filter, err := req.toFilterState()
	if err != nil {
		abortError(c, http.StatusBadRequest, err.Error())
		return
	}

	depths, err := s.data.CellMaxDepths(ctx, id)
	if err != nil {
		abortDataError(c, err)
		return
	}

	session, err := s.resolveChunks(ctx, id, filter)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "chunk resolution interrupted")
		return
	}

	series, ok := analysis.ComputeCellTimeSeries(session.Chunks(), depths, filter, req.Cell, req.Tolerance)
	if !ok {
		abortError(c, http.StatusNotFound, "no computable series for this cell under the active filter")
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenario_id": id, "cell": req.Cell, "series": series})
}

// resolveChunks fetches whatever chunks the filter needs beyond the
// session's cache and merges them under the session's generation, so a
// scenario switch mid-flight discards the results instead of mixing them in.
func (s *Server) resolveChunks(ctx context.Context, scenarioID string, filter analysis.FilterState) (*analysis.Session, error) {
	session := s.activeSession(scenarioID)
	generation := session.Generation()
	fetched, err := s.resolver.Resolve(ctx, scenarioID, filter, session.Chunks(), func(completed, total int) {
		s.log.Debugw("chunk resolution progress",
			"scenario", scenarioID, "completed", completed, "total", total)
	})
	if len(fetched) > 0 {
		s.sessions.MergeChunks(scenarioID, generation, fetched)
	}
	return session, err
}
