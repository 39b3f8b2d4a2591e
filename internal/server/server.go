// Package server exposes the scenario data service and the analytics engine
// over HTTP. The route surface mirrors the original catalog/data endpoints
// and adds the engine's compute operations.
package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/networkearth/fishflow/internal/analysis"
	"github.com/networkearth/fishflow/internal/dataset"
	"github.com/networkearth/fishflow/internal/observability"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// maxMatrixRangeDays caps one matrices request to keep responses bounded.
const maxMatrixRangeDays = 60

// Server wires the data service, per-scenario analysis sessions, and the
// chunk resolver into a gin router.
type Server struct {
	data     *dataset.Service
	sessions *analysis.SessionManager
	resolver *analysis.Resolver
	log      *zap.SugaredLogger
	router   *gin.Engine
}

// Options configures the HTTP surface.
type Options struct {
	CORSOrigins      []string
	FetchConcurrency int
	Production       bool
	Recorder         observability.MetricsRecorder            // receives operation outcomes
	Metrics          *observability.PrometheusMetricsRecorder // optional /metrics endpoint
}

// New builds the server and its routes.
func New(data *dataset.Service, log *zap.SugaredLogger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	resolverOpts := []analysis.ResolverOption{}
	if opts.FetchConcurrency > 0 {
		resolverOpts = append(resolverOpts, analysis.WithConcurrency(opts.FetchConcurrency))
	}
	if opts.Recorder != nil {
		resolverOpts = append(resolverOpts, analysis.WithMetrics(opts.Recorder))
	} else if opts.Metrics != nil {
		resolverOpts = append(resolverOpts, analysis.WithMetrics(opts.Metrics))
	}

	s := &Server{
		data:     data,
		sessions: analysis.NewSessionManager(),
		resolver: analysis.NewResolver(data, log, resolverOpts...),
		log:      log,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     opts.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
	}))

	router.GET("/", s.health)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	v1 := router.Group("/v1")
	{
		movement := v1.Group("/movement")
		movement.GET("/scenarios", s.movementScenarios)
		movement.GET("/scenario/:id/geometries", s.movementGeometries)
		movement.GET("/scenario/:id/habitat", s.habitatQuality)
		movement.GET("/scenario/:id/matrices", s.movementMatrices)
		movement.POST("/scenario/:id/analysis", s.movementAnalysis)

		depth := v1.Group("/depth")
		depth.GET("/scenarios", s.depthScenarios)
		depth.GET("/scenario/:id/geometries", s.depthGeometries)
		depth.GET("/scenario/:id/max_depths", s.cellMaxDepths)
		depth.GET("/scenario/:id/occupancy", s.occupancyChunk)
		depth.POST("/scenario/:id/risk", s.cellRisk)
		depth.POST("/scenario/:id/timeseries", s.cellTimeSeries)
	}

	s.router = router
	return s
}

// Router returns the configured gin engine, for http.Server wiring and
// httptest.
func (s *Server) Router() *gin.Engine { return s.router }

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "FishFlow API is running", "version": Version})
}

// requestLogger emits one structured line per request.
func requestLogger(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Infow("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}

// abortError renders the uniform error payload.
func abortError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

// abortMissingData renders a MissingDataError with its specific keys.
func abortMissingData(c *gin.Context, err *analysis.MissingDataError) {
	c.AbortWithStatusJSON(http.StatusConflict, gin.H{
		"detail":       err.Error(),
		"missing_kind": err.Kind,
		"missing_keys": err.Keys,
	})
}
