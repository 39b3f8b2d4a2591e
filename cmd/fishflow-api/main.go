// Package main starts the FishFlow analytics API.
//
// The process discovers scenarios from the configured blob store, records
// them in the catalog, and serves the movement and depth analysis endpoints
// until interrupted.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/networkearth/fishflow/internal/blob"
	"github.com/networkearth/fishflow/internal/catalog"
	"github.com/networkearth/fishflow/internal/config"
	"github.com/networkearth/fishflow/internal/dataset"
	"github.com/networkearth/fishflow/internal/observability"
	"github.com/networkearth/fishflow/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := blob.Open(ctx)
	if err != nil {
		sugar.Fatalw("open blob store", "error", err)
	}
	cat, err := catalog.Open()
	if err != nil {
		sugar.Fatalw("open catalog", "error", err)
	}

	recorder, prom := buildRecorder(cfg)
	data := dataset.New(store, cat, sugar, dataset.WithMetrics(recorder))
	if _, err := data.Discover(ctx); err != nil {
		sugar.Fatalw("scenario discovery", "error", err)
	}

	srv := server.New(data, sugar, server.Options{
		CORSOrigins:      cfg.CORSOrigins,
		FetchConcurrency: cfg.FetchConcurrency,
		Production:       cfg.Production(),
		Recorder:         recorder,
		Metrics:          prom,
	})

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		sugar.Infow("listening", "addr", cfg.Addr, "blob_driver", store.Driver())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		sugar.Infow("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			sugar.Errorw("shutdown", "error", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("serve", "error", err)
		}
	}
}

// buildRecorder selects the metrics backend. The Prometheus recorder is also
// returned separately so the server can mount its scrape handler.
func buildRecorder(cfg config.Config) (observability.MetricsRecorder, *observability.PrometheusMetricsRecorder) {
	switch cfg.MetricsDriver {
	case "expvar":
		return observability.NewExpvarMetricsRecorder("fishflow_metrics"), nil
	case "none":
		return observability.NopMetrics{}, nil
	default:
		prom := observability.NewPrometheusMetricsRecorder()
		return prom, prom
	}
}

func buildLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.Production() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
