// Command etl builds the evacuation-delay dataset. By default it runs one
// batch and exits; with RUN_INTERVAL set it re-runs on a schedule and serves
// the admin endpoints between runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/emberline/evac-delay-etl/internal/adapter/dataset"
	httpadapter "github.com/emberline/evac-delay-etl/internal/adapter/http"
	kafkaadapter "github.com/emberline/evac-delay-etl/internal/adapter/kafka"
	"github.com/emberline/evac-delay-etl/internal/analysis"
	"github.com/emberline/evac-delay-etl/internal/config"
	"github.com/emberline/evac-delay-etl/internal/observability"
	"github.com/emberline/evac-delay-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	app := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		builder: pipeline.NewBuilder(cfg, logger, metrics),
	}

	if cfg.Kafka.Enabled {
		app.publisher = kafkaadapter.NewPublisher(cfg.Kafka, logger)
		defer app.publisher.Close()
		logger.Info("snapshot publishing enabled", "topic", cfg.Kafka.Topic)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RunInterval <= 0 {
		if err := app.runOnce(ctx); err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, app, cfg.Outputs.Report, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	app.runForever(ctx)

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

// app ties the builder, writers, and publisher into a runnable service and
// tracks run state for the readiness endpoint.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	builder *pipeline.Builder

	publisher *kafkaadapter.Publisher

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

// runForever executes a run immediately, then on every interval tick until
// the context is cancelled. A failed run is logged and counted but does not
// stop the schedule.
func (a *app) runForever(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := a.runOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("run failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runOnce performs one complete build-analyze-write cycle. Output files only
// change if the build and both writes succeed.
func (a *app) runOnce(ctx context.Context) error {
	a.metrics.PipelineRunning.Set(1)
	defer a.metrics.PipelineRunning.Set(0)
	start := time.Now()

	err := a.buildAndWrite(ctx)

	a.mu.Lock()
	a.lastErr = err
	if err == nil {
		a.lastRun = time.Now()
	}
	a.mu.Unlock()

	if err != nil {
		a.metrics.RunsFailed.Inc()
		return err
	}
	a.metrics.RunsCompleted.Inc()
	a.metrics.LastRunUnix.SetToCurrentTime()
	a.metrics.RunDuration.Observe(time.Since(start).Seconds())
	return nil
}

func (a *app) buildAndWrite(ctx context.Context) error {
	result, err := a.builder.Run(ctx)
	if err != nil {
		return err
	}

	findings := analysis.Analyze(result.Records, analysis.Options{
		WindowHours: a.cfg.DelayClipMaxHours,
		HotspotK:    a.cfg.HotspotK,
		ZThreshold:  a.cfg.HotspotZThreshold,
	}, a.logger)
	result.Report.Findings = &findings

	if err := dataset.WriteSnapshot(a.cfg.Outputs.Dataset, result.Records); err != nil {
		return err
	}
	if err := dataset.WriteReport(a.cfg.Outputs.Report, result.Report); err != nil {
		return err
	}
	a.logger.Info("run artifacts written",
		"run_id", result.Report.RunID,
		"dataset", a.cfg.Outputs.Dataset,
		"report", a.cfg.Outputs.Report,
	)

	if a.publisher != nil {
		if err := a.publisher.PublishSnapshot(ctx, result.Report.RunID, result.Records); err != nil {
			// The files are already durable; a publish failure should not
			// fail the run, just surface in logs and the next scrape.
			a.logger.Error("snapshot publish failed", "error", err)
		}
	}
	return nil
}

// CheckReadiness reports ready once a run has completed successfully.
func (a *app) CheckReadiness(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.lastRun.IsZero() {
		return nil
	}
	if a.lastErr != nil {
		return fmt.Errorf("no successful run yet: %w", a.lastErr)
	}
	return errors.New("no run completed yet")
}
