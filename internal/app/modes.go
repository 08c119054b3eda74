package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/lmsrmarket/internal/cache/redis"
	"github.com/alanyoungcy/lmsrmarket/internal/retention"
	"github.com/alanyoungcy/lmsrmarket/internal/server"
	"github.com/alanyoungcy/lmsrmarket/internal/server/handler"
	"github.com/alanyoungcy/lmsrmarket/internal/server/ws"
)

const shutdownTimeout = 10 * time.Second

// ServerMode serves the HTTP API and, with Redis, the step-event
// WebSocket until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(deps.Probes, a.logger),
		Pipeline: handler.NewPipelineHandler(deps.Service, a.logger),
		Markets:  handler.NewMarketHandler(deps.Service, a.logger),
		LMSR:     handler.NewLMSRHandler(a.logger),
	}
	if deps.Records != nil {
		handlers.Records = handler.NewRecordsHandler(deps.Records, deps.Audit, deps.Archiver, a.logger)
	}
	if deps.Bus != nil {
		hub := ws.NewHub(deps.Bus, deps.Bus, ws.Config{Channel: redis.StepChannel, Stream: redis.StepStream}, a.logger)
		handlers.Hub = hub
		g.Go(func() error {
			if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("ws hub: %w", err)
			}
			return nil
		})
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if deps.Archiver != nil && a.cfg.S3.ArchiveCron != "" {
		arch := retention.NewArchiver(deps.Archiver, a.cfg.S3.ArchiveRetentionDays, a.logger)
		g.Go(func() error {
			if err := arch.RunCron(ctx, a.cfg.S3.ArchiveCron); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("archive cron: %w", err)
			}
			return nil
		})
	}

	// Connect eagerly. A failure is only logged; Get retries on first use.
	g.Go(func() error {
		if _, err := deps.Manager.Get(ctx); err != nil {
			a.logger.WarnContext(ctx, "chain connection not yet available", slog.String("error", err.Error()))
		}
		return nil
	})

	return g.Wait()
}

// PipelineMode runs the configured plan once and prints a summary.
func (a *App) PipelineMode(ctx context.Context, deps *Dependencies) error {
	plan, err := LoadPlan(a.cfg.Plan.Path)
	if err != nil {
		return err
	}

	start := time.Now()
	rows, runErr := RunPlan(ctx, deps.Service, plan)
	if err := RenderSummary(os.Stdout, rows); err != nil {
		a.logger.WarnContext(ctx, "render summary failed", slog.String("error", err.Error()))
	}
	if runErr != nil {
		return fmt.Errorf("app: pipeline: %w", runErr)
	}

	a.logger.InfoContext(ctx, "pipeline complete",
		slog.Int("steps", len(rows)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}
