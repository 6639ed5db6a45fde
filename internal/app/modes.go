package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbengine/internal/pipeline"
	"github.com/alanyoungcy/arbengine/internal/server"
	"github.com/alanyoungcy/arbengine/internal/server/handler"
	"github.com/alanyoungcy/arbengine/internal/server/ws"
)

// OnceMode runs a single detection cycle and prints the ranked report to
// stdout.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting once mode")

	orch := a.newOrchestrator(deps)
	_, err := orch.RunOnce(ctx)
	return err
}

// LoopMode runs detection cycles on the configured interval until ctx is
// cancelled.
func (a *App) LoopMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting loop mode",
		slog.Duration("interval", a.cfg.Pipeline.Interval.Duration),
	)

	g, ctx := errgroup.WithContext(ctx)
	orch := a.newOrchestrator(deps)
	g.Go(func() error {
		return orch.RunLoop(ctx, a.cfg.Pipeline.Interval.Duration)
	})
	return ignoreCanceled(g.Wait())
}

// ServerMode serves the read API and websocket feed over whatever another
// process persists. It never runs a cycle itself.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, nil)
	return ignoreCanceled(g.Wait())
}

// FullMode runs the detection loop, the archive schedule and the HTTP server
// in one process. POST /api/pipeline/run triggers an extra cycle.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode",
		slog.Duration("interval", a.cfg.Pipeline.Interval.Duration),
	)

	g, ctx := errgroup.WithContext(ctx)
	orch := a.newOrchestrator(deps)
	g.Go(func() error {
		return orch.RunLoop(ctx, a.cfg.Pipeline.Interval.Duration)
	})
	a.startArchiver(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps, orch)
	return ignoreCanceled(g.Wait())
}

func (a *App) newOrchestrator(deps *Dependencies) *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(pipeline.OrchestratorDeps{
		Exchange:   deps.Exchange,
		Prediction: deps.Prediction,
		Events:     pipeline.NewEventIngestor(deps.Resolver, deps.EventStore, a.logger),
		Quotes:     pipeline.NewExchangeIngestor(deps.Resolver, deps.QuoteStore, a.cfg.Pipeline.FetchConcurrency, a.logger),
		Binary:     pipeline.NewPredictionIngestor(deps.Resolver, deps.EventStore, deps.QuoteStore, a.logger),
		Evaluator:  deps.Evaluator,
		Lock:       deps.LockManager,
		LockTTL:    a.cfg.Redis.LockTTL.Duration,
		Cache:      deps.OpportunityCache,
		Bus:        deps.SignalBus,
		Notifier:   deps.Notifier,
		Audit:      deps.AuditStore,
		Metrics:    deps.Metrics,
		Report:     os.Stdout,
		ReportTopN: a.cfg.Evaluator.ReportTopN,
		Currency:   a.cfg.Evaluator.Currency,
	}, a.logger)
}

// startArchiver schedules the retention sweep when an archiver is wired.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil || a.cfg.Pipeline.ArchiveCron == "" {
		return
	}
	arch := pipeline.NewArchiver(deps.Archiver, a.cfg.Pipeline.ArchiveRetentionDays, a.logger)
	g.Go(func() error {
		return arch.RunCron(ctx, a.cfg.Pipeline.ArchiveCron)
	})
}

// startHTTPServer adds the websocket hub, the HTTP server and its shutdown
// watcher to g. runner may be nil, which leaves the manual cycle endpoint
// answering 501.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, runner handler.CycleRunner) {
	hub := ws.NewHub(deps.SignalBus, ws.Config{
		Channels:       []string{pipeline.ChannelArb},
		Mode:           a.cfg.Mode,
		Venues:         []string{deps.Exchange.Name(), deps.Prediction.Name()},
		StartedAt:      time.Now().UTC(),
		AllowedOrigins: a.cfg.Server.CORSOrigins,
	}, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:        handler.NewHealthHandler(deps.Checks, a.logger),
		Status:        handler.NewStatusHandler(a.cfg.Mode, deps.Exchange.Name(), deps.Prediction.Name()),
		Opportunities: handler.NewOpportunityHandler(deps.OpportunityStore, deps.OpportunityCache, a.logger),
		Events:        handler.NewEventHandler(deps.EventStore, deps.QuoteStore, deps.OpportunityStore, a.logger),
		Audit:         handler.NewAuditHandler(deps.AuditStore, a.logger),
		Pipeline:      handler.NewPipelineHandler(runner, a.logger),
		Metrics:       deps.Metrics.Handler(),
	}
	srv := server.NewServer(server.Config{
		Port:              a.cfg.Server.Port,
		CORSOrigins:       a.cfg.Server.CORSOrigins,
		APIKey:            a.cfg.Server.APIKey,
		RequestsPerSecond: a.cfg.Server.RequestsPerSecond,
		Burst:             a.cfg.Server.Burst,
	}, handlers, hub, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// ignoreCanceled treats a cancelled context as a clean exit.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
