package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/evaluator"
	"github.com/alanyoungcy/arbengine/internal/metrics"
	"github.com/alanyoungcy/arbengine/internal/notify"
	"github.com/alanyoungcy/arbengine/internal/provider"
	"github.com/alanyoungcy/arbengine/internal/report"
)

const (
	// ChannelArb is the pub/sub channel every detected opportunity is
	// published on.
	ChannelArb = "arb"
	// StreamArbHistory is the capped stream mirroring ChannelArb.
	StreamArbHistory = "arb:history"

	cycleLockKey = "cycle"
)

// CycleReport summarises one detection cycle.
type CycleReport struct {
	RunAt         time.Time            `json:"run_at"`
	Duration      time.Duration        `json:"duration"`
	Events        Stats                `json:"events"`
	Exchange      Stats                `json:"exchange"`
	Prediction    Stats                `json:"prediction"`
	Evaluation    evaluator.Stats      `json:"evaluation"`
	Opportunities []domain.Opportunity `json:"opportunities"`
}

// OrchestratorDeps bundles what a cycle needs. Lock, Cache, Bus, Notifier,
// Audit, Metrics and Report are optional.
type OrchestratorDeps struct {
	Exchange   provider.Provider
	Prediction provider.Provider

	Events     *EventIngestor
	Quotes     *ExchangeIngestor
	Binary     *PredictionIngestor
	Evaluator  *evaluator.Evaluator
	Lock       domain.LockManager
	LockTTL    time.Duration
	Cache      domain.OpportunityCache
	Bus        domain.SignalBus
	Notifier   *notify.Notifier
	Audit      domain.AuditStore
	Metrics    *metrics.Metrics
	Report     io.Writer
	ReportTopN int
	Currency   string
}

// Orchestrator runs detection cycles: ingest both venues, evaluate the
// matched quotes and fan the result out to cache, bus, notifier and report.
type Orchestrator struct {
	deps   OrchestratorDeps
	logger *slog.Logger
	now    func() time.Time

	// running serialises cycles within the process; deps.Lock extends
	// that across processes.
	running sync.Mutex
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps OrchestratorDeps, logger *slog.Logger) *Orchestrator {
	if deps.LockTTL <= 0 {
		deps.LockTTL = 2 * time.Minute
	}
	return &Orchestrator{
		deps:   deps,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce executes one full cycle. When a cycle is already running, in this
// process or in another instance sharing the cycle lock, the returned error
// wraps domain.ErrLockHeld and nothing is ingested.
func (o *Orchestrator) RunOnce(ctx context.Context) (CycleReport, error) {
	start := o.now()
	rep := CycleReport{RunAt: start}

	if !o.running.TryLock() {
		return rep, fmt.Errorf("pipeline: cycle already running: %w", domain.ErrLockHeld)
	}
	defer o.running.Unlock()

	if o.deps.Lock != nil {
		unlock, err := o.deps.Lock.Acquire(ctx, cycleLockKey, o.deps.LockTTL)
		if err != nil {
			return rep, fmt.Errorf("pipeline: acquire cycle lock: %w", err)
		}
		defer unlock()
	}

	err := o.cycle(ctx, &rep)
	rep.Duration = o.now().Sub(start)
	if o.deps.Metrics != nil {
		o.deps.Metrics.ObserveStage("total", rep.Duration)
		o.deps.Metrics.ObserveCycle(err == nil, o.now())
	}
	if err != nil {
		if o.deps.Notifier != nil && ctx.Err() == nil {
			if nerr := o.deps.Notifier.CycleFailed(ctx, err); nerr != nil {
				o.logger.WarnContext(ctx, "pipeline: notify cycle failure", slog.String("error", nerr.Error()))
			}
		}
		return rep, err
	}

	o.logger.InfoContext(ctx, "pipeline: cycle complete",
		slog.Duration("duration", rep.Duration),
		slog.Int("events", rep.Events.Upserted),
		slog.Int("exchange_quotes", rep.Exchange.Upserted),
		slog.Int("binary_quotes", rep.Prediction.Upserted),
		slog.Int("opportunities", len(rep.Opportunities)),
	)
	return rep, nil
}

func (o *Orchestrator) cycle(ctx context.Context, rep *CycleReport) error {
	var events []domain.Event
	err := o.stage(ctx, "events", func() error {
		var err error
		events, rep.Events, err = o.deps.Events.Run(ctx, o.deps.Exchange)
		return err
	})
	if err != nil {
		return err
	}

	err = o.stage(ctx, "exchange", func() error {
		var err error
		rep.Exchange, err = o.deps.Quotes.Run(ctx, o.deps.Exchange, events)
		return err
	})
	if err != nil {
		return err
	}

	err = o.stage(ctx, "prediction", func() error {
		var err error
		rep.Prediction, err = o.deps.Binary.Run(ctx, o.deps.Prediction)
		return err
	})
	if err != nil {
		return err
	}

	err = o.stage(ctx, "evaluate", func() error {
		var err error
		rep.Opportunities, rep.Evaluation, err = o.deps.Evaluator.EvaluateLatest(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if m := o.deps.Metrics; m != nil {
		m.ObserveIngest("events", rep.Events.Upserted, rep.Events.SkipCounts())
		m.ObserveIngest("exchange", rep.Exchange.Upserted, rep.Exchange.SkipCounts())
		m.ObserveIngest("prediction", rep.Prediction.Upserted, rep.Prediction.SkipCounts())
		m.ObserveOpportunities(rep.Opportunities)
	}

	o.fanOut(ctx, rep)
	return nil
}

// stage runs fn and records its duration under name.
func (o *Orchestrator) stage(ctx context.Context, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	if o.deps.Metrics != nil {
		o.deps.Metrics.ObserveStage(name, time.Since(start))
	}
	if err != nil {
		o.logger.ErrorContext(ctx, "pipeline: stage failed",
			slog.String("stage", name),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("pipeline: %s: %w", name, err)
	}
	return nil
}

// fanOut delivers a persisted batch to the secondary sinks. The batch is
// already durable, so sink failures are logged and do not fail the cycle.
func (o *Orchestrator) fanOut(ctx context.Context, rep *CycleReport) {
	opps := rep.Opportunities

	if o.deps.Cache != nil {
		if err := o.deps.Cache.SetLatest(ctx, opps); err != nil {
			o.logger.WarnContext(ctx, "pipeline: cache latest batch", slog.String("error", err.Error()))
		}
	}

	if o.deps.Bus != nil {
		for _, opp := range opps {
			payload, err := json.Marshal(opp)
			if err != nil {
				continue
			}
			if err := o.deps.Bus.Publish(ctx, ChannelArb, payload); err != nil {
				o.logger.WarnContext(ctx, "pipeline: publish opportunity",
					slog.String("id", opp.ID),
					slog.String("error", err.Error()),
				)
			}
			if err := o.deps.Bus.StreamAppend(ctx, StreamArbHistory, payload); err != nil {
				o.logger.WarnContext(ctx, "pipeline: append opportunity stream",
					slog.String("id", opp.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if o.deps.Notifier != nil && len(opps) > 0 {
		if err := o.deps.Notifier.OpportunitiesDetected(ctx, opps); err != nil {
			o.logger.WarnContext(ctx, "pipeline: notify opportunities", slog.String("error", err.Error()))
		}
	}

	if o.deps.Report != nil {
		if err := report.Summary(o.deps.Report, opps, o.deps.ReportTopN, o.deps.Currency); err != nil {
			o.logger.WarnContext(ctx, "pipeline: write report", slog.String("error", err.Error()))
		}
	}

	if o.deps.Audit != nil {
		detail := map[string]any{
			"events":          rep.Events.Upserted,
			"exchange_quotes": rep.Exchange.Upserted,
			"binary_quotes":   rep.Prediction.Upserted,
			"pairs":           rep.Evaluation.Pairs,
			"opportunities":   len(opps),
			"skipped":         rep.Events.SkippedTotal() + rep.Exchange.SkippedTotal() + rep.Prediction.SkippedTotal(),
		}
		if len(opps) > 0 {
			detail["run_id"] = opps[0].RunID
			detail["best_worst_case"] = opps[0].WorstCase
		}
		if err := o.deps.Audit.Log(ctx, "cycle_complete", detail); err != nil {
			o.logger.WarnContext(ctx, "pipeline: audit cycle", slog.String("error", err.Error()))
		}
	}
}

// RunLoop runs a cycle immediately and then once per interval until ctx is
// cancelled. Failed cycles are logged and the loop carries on.
func (o *Orchestrator) RunLoop(ctx context.Context, interval time.Duration) error {
	o.logger.InfoContext(ctx, "pipeline: loop starting", slog.Duration("interval", interval))

	o.runLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("pipeline: loop stopped")
			return ctx.Err()
		case <-ticker.C:
			o.runLogged(ctx)
		}
	}
}

func (o *Orchestrator) runLogged(ctx context.Context) {
	_, err := o.RunOnce(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrLockHeld):
		o.logger.InfoContext(ctx, "pipeline: cycle skipped, another cycle is running")
	case ctx.Err() != nil:
	default:
		o.logger.ErrorContext(ctx, "pipeline: cycle failed", slog.String("error", err.Error()))
	}
}
