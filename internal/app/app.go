// Package app runs the arbitrage engine in one of its operating modes: a
// single cycle, a detection loop, the read-only API, or everything at once.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/alanyoungcy/arbengine/internal/config"
)

type modeFunc func(a *App, ctx context.Context, deps *Dependencies) error

var modes = map[string]modeFunc{
	"once":   (*App).OnceMode,
	"loop":   (*App).LoopMode,
	"server": (*App).ServerMode,
	"full":   (*App).FullMode,
}

// App holds the configuration and the teardown hooks registered while
// wiring.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New returns an App for cfg.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run resolves the mode, wires dependencies and blocks in the mode until ctx
// is cancelled or the mode returns. The mode is checked before anything is
// connected.
func (a *App) Run(ctx context.Context) error {
	run, ok := modes[strings.ToLower(a.cfg.Mode)]
	if !ok {
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	a.logger.InfoContext(ctx, "app: running",
		slog.String("mode", a.cfg.Mode),
		slog.String("exchange", deps.Exchange.Name()),
		slog.String("prediction", deps.Prediction.Name()),
		slog.String("storage", a.cfg.Storage.Driver),
	)
	return run(a, ctx, deps)
}

// Close runs the registered teardown hooks, newest first. Repeated calls do
// nothing.
func (a *App) Close() {
	if len(a.closers) == 0 {
		return
	}
	a.logger.Info("app: closing")
	for _, c := range slices.Backward(a.closers) {
		c()
	}
	a.closers = nil
}
