package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/pipeline"
)

// CycleRunner runs one detection cycle on demand.
type CycleRunner interface {
	RunOnce(ctx context.Context) (pipeline.CycleReport, error)
}

// PipelineHandler serves the manual cycle trigger.
type PipelineHandler struct {
	runner CycleRunner
	logger *slog.Logger
}

// NewPipelineHandler creates a PipelineHandler. A nil runner disables the
// endpoint.
func NewPipelineHandler(runner CycleRunner, logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{runner: runner, logger: logger}
}

// RunCycle runs one cycle synchronously and returns its report. While
// another cycle is running, in the loop or another instance, it answers 409.
// POST /api/pipeline/run
func (h *PipelineHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		writeError(w, http.StatusNotImplemented, "pipeline not configured in this mode")
		return
	}

	h.logger.InfoContext(r.Context(), "handler: cycle requested")
	rep, err := h.runner.RunOnce(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			writeError(w, http.StatusConflict, "a cycle is already running")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: cycle failed", slog.String("error", err.Error()))
		writeError(w, statusFor(err), "cycle failed")
		return
	}
	if rep.Opportunities == nil {
		rep.Opportunities = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, rep)
}
