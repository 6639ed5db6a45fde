package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// OpportunityHandler serves detected opportunities.
type OpportunityHandler struct {
	store  domain.OpportunityStore
	cache  domain.OpportunityCache // optional
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler. cache may be nil.
func NewOpportunityHandler(store domain.OpportunityStore, cache domain.OpportunityCache, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{store: store, cache: cache, logger: logger}
}

type listOpportunitiesResponse struct {
	Opportunities []domain.Opportunity `json:"opportunities"`
	Source        string               `json:"source,omitempty"`
}

// ListRecent returns opportunity history, newest first.
// GET /api/opportunities?limit=50&offset=0&since=2025-01-10T00:00:00Z
func (h *OpportunityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opps, err := h.store.ListRecent(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list opportunities failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, listOpportunitiesResponse{Opportunities: opps})
}

// Latest returns the ranked batch of the most recent cycle. It reads the
// cache when one is configured and falls back to the store, keeping only
// the newest run.
// GET /api/opportunities/latest
func (h *OpportunityHandler) Latest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.cache != nil {
		opps, err := h.cache.Latest(ctx)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, listOpportunitiesResponse{Opportunities: opps, Source: "cache"})
			return
		case !errors.Is(err, domain.ErrNotFound):
			h.logger.WarnContext(ctx, "handler: opportunity cache read failed",
				slog.String("error", err.Error()),
			)
		}
	}

	recent, err := h.store.ListRecent(ctx, domain.ListOpts{Limit: 500})
	if err != nil {
		h.logger.ErrorContext(ctx, "handler: list opportunities failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	latest := latestRun(recent)
	writeJSON(w, http.StatusOK, listOpportunitiesResponse{Opportunities: latest, Source: "store"})
}

// latestRun keeps the opportunities sharing the run ID of the first entry.
// recent must be ordered newest first.
func latestRun(recent []domain.Opportunity) []domain.Opportunity {
	out := []domain.Opportunity{}
	if len(recent) == 0 {
		return out
	}
	run := recent[0].RunID
	for _, o := range recent {
		if o.RunID == run {
			out = append(out, o)
		}
	}
	return out
}
