package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// EventHandler serves canonical events together with their quotes.
type EventHandler struct {
	events domain.EventStore
	quotes domain.QuoteStore
	opps   domain.OpportunityStore
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(events domain.EventStore, quotes domain.QuoteStore, opps domain.OpportunityStore, logger *slog.Logger) *EventHandler {
	return &EventHandler{events: events, quotes: quotes, opps: opps, logger: logger}
}

type eventJSON struct {
	UID           string    `json:"uid"`
	League        string    `json:"league"`
	HomeTeam      string    `json:"home_team"`
	AwayTeam      string    `json:"away_team"`
	Kickoff       time.Time `json:"kickoff"`
	Source        string    `json:"source"`
	SourceEventID string    `json:"source_event_id,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toEventJSON(e domain.Event) eventJSON {
	return eventJSON{
		UID:           e.UID,
		League:        e.League,
		HomeTeam:      e.HomeTeam,
		AwayTeam:      e.AwayTeam,
		Kickoff:       e.Kickoff,
		Source:        e.Source,
		SourceEventID: e.SourceEventID,
		UpdatedAt:     e.UpdatedAt,
	}
}

type binaryQuoteJSON struct {
	Venue     string    `json:"venue"`
	MarketID  string    `json:"market_id"`
	EventUID  string    `json:"event_uid"`
	Team      string    `json:"team"`
	Question  string    `json:"question,omitempty"`
	YesPrice  float64   `json:"yes_price"`
	NoPrice   float64   `json:"no_price"`
	Liquidity *float64  `json:"liquidity,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type exchangeQuoteJSON struct {
	ID          string    `json:"id"`
	Venue       string    `json:"venue"`
	MarketID    string    `json:"market_id"`
	SelectionID string    `json:"selection_id"`
	EventUID    string    `json:"event_uid"`
	Team        string    `json:"team"`
	BackOdds    *float64  `json:"back_odds"`
	LayOdds     *float64  `json:"lay_odds"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type quotesJSON struct {
	Binary   []binaryQuoteJSON   `json:"binary"`
	Exchange []exchangeQuoteJSON `json:"exchange"`
}

// ListEvents returns canonical events ordered by kickoff.
// GET /api/events?limit=50&offset=0&since=...
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := h.events.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list events failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	out := make([]eventJSON, 0, len(events))
	for _, e := range events {
		out = append(out, toEventJSON(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

// GetEvent returns one event with its quotes and most recent opportunities.
// GET /api/events/{uid}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	if uid == "" {
		writeError(w, http.StatusBadRequest, "missing event uid")
		return
	}
	ctx := r.Context()

	ev, err := h.events.GetByUID(ctx, uid)
	if err != nil {
		if statusFor(err) == http.StatusNotFound {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		h.logger.ErrorContext(ctx, "handler: get event failed",
			slog.String("event_uid", uid),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}

	quotes, err := h.loadQuotes(r, uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load quotes")
		return
	}

	opps, err := h.opps.ListByEvent(ctx, uid, queryInt(r, "limit", 20, 200))
	if err != nil {
		h.logger.ErrorContext(ctx, "handler: list event opportunities failed",
			slog.String("event_uid", uid),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.Opportunity{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event":         toEventJSON(ev),
		"quotes":        quotes,
		"opportunities": opps,
	})
}

// ListQuotes returns the current quotes of both platforms, optionally
// restricted to one event.
// GET /api/quotes?event_uid=...
func (h *EventHandler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.loadQuotes(r, r.URL.Query().Get("event_uid"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load quotes")
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

func (h *EventHandler) loadQuotes(r *http.Request, uid string) (quotesJSON, error) {
	ctx := r.Context()
	out := quotesJSON{Binary: []binaryQuoteJSON{}, Exchange: []exchangeQuoteJSON{}}

	binary, err := h.quotes.FindBinaryQuotes(ctx, uid)
	if err != nil {
		h.logger.ErrorContext(ctx, "handler: find binary quotes failed",
			slog.String("event_uid", uid),
			slog.String("error", err.Error()),
		)
		return out, err
	}
	for _, q := range binary {
		out.Binary = append(out.Binary, binaryQuoteJSON{
			Venue:     q.Venue,
			MarketID:  q.MarketID,
			EventUID:  q.EventUID,
			Team:      q.Team,
			Question:  q.Question,
			YesPrice:  q.YesPrice,
			NoPrice:   q.No(),
			Liquidity: q.Liquidity,
			UpdatedAt: q.UpdatedAt,
		})
	}

	exchange, err := h.quotes.FindExchangeQuotes(ctx, uid)
	if err != nil {
		h.logger.ErrorContext(ctx, "handler: find exchange quotes failed",
			slog.String("event_uid", uid),
			slog.String("error", err.Error()),
		)
		return out, err
	}
	for _, q := range exchange {
		out.Exchange = append(out.Exchange, exchangeQuoteJSON{
			ID:          q.ID(),
			Venue:       q.Venue,
			MarketID:    q.MarketID,
			SelectionID: q.SelectionID,
			EventUID:    q.EventUID,
			Team:        q.Team,
			BackOdds:    q.BackOdds,
			LayOdds:     q.LayOdds,
			UpdatedAt:   q.UpdatedAt,
		})
	}
	return out, nil
}
