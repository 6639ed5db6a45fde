package handler

import (
	"net/http"
	"time"
)

// StatusHandler reports how the engine is running.
type StatusHandler struct {
	Mode       string
	Exchange   string
	Prediction string
	StartedAt  time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode, exchange, prediction string) *StatusHandler {
	return &StatusHandler{Mode: mode, Exchange: exchange, Prediction: prediction, StartedAt: time.Now().UTC()}
}

// GetStatus responds with the mode, the configured venues and the uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.Mode,
		"exchange":       h.Exchange,
		"prediction":     h.Prediction,
		"started_at":     h.StartedAt.Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.StartedAt).Seconds()),
	})
}
