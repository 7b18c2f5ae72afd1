// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/municipal-results/cliparse"
	"github.com/danielhkuo/municipal-results/ledger"
	"github.com/danielhkuo/municipal-results/middleware"
	"github.com/danielhkuo/municipal-results/stats"
)

// StatsHandler serves live rollups to administrators.
type StatsHandler struct {
	engine   *stats.Engine
	interval time.Duration
}

func NewStatsHandler(engine *stats.Engine, cfg cliparse.Config) *StatsHandler {
	interval := cfg.StatsInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &StatsHandler{engine: engine, interval: interval}
}

// GetSummary handles GET /admin/elections/{id}/stats
func (h *StatsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	row, err := h.engine.National(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "compute stats")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, row)
}

// GetByLevel handles GET /admin/elections/{id}/stats/{level}
// with level one of communes, districts, wards or centres.
func (h *StatsHandler) GetByLevel(w http.ResponseWriter, r *http.Request) {
	level, ok := stats.ParseLevel(r.PathValue("level"))
	if !ok {
		middleware.CodedErrorResponse(w, http.StatusNotFound, string(ledger.CodeNotFound), "Unknown stats level "+r.PathValue("level"))
		return
	}

	report, err := h.engine.Compute(r.Context(), caller(r), r.PathValue("id"), level)
	if err != nil {
		writeError(w, r, err, "compute stats")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, report)
}

// Stream handles GET /admin/elections/{id}/stats/stream.
// It sends the national summary as a server-sent event right away, then once
// per interval until the client disconnects.
func (h *StatsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	ctx, who, electionID := r.Context(), caller(r), r.PathValue("id")

	// Fail before switching to the event stream if the election is unknown
	first, err := h.engine.National(ctx, who, electionID)
	if err != nil {
		writeError(w, r, err, "compute stats")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "stats", first); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	slog.Info("stats stream opened", "election_id", electionID, "user_id", who.UserID)
	for {
		select {
		case <-ctx.Done():
			slog.Info("stats stream closed", "election_id", electionID, "user_id", who.UserID)
			return
		case <-ticker.C:
			row, err := h.engine.National(ctx, who, electionID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("stats stream refresh failed", "election_id", electionID, "error", err)
				fmt.Fprintf(w, "event: error\ndata: %q\n\n", "stats unavailable")
				flusher.Flush()
				continue
			}
			if err := writeEvent(w, "stats", row); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
