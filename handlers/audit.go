// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/municipal-results/audit"
	"github.com/danielhkuo/municipal-results/middleware"
)

// AuditHandler lists recorded audit events. lister is nil when the
// configured sink cannot be read back (the log sink).
type AuditHandler struct {
	lister audit.Lister
}

func NewAuditHandler(sink audit.Sink) *AuditHandler {
	lister, _ := sink.(audit.Lister)
	return &AuditHandler{lister: lister}
}

// ListAuditLogs handles GET /audit-logs?resource_type=&resource_id=&actor_id=&limit=
func (h *AuditHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		middleware.ErrorResponse(w, http.StatusNotImplemented, "Audit sink does not support listing")
		return
	}
	limit, ok := queryInt(r, "limit", audit.DefaultLimit)
	if !ok {
		badRequest(w, "limit must be a positive integer")
		return
	}

	q := r.URL.Query()
	events, err := h.lister.List(r.Context(), audit.Filter{
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
		ActorID:      q.Get("actor_id"),
		Limit:        limit,
	})
	if err != nil {
		slog.Error("failed to list audit events", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to list audit events")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, events)
}
