// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"

	"github.com/danielhkuo/municipal-results/audit"
	"github.com/danielhkuo/municipal-results/auth"
	"github.com/danielhkuo/municipal-results/ledger"
	"github.com/danielhkuo/municipal-results/middleware"
	"github.com/danielhkuo/municipal-results/models"
)

// ResultHandler serves per-station result entries.
type ResultHandler struct {
	svc *ledger.Service
}

func NewResultHandler(svc *ledger.Service) *ResultHandler {
	return &ResultHandler{svc: svc}
}

// resultSnapshot keeps the audited fields of an entry.
type resultSnapshot struct {
	Status       string             `json:"status"`
	Registered   int                `json:"registered_count"`
	Voted        int                `json:"voted_count"`
	ValidBallots int                `json:"valid_ballots"`
	Votes        []models.PartyVote `json:"votes"`
}

func snapshotResult(e models.ResultEntry) any {
	if e.ID == "" {
		return nil
	}
	return &resultSnapshot{Status: e.Status, Registered: e.Registered, Voted: e.Voted, ValidBallots: e.ValidBallots, Votes: e.Votes}
}

// ListResults handles GET /resultats-saisis?election_id=&center_id=&station_id=&status=
func (h *ResultHandler) ListResults(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.svc.ListResults(r.Context(), caller(r), ledger.ResultFilter{
		ElectionID: q.Get("election_id"),
		CenterID:   q.Get("center_id"),
		StationID:  q.Get("station_id"),
		Status:     q.Get("status"),
	})
	if err != nil {
		writeError(w, r, err, "list results")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, list)
}

// GetResult handles GET /resultats-saisis/{id}
func (h *ResultHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.GetResult(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "get result")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, e)
}

// CreateResult handles POST /resultats-saisis
func (h *ResultHandler) CreateResult(w http.ResponseWriter, r *http.Request) {
	var req models.CreateResultRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badRequest(w, "Invalid JSON")
		return
	}

	e, err := h.svc.CreateResult(r.Context(), caller(r), ledger.ResultInput{
		ElectionID: req.ElectionID,
		StationID:  req.StationID,
		Tally:      req.Tally,
		Votes:      req.Votes,
	})
	if err != nil {
		writeError(w, r, err, "create result")
		return
	}
	audit.Annotate(r.Context(), e.ID, nil, snapshotResult(e))
	middleware.JSONResponse(w, http.StatusCreated, e)
}

// UpdateResult handles PUT /resultats-saisis/{id}. Only rejected entries may be corrected.
func (h *ResultHandler) UpdateResult(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateResultRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badRequest(w, "Invalid JSON")
		return
	}

	who, id := caller(r), r.PathValue("id")
	before, _ := h.svc.GetResult(r.Context(), who, id)
	e, err := h.svc.UpdateResult(r.Context(), who, id, req.Tally, req.Votes)
	if err != nil {
		writeError(w, r, err, "update result")
		return
	}
	audit.Annotate(r.Context(), e.ID, snapshotResult(before), snapshotResult(e))
	middleware.JSONResponse(w, http.StatusOK, e)
}

// ValidateResult handles POST /resultats-saisis/{id}/valider
func (h *ResultHandler) ValidateResult(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "validate result", h.svc.ValidateResult)
}

// RejectResult handles POST /resultats-saisis/{id}/rejeter
func (h *ResultHandler) RejectResult(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "reject result", h.svc.RejectResult)
}

func (h *ResultHandler) decide(w http.ResponseWriter, r *http.Request, action string,
	apply func(ctx context.Context, who auth.Identity, id string) (models.ResultEntry, error)) {
	who, id := caller(r), r.PathValue("id")
	before, _ := h.svc.GetResult(r.Context(), who, id)
	e, err := apply(r.Context(), who, id)
	if err != nil {
		writeError(w, r, err, action)
		return
	}
	audit.Annotate(r.Context(), e.ID, map[string]string{"status": before.Status}, map[string]string{"status": e.Status})
	middleware.JSONResponse(w, http.StatusOK, e)
}

// DeleteResult handles DELETE /resultats-saisis/{id}
func (h *ResultHandler) DeleteResult(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.DeleteResult(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "delete result")
		return
	}
	audit.Annotate(r.Context(), e.ID, snapshotResult(e), nil)
	w.WriteHeader(http.StatusNoContent)
}
