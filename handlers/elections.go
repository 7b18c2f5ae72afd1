// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/municipal-results/audit"
	"github.com/danielhkuo/municipal-results/ledger"
	"github.com/danielhkuo/municipal-results/middleware"
	"github.com/danielhkuo/municipal-results/models"
)

type ElectionHandler struct {
	svc *ledger.Service
}

func NewElectionHandler(svc *ledger.Service) *ElectionHandler {
	return &ElectionHandler{svc: svc}
}

// ListElections handles GET /elections?status=
func (h *ElectionHandler) ListElections(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListElections(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err, "list elections")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, list)
}

// GetElection handles GET /elections/{id}
func (h *ElectionHandler) GetElection(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.GetElection(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "get election")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, e)
}

// CreateElection handles POST /elections
func (h *ElectionHandler) CreateElection(w http.ResponseWriter, r *http.Request) {
	var req models.CreateElectionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badRequest(w, "Invalid JSON")
		return
	}

	e, err := h.svc.CreateElection(r.Context(), caller(r), req.Type, req.VoteDate)
	if err != nil {
		writeError(w, r, err, "create election")
		return
	}
	audit.Annotate(r.Context(), e.ID, nil, e)
	middleware.JSONResponse(w, http.StatusCreated, e)
}

// UpdateElection handles PUT /elections/{id}
func (h *ElectionHandler) UpdateElection(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateElectionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badRequest(w, "Invalid JSON")
		return
	}

	id := r.PathValue("id")
	before, _ := h.svc.GetElection(r.Context(), id)
	e, err := h.svc.UpdateElection(r.Context(), caller(r), id, req.Type, req.VoteDate)
	if err != nil {
		writeError(w, r, err, "update election")
		return
	}
	audit.Annotate(r.Context(), e.ID, before, e)
	middleware.JSONResponse(w, http.StatusOK, e)
}

// TransitionElection handles POST /elections/{id}/status
func (h *ElectionHandler) TransitionElection(w http.ResponseWriter, r *http.Request) {
	var req models.ElectionStatusRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badRequest(w, "Invalid JSON")
		return
	}
	if req.Status == "" {
		badRequest(w, "status is required")
		return
	}

	id := r.PathValue("id")
	before, _ := h.svc.GetElection(r.Context(), id)
	e, err := h.svc.TransitionElection(r.Context(), caller(r), id, req.Status)
	if err != nil {
		writeError(w, r, err, "change election status")
		return
	}
	audit.Annotate(r.Context(), e.ID, map[string]string{"status": before.Status}, map[string]string{"status": e.Status})
	middleware.JSONResponse(w, http.StatusOK, e)
}

// DeleteElection handles DELETE /elections/{id}
func (h *ElectionHandler) DeleteElection(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.DeleteElection(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "delete election")
		return
	}
	audit.Annotate(r.Context(), e.ID, e, nil)
	w.WriteHeader(http.StatusNoContent)
}

// ListParties handles GET /elections/{id}/partis
func (h *ElectionHandler) ListParties(w http.ResponseWriter, r *http.Request) {
	parties, err := h.svc.ListParties(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "list parties")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, parties)
}

// CreateParty handles POST /partis
func (h *ElectionHandler) CreateParty(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePartyRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badRequest(w, "Invalid JSON")
		return
	}

	p, err := h.svc.CreateParty(r.Context(), caller(r), req.ElectionID, req.Name, req.Code, req.LogoURL)
	if err != nil {
		writeError(w, r, err, "create party")
		return
	}
	audit.Annotate(r.Context(), p.ID, nil, p)
	middleware.JSONResponse(w, http.StatusCreated, p)
}

// DeleteParty handles DELETE /partis/{id}
func (h *ElectionHandler) DeleteParty(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteParty(r.Context(), caller(r), r.PathValue("id")); err != nil {
		writeError(w, r, err, "delete party")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
