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

// GeographyHandler serves polling centers and stations. Reads are open.
type GeographyHandler struct {
	svc *ledger.Service
}

func NewGeographyHandler(svc *ledger.Service) *GeographyHandler {
	return &GeographyHandler{svc: svc}
}

// ListCenters handles GET /centres-de-vote?neighborhood_id=&ward_id=
func (h *GeographyHandler) ListCenters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	centers, err := h.svc.ListCenters(r.Context(), ledger.CenterFilter{
		NeighborhoodID: q.Get("neighborhood_id"),
		WardID:         q.Get("ward_id"),
	})
	if err != nil {
		writeError(w, r, err, "list polling centers")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, centers)
}

// GetCenter handles GET /centres-de-vote/{id}
func (h *GeographyHandler) GetCenter(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCenter(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "get polling center")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, c)
}

// CreateCenter handles POST /centres-de-vote
func (h *GeographyHandler) CreateCenter(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCenterRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badRequest(w, "Invalid JSON")
		return
	}

	c, err := h.svc.CreateCenter(r.Context(), caller(r), req.NeighborhoodID, req.Name, req.DeclaredStations)
	if err != nil {
		writeError(w, r, err, "create polling center")
		return
	}
	audit.Annotate(r.Context(), c.ID, nil, c)
	middleware.JSONResponse(w, http.StatusCreated, c)
}

// ListStations handles GET /postes?center_id=
func (h *GeographyHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.svc.ListStations(r.Context(), r.URL.Query().Get("center_id"))
	if err != nil {
		writeError(w, r, err, "list polling stations")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, stations)
}

// GetStation handles GET /postes/{id}
func (h *GeographyHandler) GetStation(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.GetStation(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "get polling station")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, st)
}

// CreateStation handles POST /postes
func (h *GeographyHandler) CreateStation(w http.ResponseWriter, r *http.Request) {
	var req models.CreateStationRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badRequest(w, "Invalid JSON")
		return
	}

	st, err := h.svc.CreateStation(r.Context(), caller(r), req.CenterID, req.Number, req.Label)
	if err != nil {
		writeError(w, r, err, "create polling station")
		return
	}
	audit.Annotate(r.Context(), st.ID, nil, st)
	middleware.JSONResponse(w, http.StatusCreated, st)
}
