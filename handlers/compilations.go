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

// CompilationHandler serves per-center compilations.
type CompilationHandler struct {
	svc *ledger.Service
}

func NewCompilationHandler(svc *ledger.Service) *CompilationHandler {
	return &CompilationHandler{svc: svc}
}

type compilationSnapshot struct {
	Status      string  `json:"status"`
	PhotoURL    *string `json:"photo_url,omitempty"`
	Observation *string `json:"observation,omitempty"`
}

func snapshotCompilation(c models.Compilation) any {
	if c.ID == "" {
		return nil
	}
	return compilationSnapshot{Status: c.Status, PhotoURL: c.PhotoURL, Observation: c.Observation}
}

// ListCompilations handles GET /compilations?election_id=&center_id=&status=
func (h *CompilationHandler) ListCompilations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.svc.ListCompilations(r.Context(), caller(r), ledger.CompilationFilter{
		ElectionID: q.Get("election_id"),
		CenterID:   q.Get("center_id"),
		Status:     q.Get("status"),
	})
	if err != nil {
		writeError(w, r, err, "list compilations")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, list)
}

// GetCompilation handles GET /compilations/{id}, including the status of each station
func (h *CompilationHandler) GetCompilation(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.GetCompilation(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "get compilation")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, detail)
}

// CreateCompilation handles POST /compilations
func (h *CompilationHandler) CreateCompilation(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCompilationRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badRequest(w, "Invalid JSON")
		return
	}

	c, err := h.svc.CreateCompilation(r.Context(), caller(r), req.ElectionID, req.CenterID, req.PhotoURL)
	if err != nil {
		writeError(w, r, err, "create compilation")
		return
	}
	audit.Annotate(r.Context(), c.ID, nil, snapshotCompilation(c))
	middleware.JSONResponse(w, http.StatusCreated, c)
}

// UpdatePhoto handles PUT /compilations/{id}/photo
func (h *CompilationHandler) UpdatePhoto(w http.ResponseWriter, r *http.Request) {
	var req models.PhotoRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badRequest(w, "Invalid JSON")
		return
	}
	h.apply(w, r, "update compilation photo", func(id string) (models.Compilation, error) {
		return h.svc.UpdatePhoto(r.Context(), caller(r), id, req.PhotoURL)
	})
}

// ValidateCompilation handles POST /compilations/{id}/valider
func (h *CompilationHandler) ValidateCompilation(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, "validate compilation", func(id string) (models.Compilation, error) {
		return h.svc.ValidateCompilation(r.Context(), caller(r), id)
	})
}

// RejectCompilation handles POST /compilations/{id}/rejeter
func (h *CompilationHandler) RejectCompilation(w http.ResponseWriter, r *http.Request) {
	var req models.RejectCompilationRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badRequest(w, "Invalid JSON")
		return
	}
	h.apply(w, r, "reject compilation", func(id string) (models.Compilation, error) {
		return h.svc.RejectCompilation(r.Context(), caller(r), id, req.Reason)
	})
}

// SetObservation handles PUT /compilations/{id}/observation
func (h *CompilationHandler) SetObservation(w http.ResponseWriter, r *http.Request) {
	var req models.ObservationRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		badRequest(w, "Invalid JSON")
		return
	}
	h.apply(w, r, "set compilation observation", func(id string) (models.Compilation, error) {
		return h.svc.SetObservation(r.Context(), caller(r), id, req.Text)
	})
}

// apply runs a compilation mutation and records the before and after snapshots.
func (h *CompilationHandler) apply(w http.ResponseWriter, r *http.Request, action string, mutate func(id string) (models.Compilation, error)) {
	id := r.PathValue("id")
	var before models.Compilation
	if detail, err := h.svc.GetCompilation(r.Context(), caller(r), id); err == nil {
		before = detail.Compilation
	}

	c, err := mutate(id)
	if err != nil {
		writeError(w, r, err, action)
		return
	}
	audit.Annotate(r.Context(), c.ID, snapshotCompilation(before), snapshotCompilation(c))
	middleware.JSONResponse(w, http.StatusOK, c)
}

// DeleteCompilation handles DELETE /compilations/{id}
func (h *CompilationHandler) DeleteCompilation(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.DeleteCompilation(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "delete compilation")
		return
	}
	audit.Annotate(r.Context(), c.ID, snapshotCompilation(c), nil)
	w.WriteHeader(http.StatusNoContent)
}
