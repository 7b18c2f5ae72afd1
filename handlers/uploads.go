// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/municipal-results/audit"
	"github.com/danielhkuo/municipal-results/blob"
	"github.com/danielhkuo/municipal-results/cliparse"
	"github.com/danielhkuo/municipal-results/ledger"
	"github.com/danielhkuo/municipal-results/middleware"
	"github.com/danielhkuo/municipal-results/models"
)

// UploadHandler stores tally sheet scans in the blob store.
type UploadHandler struct {
	store    blob.Store
	maxBytes int64
}

func NewUploadHandler(store blob.Store, cfg cliparse.Config) *UploadHandler {
	return &UploadHandler{store: store, maxBytes: cfg.MaxUploadBytes}
}

// UploadFiche handles POST /uploads/fiche-collecte (multipart field "file")
func (h *UploadHandler) UploadFiche(w http.ResponseWriter, r *http.Request) {
	// Allow some room for the multipart envelope
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+64<<10)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.CodedErrorResponse(w, http.StatusRequestEntityTooLarge, string(ledger.CodeInvalidInput),
				"File exceeds "+humanize.IBytes(uint64(h.maxBytes)))
			return
		}
		badRequest(w, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "file is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		middleware.CodedErrorResponse(w, http.StatusRequestEntityTooLarge, string(ledger.CodeInvalidInput),
			"File exceeds "+humanize.IBytes(uint64(h.maxBytes)))
		return
	}
	contentType := header.Header.Get("Content-Type")
	ext, ok := blob.Extension(contentType)
	if !ok {
		badRequest(w, "Only JPEG, PNG, WebP or PDF files are accepted")
		return
	}

	info, err := h.store.Put(r.Context(), blob.NewKey(ext), file, blob.PutOptions{ContentType: contentType})
	if err != nil {
		slog.Error("failed to store upload", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to store file")
		return
	}

	slog.Info("fiche uploaded",
		"key", info.Key,
		"size", humanize.IBytes(uint64(info.Size)),
		"driver", h.store.Driver(),
	)
	audit.Annotate(r.Context(), info.Key, nil, info)
	middleware.JSONResponse(w, http.StatusCreated, models.UploadResponse{URL: info.URL, Key: info.Key, Size: info.Size})
}

// ServeUpload handles GET /uploads/{key...}
func (h *UploadHandler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	info, rc, err := h.store.Get(r.Context(), r.PathValue("key"))
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			middleware.ErrorResponse(w, http.StatusNotFound, "File not found")
			return
		}
		slog.Error("failed to read upload", "key", r.PathValue("key"), "error", err)
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid file key")
		return
	}
	defer rc.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("upload stream interrupted", "key", info.Key, "error", err)
	}
}
