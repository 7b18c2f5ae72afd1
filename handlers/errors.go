// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielhkuo/municipal-results/auth"
	"github.com/danielhkuo/municipal-results/ledger"
	"github.com/danielhkuo/municipal-results/middleware"
)

// statusFor maps domain codes to HTTP statuses.
var statusFor = map[ledger.Code]int{
	ledger.CodeNotFound:                http.StatusNotFound,
	ledger.CodeForbidden:               http.StatusForbidden,
	ledger.CodeInvalidInput:            http.StatusBadRequest,
	ledger.CodeNoPartyResults:          http.StatusBadRequest,
	ledger.CodeReasonRequired:          http.StatusBadRequest,
	ledger.CodePhotoRequired:           http.StatusBadRequest,
	ledger.CodeInvalidPhotoURL:         http.StatusBadRequest,
	ledger.CodeNoResultsForCenter:      http.StatusBadRequest,
	ledger.CodeNoPostesForCenter:       http.StatusBadRequest,
	ledger.CodeNotAllPostesValidated:   http.StatusBadRequest,
	ledger.CodeAlreadyExists:           http.StatusConflict,
	ledger.CodeAlreadyValidated:        http.StatusConflict,
	ledger.CodeAlreadyRejected:         http.StatusConflict,
	ledger.CodeInvalidStatusTransition: http.StatusConflict,
	ledger.CodeActiveNoModification:    http.StatusConflict,
	ledger.CodeActiveNoDeletion:        http.StatusConflict,
	ledger.CodeValidatedImmutable:      http.StatusConflict,
	ledger.CodeNotRejectedCannotEdit:   http.StatusConflict,
	ledger.CodeCannotDeleteValidated:   http.StatusConflict,
	ledger.CodePartyInUse:              http.StatusConflict,
}

// writeError answers a failed ledger call. Domain errors become 4xx with their code;
// anything else is logged and answered with a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error, action string) {
	code := ledger.CodeOf(err)
	status, ok := statusFor[code]
	if !ok {
		slog.Error(action+" failed", "method", r.Method, "path", r.URL.Path, "error", err)
		middleware.CodedErrorResponse(w, http.StatusInternalServerError, "INTERNAL", "Failed to "+action)
		return
	}
	middleware.CodedErrorResponse(w, status, string(code), err.Error())
}

func badRequest(w http.ResponseWriter, message string) {
	middleware.CodedErrorResponse(w, http.StatusBadRequest, string(ledger.CodeInvalidInput), message)
}

// caller returns the identity RequireAuth stored on the request. Open routes get the zero Identity.
func caller(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

// queryInt reads a positive integer query parameter, def when absent.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
