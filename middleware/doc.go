// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging and Metrics

	mux.HandleFunc("GET /elections", middleware.WithLogging(handler))

WithLogging logs request start (method, path, remote) and completion
(status, duration_ms). WithMetrics observes the request latency under the
registered route pattern. Both wrap the writer in a StatusWriter, which
forwards Flush so server-sent events keep working.

# Authentication

	protected := middleware.RequireAuth(secret, issuer)(
		middleware.RequireRole(auth.RoleAdmin, auth.RoleSuperAdmin)(handler))

RequireAuth verifies an HS256 bearer token and stores the auth.Identity in
the request context; RequireRole answers 403 for other roles. Both answer
401 when no identity is present.

# CORS Middleware

	server := http.Server{
		Handler: middleware.CORS(cfg.CORSOrigins)(mux),
	}

An empty origin list reflects any origin.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.CodedErrorResponse(w, http.StatusConflict, "ALREADY_VALIDATED", "message")

# Client IP Extraction

	ip := middleware.GetClientIP(r)

Used for audit events.
*/
package middleware
