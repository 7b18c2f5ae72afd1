// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the municipal results API.

# Route Registration

NewRouter builds the handler tree from the services in Deps:

	handler := router.NewRouter(router.Deps{
		Ledger: svc, Stats: stats.New(db), Blob: store, Audit: recorder,
	}, cfg)

Routes use Go 1.22+ method and wildcard patterns on http.ServeMux. The mux
sits behind chi's RequestID, RealIP and Recoverer middleware and CORS.

# Access Levels

Every route is registered with one of three helpers:

  - open: no token (health, geography reads, uploaded files)
  - read: bearer token, optionally restricted to roles
  - write: bearer token, roles, and an audit event per request

# Endpoints

Elections and parties:

	GET    /elections                - List (?status=)
	GET    /elections/{id}           - Get
	POST   /elections                - Create (SUPER_ADMIN)
	PUT    /elections/{id}           - Update type and date (SUPER_ADMIN)
	POST   /elections/{id}/status    - Change status (SUPER_ADMIN)
	DELETE /elections/{id}           - Delete (SUPER_ADMIN)
	GET    /elections/{id}/partis    - List parties
	POST   /partis                   - Create party (ADMIN)
	DELETE /partis/{id}              - Delete party (ADMIN)

Geography:

	GET  /centres-de-vote[/{id}]     - Centers, with lineage by id
	POST /centres-de-vote            - Create center (SUPER_ADMIN)
	GET  /postes[/{id}]              - Stations
	POST /postes                     - Create station (SUPER_ADMIN)

Station results:

	GET    /resultats-saisis[/{id}]          - Entries visible to the caller
	POST   /resultats-saisis                 - Enter (SUPERVISEUR)
	PUT    /resultats-saisis/{id}            - Correct a rejected entry (SUPERVISEUR)
	POST   /resultats-saisis/{id}/valider    - Validate (ADMIN)
	POST   /resultats-saisis/{id}/rejeter    - Reject (ADMIN)
	DELETE /resultats-saisis/{id}            - Delete

Compilations:

	GET    /compilations[/{id}]              - List, or detail with stations
	POST   /compilations                     - Create (AGENT, SUPERVISEUR)
	PUT    /compilations/{id}/photo          - Replace proof photo
	POST   /compilations/{id}/valider        - Validate (ADMIN)
	POST   /compilations/{id}/rejeter        - Reject with reason (ADMIN)
	PUT    /compilations/{id}/observation    - Set note (ADMIN)
	DELETE /compilations/{id}                - Delete (ADMIN)

Aggregates, audit and files:

	GET  /admin/elections/{id}/stats          - National summary (ADMIN)
	GET  /admin/elections/{id}/stats/{level}  - communes, districts, wards, centres
	GET  /admin/elections/{id}/stats/stream   - Server-sent events
	GET  /audit-logs                          - Audit trail (SUPER_ADMIN)
	POST /uploads/fiche-collecte              - Upload a tally sheet scan
	GET  /uploads/{key...}                    - Serve an uploaded file
	GET  /metrics                             - Prometheus metrics
	GET  /health
*/
package router
