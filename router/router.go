// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/danielhkuo/municipal-results/audit"
	"github.com/danielhkuo/municipal-results/auth"
	"github.com/danielhkuo/municipal-results/blob"
	"github.com/danielhkuo/municipal-results/cliparse"
	"github.com/danielhkuo/municipal-results/handlers"
	"github.com/danielhkuo/municipal-results/ledger"
	"github.com/danielhkuo/municipal-results/metrics"
	"github.com/danielhkuo/municipal-results/middleware"
	"github.com/danielhkuo/municipal-results/stats"
)

// Deps are the services the routes are served from.
type Deps struct {
	Ledger *ledger.Service
	Stats  *stats.Engine
	Blob   blob.Store
	Audit  *audit.Recorder
}

var (
	admins      = []string{auth.RoleAdmin, auth.RoleSuperAdmin}
	superAdmins = []string{auth.RoleSuperAdmin}
	supervisors = []string{auth.RoleSupervisor}
	fieldStaff  = []string{auth.RoleAgent, auth.RoleSupervisor}
)

// routes registers patterns with the middleware chain their access level needs.
type routes struct {
	mux      *http.ServeMux
	authn    func(http.HandlerFunc) http.HandlerFunc
	recorder *audit.Recorder
}

func (rt *routes) handle(pattern string, h http.HandlerFunc) {
	rt.mux.HandleFunc(pattern, middleware.WithMetrics(pattern, middleware.WithLogging(h)))
}

// open registers a route anyone may call.
func (rt *routes) open(pattern string, h http.HandlerFunc) {
	rt.handle(pattern, h)
}

// read registers a route for any authenticated caller, restricted to roles when given.
func (rt *routes) read(pattern string, h http.HandlerFunc, roles ...string) {
	if len(roles) > 0 {
		h = middleware.RequireRole(roles...)(h)
	}
	rt.handle(pattern, rt.authn(h))
}

// write registers an audited mutation restricted to roles. Refused attempts are audited too.
func (rt *routes) write(pattern, action, resourceType string, h http.HandlerFunc, roles ...string) {
	if len(roles) > 0 {
		h = middleware.RequireRole(roles...)(h)
	}
	rt.handle(pattern, rt.authn(audit.Wrap(rt.recorder, action, resourceType, h)))
}

// NewRouter builds the API handler: the route table behind request id,
// real IP, panic recovery and CORS middleware.
func NewRouter(deps Deps, cfg cliparse.Config) http.Handler {
	mux := http.NewServeMux()
	rt := &routes{
		mux:      mux,
		authn:    middleware.RequireAuth([]byte(cfg.JWTSecret), cfg.JWTIssuer),
		recorder: deps.Audit,
	}

	// Initialize handlers
	electionHandler := handlers.NewElectionHandler(deps.Ledger)
	geographyHandler := handlers.NewGeographyHandler(deps.Ledger)
	resultHandler := handlers.NewResultHandler(deps.Ledger)
	compilationHandler := handlers.NewCompilationHandler(deps.Ledger)
	statsHandler := handlers.NewStatsHandler(deps.Stats, cfg)
	uploadHandler := handlers.NewUploadHandler(deps.Blob, cfg)
	auditHandler := handlers.NewAuditHandler(deps.Audit.Sink())

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	// Elections and parties
	rt.read("GET /elections", electionHandler.ListElections)
	rt.read("GET /elections/{id}", electionHandler.GetElection)
	rt.write("POST /elections", "election.create", "election", electionHandler.CreateElection, superAdmins...)
	rt.write("PUT /elections/{id}", "election.update", "election", electionHandler.UpdateElection, superAdmins...)
	rt.write("POST /elections/{id}/status", "election.status", "election", electionHandler.TransitionElection, superAdmins...)
	rt.write("DELETE /elections/{id}", "election.delete", "election", electionHandler.DeleteElection, superAdmins...)
	rt.read("GET /elections/{id}/partis", electionHandler.ListParties)
	rt.write("POST /partis", "party.create", "party", electionHandler.CreateParty, admins...)
	rt.write("DELETE /partis/{id}", "party.delete", "party", electionHandler.DeleteParty, admins...)

	// Geography (reads are public)
	rt.open("GET /centres-de-vote", geographyHandler.ListCenters)
	rt.open("GET /centres-de-vote/{id}", geographyHandler.GetCenter)
	rt.write("POST /centres-de-vote", "center.create", "center", geographyHandler.CreateCenter, superAdmins...)
	rt.open("GET /postes", geographyHandler.ListStations)
	rt.open("GET /postes/{id}", geographyHandler.GetStation)
	rt.write("POST /postes", "station.create", "station", geographyHandler.CreateStation, superAdmins...)

	// Station results
	rt.read("GET /resultats-saisis", resultHandler.ListResults)
	rt.read("GET /resultats-saisis/{id}", resultHandler.GetResult)
	rt.write("POST /resultats-saisis", "result.create", "result", resultHandler.CreateResult, supervisors...)
	rt.write("PUT /resultats-saisis/{id}", "result.update", "result", resultHandler.UpdateResult, supervisors...)
	rt.write("POST /resultats-saisis/{id}/valider", "result.validate", "result", resultHandler.ValidateResult, admins...)
	rt.write("POST /resultats-saisis/{id}/rejeter", "result.reject", "result", resultHandler.RejectResult, admins...)
	rt.write("DELETE /resultats-saisis/{id}", "result.delete", "result", resultHandler.DeleteResult,
		auth.RoleSupervisor, auth.RoleAdmin, auth.RoleSuperAdmin)

	// Center compilations
	rt.read("GET /compilations", compilationHandler.ListCompilations)
	rt.read("GET /compilations/{id}", compilationHandler.GetCompilation)
	rt.write("POST /compilations", "compilation.create", "compilation", compilationHandler.CreateCompilation, fieldStaff...)
	rt.write("PUT /compilations/{id}/photo", "compilation.photo", "compilation", compilationHandler.UpdatePhoto, fieldStaff...)
	rt.write("POST /compilations/{id}/valider", "compilation.validate", "compilation", compilationHandler.ValidateCompilation, admins...)
	rt.write("POST /compilations/{id}/rejeter", "compilation.reject", "compilation", compilationHandler.RejectCompilation, admins...)
	rt.write("PUT /compilations/{id}/observation", "compilation.observation", "compilation", compilationHandler.SetObservation, admins...)
	rt.write("DELETE /compilations/{id}", "compilation.delete", "compilation", compilationHandler.DeleteCompilation, admins...)

	// Aggregates
	rt.read("GET /admin/elections/{id}/stats", statsHandler.GetSummary, admins...)
	rt.read("GET /admin/elections/{id}/stats/stream", statsHandler.Stream, admins...)
	rt.read("GET /admin/elections/{id}/stats/{level}", statsHandler.GetByLevel, admins...)

	// Audit trail
	rt.read("GET /audit-logs", auditHandler.ListAuditLogs, superAdmins...)

	// Uploads
	rt.write("POST /uploads/fiche-collecte", "upload.create", "upload", uploadHandler.UploadFiche)
	rt.open("GET /uploads/{key...}", uploadHandler.ServeUpload)

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("municipal-results API v1"))
	})

	var handler http.Handler = mux
	handler = middleware.CORS(cfg.CORSOrigins)(handler)
	handler = chimw.Recoverer(handler)
	handler = chimw.RealIP(handler)
	handler = chimw.RequestID(handler)
	return handler
}
