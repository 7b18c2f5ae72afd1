// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielhkuo/municipal-results/audit"
	"github.com/danielhkuo/municipal-results/blob"
	"github.com/danielhkuo/municipal-results/db"
	"github.com/danielhkuo/municipal-results/ledger"
	"github.com/danielhkuo/municipal-results/models"
	"github.com/danielhkuo/municipal-results/stats"
	"github.com/danielhkuo/municipal-results/testutil"
)

type testServer struct {
	testutil.Fixture
	conn     *sql.DB
	recorder *audit.Recorder
	handler  http.Handler
}

// newTestServer seeds a database with one center of stations and builds the
// full handler tree over it, auditing to SQL.
func newTestServer(t *testing.T, stations int) testServer {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	f := testutil.Seed(t, conn, stations)
	cfg := testutil.GetTestConfig()

	recorder := audit.NewRecorder(audit.NewSQLSink(conn))
	t.Cleanup(recorder.Close)

	svc := ledger.New(conn, db.SQLite, func(url string) bool {
		return blob.ValidateProofURL(url, cfg.BlobPublicURL)
	})
	handler := NewRouter(Deps{
		Ledger: svc,
		Stats:  stats.New(conn),
		Blob:   blob.NewMemoryStore(cfg.BlobPublicURL),
		Audit:  recorder,
	}, cfg)
	return testServer{Fixture: f, conn: conn, recorder: recorder, handler: handler}
}

func (s testServer) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, testutil.MakeRequest(method, path, body, headers))
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, 1)

	w := s.do("GET", "/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	s := newTestServer(t, 1)

	w := s.do("GET", "/", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	expected := "municipal-results API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}

	w = s.do("GET", "/nope", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown path, got %d", w.Code)
	}
}

func TestRouteExistence(t *testing.T) {
	s := newTestServer(t, 1)

	// Every route answers something other than 404/405, even without a token
	testCases := []struct {
		method string
		path   string
	}{
		{"GET", "/elections"},
		{"GET", "/elections/x"},
		{"POST", "/elections"},
		{"PUT", "/elections/x"},
		{"POST", "/elections/x/status"},
		{"DELETE", "/elections/x"},
		{"GET", "/elections/x/partis"},
		{"POST", "/partis"},
		{"DELETE", "/partis/x"},
		{"GET", "/centres-de-vote"},
		{"POST", "/centres-de-vote"},
		{"GET", "/postes"},
		{"POST", "/postes"},
		{"GET", "/resultats-saisis"},
		{"GET", "/resultats-saisis/x"},
		{"POST", "/resultats-saisis"},
		{"PUT", "/resultats-saisis/x"},
		{"POST", "/resultats-saisis/x/valider"},
		{"POST", "/resultats-saisis/x/rejeter"},
		{"DELETE", "/resultats-saisis/x"},
		{"GET", "/compilations"},
		{"GET", "/compilations/x"},
		{"POST", "/compilations"},
		{"PUT", "/compilations/x/photo"},
		{"POST", "/compilations/x/valider"},
		{"POST", "/compilations/x/rejeter"},
		{"PUT", "/compilations/x/observation"},
		{"DELETE", "/compilations/x"},
		{"GET", "/admin/elections/x/stats"},
		{"GET", "/admin/elections/x/stats/wards"},
		{"GET", "/admin/elections/x/stats/stream"},
		{"GET", "/audit-logs"},
		{"POST", "/uploads/fiche-collecte"},
		{"GET", "/metrics"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := s.do(tc.method, tc.path, nil, nil)
			if w.Code == http.StatusMethodNotAllowed || (w.Code == http.StatusNotFound && w.Header().Get("Content-Type") != "application/json") {
				t.Errorf("Route %s %s returned %d, expected a handler", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, 1)

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/health"},
		{"PUT", "/resultats-saisis/x/valider"},
		{"PATCH", "/compilations/x"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := s.do(tc.method, tc.path, nil, nil)
			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected 405 for %s %s, got %d", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestAccessGates(t *testing.T) {
	s := newTestServer(t, 1)

	testCases := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		status  int
		code    string
	}{
		{"no token", "GET", "/resultats-saisis", nil, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad token", "GET", "/resultats-saisis", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"agent enters result", "POST", "/resultats-saisis", testutil.Bearer(t, s.Agent), http.StatusForbidden, "FORBIDDEN"},
		{"supervisor validates", "POST", "/resultats-saisis/x/valider", testutil.Bearer(t, s.Supervisor), http.StatusForbidden, "FORBIDDEN"},
		{"admin creates election", "POST", "/elections", testutil.Bearer(t, s.Admin), http.StatusForbidden, "FORBIDDEN"},
		{"supervisor reads stats", "GET", "/admin/elections/" + s.ElectionID + "/stats", testutil.Bearer(t, s.Supervisor), http.StatusForbidden, "FORBIDDEN"},
		{"admin reads audit", "GET", "/audit-logs", testutil.Bearer(t, s.Admin), http.StatusForbidden, "FORBIDDEN"},
		{"admin reads stats", "GET", "/admin/elections/" + s.ElectionID + "/stats", testutil.Bearer(t, s.Admin), http.StatusOK, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(tc.method, tc.path, nil, tc.headers)
			testutil.AssertStatus(t, w, tc.status)
			if tc.code != "" {
				testutil.AssertErrorCode(t, w, tc.code)
			}
		})
	}

	// Geography reads need no token
	w := s.do("GET", "/centres-de-vote/"+s.CenterID, nil, nil)
	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, 1)

	req := httptest.NewRequest("OPTIONS", "/resultats-saisis", nil)
	req.Header.Set("Origin", "https://mairie.example.org")
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	testutil.AssertStatus(t, w, http.StatusOK)
	if w.Header().Get("Access-Control-Allow-Origin") != "https://mairie.example.org" {
		t.Errorf("Expected origin to be allowed, got %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}

// TestResultWorkflow enters both stations of a center, files the proof photo,
// validates, and checks the compilation, the rollup and the audit trail.
func TestResultWorkflow(t *testing.T) {
	s := newTestServer(t, 2)
	supervisor := testutil.Bearer(t, s.Supervisor)
	agent := testutil.Bearer(t, s.Agent)
	admin := testutil.Bearer(t, s.Admin)

	var entries []models.ResultEntry
	for _, station := range s.Stations {
		w := s.do("POST", "/resultats-saisis", models.CreateResultRequest{
			ElectionID: s.ElectionID,
			StationID:  station,
			Tally:      models.Tally{Registered: 400, Voted: 300, ValidBallots: 290, NullBallots: 10, Abstentions: 100},
			Votes: []models.PartyVote{
				{PartyID: s.Parties[0], Votes: 150},
				{PartyID: s.Parties[1], Votes: 100},
				{PartyID: s.Parties[2], Votes: 40},
			},
		}, supervisor)
		testutil.AssertStatus(t, w, http.StatusCreated)
		var entry models.ResultEntry
		testutil.AssertJSON(t, w, &entry)
		entries = append(entries, entry)
	}

	w := s.do("POST", "/compilations", models.CreateCompilationRequest{
		ElectionID: s.ElectionID,
		CenterID:   s.CenterID,
		PhotoURL:   testutil.TestPublicURL + "/fiches/epp-centre-a.jpg",
	}, agent)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var compilation models.Compilation
	testutil.AssertJSON(t, w, &compilation)
	if compilation.Status != models.CompilationInProgress {
		t.Fatalf("Expected EN_COURS, got %s", compilation.Status)
	}

	// First station rejected, corrected, then both validated
	w = s.do("POST", "/resultats-saisis/"+entries[0].ID+"/rejeter", nil, admin)
	testutil.AssertStatus(t, w, http.StatusOK)

	corrected := models.UpdateResultRequest{Tally: entries[0].Tally, Votes: entries[0].Votes}
	corrected.Voted = 299
	w = s.do("PUT", "/resultats-saisis/"+entries[0].ID, corrected, supervisor)
	testutil.AssertStatus(t, w, http.StatusOK)

	for _, entry := range entries {
		w = s.do("POST", "/resultats-saisis/"+entry.ID+"/valider", nil, admin)
		testutil.AssertStatus(t, w, http.StatusOK)
	}

	w = s.do("GET", "/compilations/"+compilation.ID, nil, agent)
	testutil.AssertStatus(t, w, http.StatusOK)
	var detail models.CompilationDetail
	testutil.AssertJSON(t, w, &detail)
	if detail.Compilation.Status != models.CompilationValidated {
		t.Errorf("Expected compilation to follow its stations to VALIDEE, got %s", detail.Compilation.Status)
	}

	w = s.do("GET", "/admin/elections/"+s.ElectionID+"/stats/centres", nil, admin)
	testutil.AssertStatus(t, w, http.StatusOK)
	var report stats.Report
	testutil.AssertJSON(t, w, &report)
	if len(report.Rows) == 0 || report.Rows[0].ID != s.CenterID {
		t.Fatalf("Expected the reporting center first, got %+v", report.Rows)
	}
	if row := report.Rows[0]; row.Voted != 599 || row.CompletionRate != 100 || row.Parties[0].Votes != 300 {
		t.Errorf("Unexpected center rollup %+v", row)
	}

	// Audit events are written in the background
	s.recorder.Flush()
	events, err := audit.NewSQLSink(s.conn).List(context.Background(), audit.Filter{ResourceID: entries[0].ID})
	if err != nil {
		t.Fatalf("Failed to list audit events: %v", err)
	}
	var actions []string
	for _, ev := range events {
		actions = append(actions, ev.Action)
	}
	got := strings.Join(actions, ",")
	if got != "result.validate,result.update,result.reject,result.create" {
		t.Errorf("Unexpected audit trail for first entry: %s", got)
	}
	if events[0].ActorID != s.Admin.UserID || len(events[0].Before) == 0 || len(events[0].After) == 0 {
		t.Errorf("Expected validation event with actor and snapshots, got %+v", events[0])
	}

	w = s.do("GET", "/audit-logs?resource_type=compilation", nil, testutil.Bearer(t, s.SuperAdmin))
	testutil.AssertStatus(t, w, http.StatusOK)
	var listed []audit.Event
	testutil.AssertJSON(t, w, &listed)
	if len(listed) != 1 || listed[0].Action != "compilation.create" {
		t.Errorf("Expected only the compilation creation, got %+v", listed)
	}
}

func TestRefusedWritesAreAudited(t *testing.T) {
	s := newTestServer(t, 1)

	w := s.do("POST", "/elections", models.CreateElectionRequest{Type: "MUNICIPALE", VoteDate: "2026-03-01"}, testutil.Bearer(t, s.Agent))
	testutil.AssertStatus(t, w, http.StatusForbidden)

	s.recorder.Flush()
	events, err := audit.NewSQLSink(s.conn).List(context.Background(), audit.Filter{ResourceType: "election"})
	if err != nil {
		t.Fatalf("Failed to list audit events: %v", err)
	}
	if len(events) != 1 || events[0].Status != http.StatusForbidden || events[0].ActorID != s.Agent.UserID {
		t.Errorf("Expected one refused election.create by the agent, got %+v", events)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, 1)

	s.do("GET", "/elections", nil, testutil.Bearer(t, s.Admin))
	w := s.do("GET", "/metrics", nil, nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "municipal_results_http_request_duration_seconds") {
		t.Error("Expected request duration histogram in metrics output")
	}
}
