// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/municipal-results/auth"
	"github.com/danielhkuo/municipal-results/cliparse"
	"github.com/danielhkuo/municipal-results/db"
	"github.com/danielhkuo/municipal-results/models"
)

// TestJWTSecret signs every token minted by Token
const TestJWTSecret = "test-jwt-secret"

// TestPublicURL is the blob base URL in GetTestConfig
const TestPublicURL = "http://localhost:3318/uploads"

// SetupTestDB opens a private in-memory SQLite database with the full schema.
// Each test gets its own database, so tests may run in parallel.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	name := "test_" + strings.ReplaceAll(auth.NewID(), "-", "")
	conn, _, err := db.Open(context.Background(), db.TypeSQLite, "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:           3318,
		DatabaseURL:    "file::memory:",
		DatabaseType:   db.TypeSQLite,
		JWTSecret:      TestJWTSecret,
		BlobDriver:     "memory",
		BlobPublicURL:  TestPublicURL,
		MaxUploadBytes: 1 << 20,
		AuditSink:      "log",
		StatsInterval:  50 * time.Millisecond,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Fixture holds the IDs created by Seed.
//
// Geography: one department, commune and district with two wards. Ward A has
// one neighborhood with Center (Stations[0..n-1]); ward B has OtherCenter
// with a single OtherStation.
type Fixture struct {
	DepartmentID   string
	CommuneID      string
	DistrictID     string
	WardID         string
	NeighborhoodID string
	CenterID       string
	Stations       []string

	OtherWardID    string
	OtherCenterID  string
	OtherStationID string

	ElectionID string
	Parties    []string // codes P1, P2, P3

	SuperAdmin      auth.Identity
	Admin           auth.Identity
	Supervisor      auth.Identity // ward A
	OtherSupervisor auth.Identity // ward B
	Agent           auth.Identity // Center
}

// Seed creates a geography, an in-progress election with three parties, and
// one user per role. stations is the number of stations in Center.
func Seed(t *testing.T, conn *sql.DB, stations int) Fixture {
	t.Helper()

	f := Fixture{
		DepartmentID:   auth.NewID(),
		CommuneID:      auth.NewID(),
		DistrictID:     auth.NewID(),
		WardID:         auth.NewID(),
		NeighborhoodID: auth.NewID(),
		CenterID:       auth.NewID(),
		OtherWardID:    auth.NewID(),
		OtherCenterID:  auth.NewID(),
		OtherStationID: auth.NewID(),
	}
	otherNeighborhood := auth.NewID()
	now := time.Now().UTC()

	exec(t, conn, `INSERT INTO department (id, name) VALUES ($1, 'Littoral')`, f.DepartmentID)
	exec(t, conn, `INSERT INTO commune (id, department_id, name) VALUES ($1, $2, 'Cotonou')`, f.CommuneID, f.DepartmentID)
	exec(t, conn, `INSERT INTO district (id, commune_id, name) VALUES ($1, $2, '1er arrondissement')`, f.DistrictID, f.CommuneID)
	exec(t, conn, `INSERT INTO ward (id, district_id, name) VALUES ($1, $2, 'Ward A')`, f.WardID, f.DistrictID)
	exec(t, conn, `INSERT INTO ward (id, district_id, name) VALUES ($1, $2, 'Ward B')`, f.OtherWardID, f.DistrictID)
	exec(t, conn, `INSERT INTO neighborhood (id, ward_id, name) VALUES ($1, $2, 'Quartier A')`, f.NeighborhoodID, f.WardID)
	exec(t, conn, `INSERT INTO neighborhood (id, ward_id, name) VALUES ($1, $2, 'Quartier B')`, otherNeighborhood, f.OtherWardID)
	exec(t, conn, `
		INSERT INTO polling_center (id, neighborhood_id, name, declared_stations, created_at)
		VALUES ($1, $2, 'EPP Centre A', $3, $4)
	`, f.CenterID, f.NeighborhoodID, stations, now)
	exec(t, conn, `
		INSERT INTO polling_center (id, neighborhood_id, name, declared_stations, created_at)
		VALUES ($1, $2, 'EPP Centre B', 1, $3)
	`, f.OtherCenterID, otherNeighborhood, now)

	for i := 1; i <= stations; i++ {
		id := auth.NewID()
		exec(t, conn, `
			INSERT INTO polling_station (id, center_id, number, label, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, id, f.CenterID, i, fmt.Sprintf("Bureau %d", i), now)
		f.Stations = append(f.Stations, id)
	}
	exec(t, conn, `
		INSERT INTO polling_station (id, center_id, number, label, created_at)
		VALUES ($1, $2, 1, 'Bureau 1', $3)
	`, f.OtherStationID, f.OtherCenterID, now)

	f.ElectionID = CreateTestElection(t, conn, models.ElectionInProgress)
	for _, code := range []string{"P1", "P2", "P3"} {
		f.Parties = append(f.Parties, AddTestParty(t, conn, f.ElectionID, code))
	}

	f.SuperAdmin = CreateTestUser(t, conn, auth.Identity{Role: auth.RoleSuperAdmin})
	f.Admin = CreateTestUser(t, conn, auth.Identity{Role: auth.RoleAdmin})
	f.Supervisor = CreateTestUser(t, conn, auth.Identity{Role: auth.RoleSupervisor, WardID: f.WardID})
	f.OtherSupervisor = CreateTestUser(t, conn, auth.Identity{Role: auth.RoleSupervisor, WardID: f.OtherWardID})
	f.Agent = CreateTestUser(t, conn, auth.Identity{Role: auth.RoleAgent, CenterID: f.CenterID})

	return f
}

// CreateTestElection inserts a municipal election with the given status
func CreateTestElection(t *testing.T, conn *sql.DB, status string) string {
	t.Helper()

	id := auth.NewID()
	now := time.Now().UTC()
	exec(t, conn, `
		INSERT INTO election (id, type, vote_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, id, models.ElectionMunicipal, time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC), status, now)
	return id
}

// AddTestParty adds a party to an election and returns its ID
func AddTestParty(t *testing.T, conn *sql.DB, electionID, code string) string {
	t.Helper()

	id := auth.NewID()
	exec(t, conn, `
		INSERT INTO party (id, election_id, name, code, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, electionID, "Parti "+code, code, time.Now().UTC())
	return id
}

// CreateTestUser persists who (assigning an ID if empty) and returns it
func CreateTestUser(t *testing.T, conn *sql.DB, who auth.Identity) auth.Identity {
	t.Helper()

	if who.UserID == "" {
		who.UserID = auth.NewID()
	}
	exec(t, conn, `
		INSERT INTO app_user (id, full_name, email, role, ward_id, center_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, who.UserID, strings.ToLower(who.Role)+" user", who.UserID+"@example.org", who.Role,
		nullable(who.WardID), nullable(who.CenterID), time.Now().UTC())
	return who
}

// Token mints a one-hour JWT for who signed with TestJWTSecret
func Token(t *testing.T, who auth.Identity) string {
	t.Helper()

	token, err := auth.IssueToken(who, []byte(TestJWTSecret), "", time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return token
}

// Bearer returns the Authorization header for who
func Bearer(t *testing.T, who auth.Identity) map[string]string {
	t.Helper()
	return map[string]string{"Authorization": "Bearer " + Token(t, who)}
}

func exec(t *testing.T, conn *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := conn.Exec(query, args...); err != nil {
		t.Fatalf("Failed to seed test data: %v\n%s", err, query)
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

// AssertErrorCode decodes an error body and checks its domain code
func AssertErrorCode(t *testing.T, w *httptest.ResponseRecorder, code string) {
	t.Helper()
	var body models.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if body.Code != code {
		t.Errorf("Expected error code %s, got %s (%s)", code, body.Code, body.Message)
	}
}
