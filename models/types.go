// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Election status constants
const (
	ElectionPlanned    = "PLANIFIEE"
	ElectionInProgress = "EN_COURS"
	ElectionClosed     = "CLOTUREE"
	ElectionArchived   = "ARCHIVEE"
)

// Election type constants
const (
	ElectionMunicipal   = "MUNICIPALE"
	ElectionLegislative = "LEGISLATIVE"
)

// Result entry status constants
const (
	ResultSubmitted = "COMPLETEE"
	ResultValidated = "VALIDEE"
	ResultRejected  = "REJETEE"
)

// Compilation status constants
const (
	CompilationInProgress = "EN_COURS"
	CompilationValidated  = "VALIDEE"
	CompilationRejected   = "REJETEE"
)

// Domain types

type Election struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	VoteDate  time.Time `json:"vote_date"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Party struct {
	ID         string    `json:"id"`
	ElectionID string    `json:"election_id"`
	Name       string    `json:"name"`
	Code       string    `json:"code"`
	LogoURL    *string   `json:"logo_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type PollingCenter struct {
	ID               string    `json:"id"`
	NeighborhoodID   string    `json:"neighborhood_id"`
	Name             string    `json:"name"`
	DeclaredStations int       `json:"declared_stations"`
	CreatedAt        time.Time `json:"created_at"`
}

type PollingStation struct {
	ID        string    `json:"id"`
	CenterID  string    `json:"center_id"`
	Number    int       `json:"number"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

// Lineage is the chain of geography units above a polling center.
type Lineage struct {
	CenterID         string `json:"center_id"`
	CenterName       string `json:"center_name"`
	NeighborhoodID   string `json:"neighborhood_id"`
	NeighborhoodName string `json:"neighborhood_name"`
	WardID           string `json:"ward_id"`
	WardName         string `json:"ward_name"`
	DistrictID       string `json:"district_id"`
	DistrictName     string `json:"district_name"`
	CommuneID        string `json:"commune_id"`
	CommuneName      string `json:"commune_name"`
	DepartmentID     string `json:"department_id"`
	DepartmentName   string `json:"department_name"`
}

type CenterWithLineage struct {
	Center   PollingCenter    `json:"center"`
	Lineage  Lineage          `json:"lineage"`
	Stations []PollingStation `json:"stations"`
}

type User struct {
	ID       string  `json:"id"`
	FullName string  `json:"full_name"`
	Email    string  `json:"email"`
	Role     string  `json:"role"`
	WardID   *string `json:"ward_id,omitempty"`
	CenterID *string `json:"center_id,omitempty"`
}

// Tally holds the figures read off a station's tally sheet.
type Tally struct {
	OpenedAt     *time.Time `json:"opened_at,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	Registered   int        `json:"registered_count"`
	Voted        int        `json:"voted_count"`
	ValidBallots int        `json:"valid_ballots"`
	Abstentions  int        `json:"abstentions"`
	NullBallots  int        `json:"null_ballots"`
	ProxyVotes   int        `json:"proxy_votes"`
	Derogations  int        `json:"derogations"`
}

type PartyVote struct {
	PartyID string `json:"party_id"`
	Votes   int    `json:"votes"`
}

type ResultEntry struct {
	ID           string `json:"id"`
	ElectionID   string `json:"election_id"`
	StationID    string `json:"station_id"`
	CenterID     string `json:"center_id"`
	SupervisorID string `json:"supervisor_id"`
	Tally
	TurnoutRate float64     `json:"turnout_rate"`
	Status      string      `json:"status"`
	ValidatedAt *time.Time  `json:"validated_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Votes       []PartyVote `json:"votes"`
}

type Compilation struct {
	ID          string     `json:"id"`
	ElectionID  string     `json:"election_id"`
	CenterID    string     `json:"center_id"`
	AgentID     string     `json:"agent_id"`
	PhotoURL    *string    `json:"photo_url,omitempty"`
	Status      string     `json:"status"`
	Observation *string    `json:"observation,omitempty"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// StationStatus reports whether a station of a compilation's center has an entry.
type StationStatus struct {
	StationID    string  `json:"station_id"`
	Number       int     `json:"number"`
	Label        string  `json:"label"`
	ResultID     *string `json:"result_id,omitempty"`
	ResultStatus *string `json:"result_status,omitempty"`
}

type CompilationDetail struct {
	Compilation Compilation     `json:"compilation"`
	Stations    []StationStatus `json:"stations"`
}

// Request types

type CreateElectionRequest struct {
	Type     string `json:"type"`
	VoteDate string `json:"vote_date"` // YYYY-MM-DD
}

type UpdateElectionRequest struct {
	Type     string `json:"type"`
	VoteDate string `json:"vote_date"`
}

type ElectionStatusRequest struct {
	Status string `json:"status"`
}

type CreatePartyRequest struct {
	ElectionID string  `json:"election_id"`
	Name       string  `json:"name"`
	Code       string  `json:"code"`
	LogoURL    *string `json:"logo_url,omitempty"`
}

type CreateCenterRequest struct {
	NeighborhoodID   string `json:"neighborhood_id"`
	Name             string `json:"name"`
	DeclaredStations int    `json:"declared_stations"`
}

type CreateStationRequest struct {
	CenterID string `json:"center_id"`
	Number   int    `json:"number"`
	Label    string `json:"label"`
}

type CreateResultRequest struct {
	ElectionID string `json:"election_id"`
	StationID  string `json:"station_id"`
	Tally
	Votes []PartyVote `json:"votes"`
}

type UpdateResultRequest struct {
	Tally
	Votes []PartyVote `json:"votes"`
}

type CreateCompilationRequest struct {
	ElectionID string `json:"election_id"`
	CenterID   string `json:"center_id"`
	PhotoURL   string `json:"photo_url"`
}

type PhotoRequest struct {
	PhotoURL string `json:"photo_url"`
}

type RejectCompilationRequest struct {
	Reason string `json:"reason"`
}

type ObservationRequest struct {
	Text string `json:"text"`
}

// Response types

type CreatedResponse struct {
	ID string `json:"id"`
}

type UploadResponse struct {
	URL  string `json:"url"`
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}
