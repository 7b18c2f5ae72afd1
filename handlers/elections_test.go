// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"testing"

	"github.com/danielhkuo/municipal-results/models"
	"github.com/danielhkuo/municipal-results/testutil"
)

func TestElectionHandlers(t *testing.T) {
	e := newEnv(t, 1)
	h := NewElectionHandler(e.svc)

	w := call(h.CreateElection, "POST", "/elections", models.CreateElectionRequest{
		Type: models.ElectionMunicipal, VoteDate: "2026-01-11",
	}, &e.Admin)
	testutil.AssertStatus(t, w, http.StatusForbidden)

	w = call(h.CreateElection, "POST", "/elections", models.CreateElectionRequest{
		Type: "PRESIDENTIELLE", VoteDate: "2026-01-11",
	}, &e.SuperAdmin)
	testutil.AssertStatus(t, w, http.StatusBadRequest)
	testutil.AssertErrorCode(t, w, "INVALID_INPUT")

	w = call(h.CreateElection, "POST", "/elections", models.CreateElectionRequest{
		Type: models.ElectionMunicipal, VoteDate: "2026-01-11",
	}, &e.SuperAdmin)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var election models.Election
	testutil.AssertJSON(t, w, &election)
	if election.Status != models.ElectionPlanned {
		t.Fatalf("Expected new election to be PLANIFIEE, got %s", election.Status)
	}

	w = call(h.ListElections, "GET", "/elections?status=PLANIFIEE", nil, &e.Agent)
	testutil.AssertStatus(t, w, http.StatusOK)
	var list []models.Election
	testutil.AssertJSON(t, w, &list)
	if len(list) != 1 || list[0].ID != election.ID {
		t.Errorf("Expected only the planned election, got %+v", list)
	}

	transitions := []struct {
		name   string
		to     string
		status int
		code   string
	}{
		{"missing status", "", http.StatusBadRequest, "INVALID_INPUT"},
		{"planned to closed", models.ElectionClosed, http.StatusConflict, "INVALID_STATUS_TRANSITION"},
		{"start", models.ElectionInProgress, http.StatusOK, ""},
		{"back to planned", models.ElectionPlanned, http.StatusConflict, "INVALID_STATUS_TRANSITION"},
		{"close", models.ElectionClosed, http.StatusOK, ""},
	}
	for _, tt := range transitions {
		t.Run(tt.name, func(t *testing.T) {
			w := call(h.TransitionElection, "POST", "/elections/"+election.ID+"/status",
				models.ElectionStatusRequest{Status: tt.to}, &e.SuperAdmin, "id", election.ID)
			testutil.AssertStatus(t, w, tt.status)
			if tt.code != "" {
				testutil.AssertErrorCode(t, w, tt.code)
			}
		})
	}

	w = call(h.GetElection, "GET", "/elections/"+election.ID, nil, &e.Agent, "id", election.ID)
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSON(t, w, &election)
	if election.Status != models.ElectionClosed {
		t.Errorf("Expected CLOTUREE, got %s", election.Status)
	}

	w = call(h.DeleteElection, "DELETE", "/elections/"+election.ID, nil, &e.SuperAdmin, "id", election.ID)
	testutil.AssertStatus(t, w, http.StatusNoContent)

	w = call(h.GetElection, "GET", "/elections/"+election.ID, nil, &e.Agent, "id", election.ID)
	testutil.AssertStatus(t, w, http.StatusNotFound)
	testutil.AssertErrorCode(t, w, "NOT_FOUND")
}

func TestActiveElectionIsFrozen(t *testing.T) {
	e := newEnv(t, 1)
	h := NewElectionHandler(e.svc)

	w := call(h.UpdateElection, "PUT", "/elections/"+e.ElectionID, models.UpdateElectionRequest{
		Type: models.ElectionLegislative, VoteDate: "2026-02-01",
	}, &e.SuperAdmin, "id", e.ElectionID)
	testutil.AssertStatus(t, w, http.StatusConflict)
	testutil.AssertErrorCode(t, w, "ACTIVE_NO_MODIFICATION")

	w = call(h.DeleteElection, "DELETE", "/elections/"+e.ElectionID, nil, &e.SuperAdmin, "id", e.ElectionID)
	testutil.AssertStatus(t, w, http.StatusConflict)
	testutil.AssertErrorCode(t, w, "ACTIVE_NO_DELETION")
}

func TestPartyHandlers(t *testing.T) {
	e := newEnv(t, 1)
	h := NewElectionHandler(e.svc)
	results := NewResultHandler(e.svc)

	w := call(h.CreateParty, "POST", "/partis", models.CreatePartyRequest{
		ElectionID: e.ElectionID, Name: "Union Progressiste", Code: "UP",
	}, &e.Admin)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var party models.Party
	testutil.AssertJSON(t, w, &party)

	w = call(h.CreateParty, "POST", "/partis", models.CreatePartyRequest{
		ElectionID: e.ElectionID, Name: "Autre", Code: "UP",
	}, &e.Admin)
	testutil.AssertStatus(t, w, http.StatusConflict)
	testutil.AssertErrorCode(t, w, "ALREADY_EXISTS")

	w = call(h.ListParties, "GET", "/elections/"+e.ElectionID+"/partis", nil, &e.Agent, "id", e.ElectionID)
	testutil.AssertStatus(t, w, http.StatusOK)
	var parties []models.Party
	testutil.AssertJSON(t, w, &parties)
	if len(parties) != 4 {
		t.Errorf("Expected 4 parties, got %d", len(parties))
	}

	// A party with recorded votes stays
	w = call(results.CreateResult, "POST", "/resultats-saisis", e.resultBody(e.Stations[0], 10), &e.Supervisor)
	testutil.AssertStatus(t, w, http.StatusCreated)
	w = call(h.DeleteParty, "DELETE", "/partis/"+e.Parties[0], nil, &e.Admin, "id", e.Parties[0])
	testutil.AssertStatus(t, w, http.StatusConflict)
	testutil.AssertErrorCode(t, w, "PARTY_IN_USE")

	w = call(h.DeleteParty, "DELETE", "/partis/"+party.ID, nil, &e.Admin, "id", party.ID)
	testutil.AssertStatus(t, w, http.StatusNoContent)
}
