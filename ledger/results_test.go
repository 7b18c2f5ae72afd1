// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/danielhkuo/municipal-results/auth"
	"github.com/danielhkuo/municipal-results/db"
	"github.com/danielhkuo/municipal-results/models"
	"github.com/danielhkuo/municipal-results/testutil"
)

func setup(t *testing.T, stations int) (*Service, testutil.Fixture) {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	f := testutil.Seed(t, conn, stations)
	return New(conn, db.SQLite, nil), f
}

// tally returns a consistent tally for registered voters
func tally(registered, voted, valid int) models.Tally {
	return models.Tally{
		Registered:   registered,
		Voted:        voted,
		ValidBallots: valid,
		Abstentions:  registered - voted,
		NullBallots:  voted - valid,
	}
}

func votes(f testutil.Fixture, counts ...int) []models.PartyVote {
	out := make([]models.PartyVote, 0, len(counts))
	for i, c := range counts {
		out = append(out, models.PartyVote{PartyID: f.Parties[i], Votes: c})
	}
	return out
}

func submit(t *testing.T, s *Service, f testutil.Fixture, station int, counts ...int) models.ResultEntry {
	t.Helper()
	entry, err := s.CreateResult(context.Background(), f.Supervisor, ResultInput{
		ElectionID: f.ElectionID,
		StationID:  f.Stations[station],
		Tally:      tally(500, 420, 400),
		Votes:      votes(f, counts...),
	})
	if err != nil {
		t.Fatalf("CreateResult failed: %v", err)
	}
	return entry
}

func TestCreateResult(t *testing.T) {
	s, f := setup(t, 2)
	ctx := context.Background()

	entry := submit(t, s, f, 0, 180, 150, 70)

	if entry.Status != models.ResultSubmitted {
		t.Errorf("Expected status %s, got %s", models.ResultSubmitted, entry.Status)
	}
	if entry.TurnoutRate != 84 {
		t.Errorf("Expected turnout 84, got %v", entry.TurnoutRate)
	}
	if entry.ValidatedAt != nil {
		t.Error("Expected no validation timestamp")
	}
	if entry.CenterID != f.CenterID {
		t.Errorf("Expected center %s, got %s", f.CenterID, entry.CenterID)
	}
	if len(entry.Votes) != 3 || entry.Votes[0].Votes != 180 {
		t.Errorf("Expected 3 party votes sorted desc, got %+v", entry.Votes)
	}

	// Second entry for the same station is refused
	_, err := s.CreateResult(ctx, f.Supervisor, ResultInput{
		ElectionID: f.ElectionID,
		StationID:  f.Stations[0],
		Tally:      tally(500, 400, 390),
		Votes:      votes(f, 390),
	})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("Expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreateResultZeroRegistered(t *testing.T) {
	s, f := setup(t, 1)

	entry, err := s.CreateResult(context.Background(), f.Supervisor, ResultInput{
		ElectionID: f.ElectionID,
		StationID:  f.Stations[0],
		Tally:      models.Tally{},
	})
	if err != nil {
		t.Fatalf("CreateResult failed: %v", err)
	}
	if entry.TurnoutRate != 0 {
		t.Errorf("Expected turnout 0, got %v", entry.TurnoutRate)
	}
}

// Inconsistent tallies are accepted; review is the administrator's job.
func TestCreateResultInconsistentTallyAccepted(t *testing.T) {
	s, f := setup(t, 1)
	ctx := context.Background()

	entry, err := s.CreateResult(ctx, f.Supervisor, ResultInput{
		ElectionID: f.ElectionID,
		StationID:  f.Stations[0],
		Tally:      models.Tally{Registered: 520, Voted: 500, ValidBallots: 999},
		Votes:      votes(f, 999),
	})
	if err != nil {
		t.Fatalf("Expected inconsistent tally to be accepted, got %v", err)
	}

	if entry.TurnoutRate != 96.15 {
		t.Errorf("Expected turnout 96.15, got %v", entry.TurnoutRate)
	}

	if _, err := s.RejectResult(ctx, f.Admin, entry.ID); err != nil {
		t.Fatalf("RejectResult failed: %v", err)
	}
	if _, err := s.ValidateResult(ctx, f.Admin, entry.ID); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("Expected rejected entry to need correction first, got %v", err)
	}

	if _, err := s.UpdateResult(ctx, f.Supervisor, entry.ID, tally(520, 500, 480), votes(f, 300, 180)); err != nil {
		t.Fatalf("UpdateResult failed: %v", err)
	}
	if _, err := s.ValidateResult(ctx, f.Admin, entry.ID); err != nil {
		t.Fatalf("ValidateResult after correction failed: %v", err)
	}
}

func TestCreateResultValidation(t *testing.T) {
	s, f := setup(t, 1)
	ctx := context.Background()
	otherElection := testutil.CreateTestElection(t, s.db, models.ElectionInProgress)
	foreignParty := testutil.AddTestParty(t, s.db, otherElection, "X")

	tests := []struct {
		name string
		in   ResultInput
		want error
	}{
		{
			name: "missing election",
			in:   ResultInput{ElectionID: "nope", StationID: f.Stations[0]},
			want: ErrNotFound,
		},
		{
			name: "missing station",
			in:   ResultInput{ElectionID: f.ElectionID, StationID: "nope"},
			want: ErrNotFound,
		},
		{
			name: "negative count",
			in:   ResultInput{ElectionID: f.ElectionID, StationID: f.Stations[0], Tally: models.Tally{Voted: -1}},
			want: ErrInvalidInput,
		},
		{
			name: "party from another election",
			in: ResultInput{ElectionID: f.ElectionID, StationID: f.Stations[0],
				Votes: []models.PartyVote{{PartyID: foreignParty, Votes: 3}}},
			want: ErrInvalidInput,
		},
		{
			name: "duplicate party",
			in: ResultInput{ElectionID: f.ElectionID, StationID: f.Stations[0],
				Votes: []models.PartyVote{{PartyID: f.Parties[0], Votes: 3}, {PartyID: f.Parties[0], Votes: 4}}},
			want: ErrInvalidInput,
		},
		{
			name: "station outside ward",
			in:   ResultInput{ElectionID: f.ElectionID, StationID: f.OtherStationID},
			want: ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateResult(ctx, f.Supervisor, tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := s.CreateResult(ctx, f.Admin, ResultInput{ElectionID: f.ElectionID, StationID: f.Stations[0]}); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected admin create to be forbidden, got %v", err)
	}
}

func TestUpdateResultOnlyWhenRejected(t *testing.T) {
	s, f := setup(t, 2)
	ctx := context.Background()
	entry := submit(t, s, f, 0, 200, 200)

	// Submitted entries wait for review
	_, err := s.UpdateResult(ctx, f.Supervisor, entry.ID, tally(500, 420, 400), votes(f, 400))
	if !errors.Is(err, ErrNotRejectedCannotEdit) {
		t.Errorf("Expected ErrNotRejectedCannotEdit, got %v", err)
	}

	if _, err := s.RejectResult(ctx, f.Admin, entry.ID); err != nil {
		t.Fatalf("RejectResult failed: %v", err)
	}

	// Only the submitting supervisor may correct
	_, err = s.UpdateResult(ctx, f.OtherSupervisor, entry.ID, tally(500, 420, 400), votes(f, 400))
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden for other supervisor, got %v", err)
	}

	updated, err := s.UpdateResult(ctx, f.Supervisor, entry.ID, tally(600, 300, 290), votes(f, 100, 190))
	if err != nil {
		t.Fatalf("UpdateResult failed: %v", err)
	}
	if updated.Status != models.ResultSubmitted {
		t.Errorf("Expected status %s, got %s", models.ResultSubmitted, updated.Status)
	}
	if updated.ValidatedAt != nil {
		t.Error("Expected cleared validation timestamp")
	}
	if updated.TurnoutRate != 50 {
		t.Errorf("Expected recomputed turnout 50, got %v", updated.TurnoutRate)
	}
	// Vote set is replaced, not merged
	if len(updated.Votes) != 2 || updated.Votes[0].PartyID != f.Parties[1] || updated.Votes[0].Votes != 190 {
		t.Errorf("Expected replaced votes, got %+v", updated.Votes)
	}

	// Re-editing a submitted entry is refused
	_, err = s.UpdateResult(ctx, f.Supervisor, entry.ID, tally(600, 300, 290), votes(f, 290))
	if !errors.Is(err, ErrNotRejectedCannotEdit) {
		t.Errorf("Expected ErrNotRejectedCannotEdit on re-edit, got %v", err)
	}

	if _, err := s.ValidateResult(ctx, f.Admin, entry.ID); err != nil {
		t.Fatalf("ValidateResult failed: %v", err)
	}
	_, err = s.UpdateResult(ctx, f.Supervisor, entry.ID, tally(600, 300, 290), votes(f, 290))
	if !errors.Is(err, ErrValidatedImmutable) {
		t.Errorf("Expected ErrValidatedImmutable, got %v", err)
	}
}

func TestValidateResult(t *testing.T) {
	s, f := setup(t, 2)
	ctx := context.Background()

	empty, err := s.CreateResult(ctx, f.Supervisor, ResultInput{
		ElectionID: f.ElectionID,
		StationID:  f.Stations[1],
		Tally:      tally(100, 0, 0),
	})
	if err != nil {
		t.Fatalf("CreateResult failed: %v", err)
	}
	if _, err := s.ValidateResult(ctx, f.Admin, empty.ID); !errors.Is(err, ErrNoPartyResults) {
		t.Errorf("Expected ErrNoPartyResults, got %v", err)
	}

	entry := submit(t, s, f, 0, 180, 150, 70)
	if _, err := s.ValidateResult(ctx, f.Supervisor, entry.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected supervisor validate to be forbidden, got %v", err)
	}

	validated, err := s.ValidateResult(ctx, f.Admin, entry.ID)
	if err != nil {
		t.Fatalf("ValidateResult failed: %v", err)
	}
	if validated.Status != models.ResultValidated || validated.ValidatedAt == nil {
		t.Errorf("Expected validated entry with timestamp, got %s %v", validated.Status, validated.ValidatedAt)
	}

	if _, err := s.ValidateResult(ctx, f.Admin, entry.ID); !errors.Is(err, ErrAlreadyValidated) {
		t.Errorf("Expected ErrAlreadyValidated, got %v", err)
	}
	if _, err := s.RejectResult(ctx, f.Admin, entry.ID); !errors.Is(err, ErrAlreadyValidated) {
		t.Errorf("Expected ErrAlreadyValidated on reject, got %v", err)
	}
}

func TestRejectResult(t *testing.T) {
	s, f := setup(t, 1)
	ctx := context.Background()
	entry := submit(t, s, f, 0, 400)

	rejected, err := s.RejectResult(ctx, f.Admin, entry.ID)
	if err != nil {
		t.Fatalf("RejectResult failed: %v", err)
	}
	if rejected.Status != models.ResultRejected {
		t.Errorf("Expected status %s, got %s", models.ResultRejected, rejected.Status)
	}

	if _, err := s.RejectResult(ctx, f.Admin, entry.ID); !errors.Is(err, ErrAlreadyRejected) {
		t.Errorf("Expected ErrAlreadyRejected, got %v", err)
	}
	if _, err := s.RejectResult(ctx, f.Admin, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeleteResult(t *testing.T) {
	s, f := setup(t, 2)
	ctx := context.Background()

	entry := submit(t, s, f, 0, 400)
	if _, err := s.ValidateResult(ctx, f.Admin, entry.ID); err != nil {
		t.Fatalf("ValidateResult failed: %v", err)
	}
	if _, err := s.DeleteResult(ctx, f.Admin, entry.ID); !errors.Is(err, ErrCannotDeleteValidated) {
		t.Errorf("Expected ErrCannotDeleteValidated, got %v", err)
	}

	other := submit(t, s, f, 1, 400)
	if _, err := s.DeleteResult(ctx, f.OtherSupervisor, other.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden for out-of-ward supervisor, got %v", err)
	}
	if _, err := s.DeleteResult(ctx, f.Supervisor, other.ID); err != nil {
		t.Fatalf("DeleteResult failed: %v", err)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM party_vote WHERE result_id = $1`, other.ID).Scan(&n); err != nil {
		t.Fatalf("Failed to count votes: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected party votes deleted with entry, got %d", n)
	}
	if _, err := s.GetResult(ctx, f.Admin, other.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestListResultsScoping(t *testing.T) {
	s, f := setup(t, 2)
	ctx := context.Background()

	submit(t, s, f, 0, 400)
	submit(t, s, f, 1, 400)
	if _, err := s.CreateResult(ctx, f.OtherSupervisor, ResultInput{
		ElectionID: f.ElectionID,
		StationID:  f.OtherStationID,
		Tally:      tally(100, 50, 50),
		Votes:      votes(f, 50),
	}); err != nil {
		t.Fatalf("CreateResult in other ward failed: %v", err)
	}

	tests := []struct {
		name   string
		who    auth.Identity
		filter ResultFilter
		want   int
	}{
		{"admin sees all", f.Admin, ResultFilter{ElectionID: f.ElectionID}, 3},
		{"supervisor sees own ward", f.Supervisor, ResultFilter{ElectionID: f.ElectionID}, 2},
		{"other supervisor sees own ward", f.OtherSupervisor, ResultFilter{}, 1},
		{"agent sees own center", f.Agent, ResultFilter{}, 2},
		{"status filter", f.Admin, ResultFilter{Status: "validee"}, 0},
		{"center filter", f.Admin, ResultFilter{CenterID: f.OtherCenterID}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := s.ListResults(ctx, tt.who, tt.filter)
			if err != nil {
				t.Fatalf("ListResults failed: %v", err)
			}
			if len(entries) != tt.want {
				t.Errorf("Expected %d results, got %d", tt.want, len(entries))
			}
		})
	}

	entries, err := s.ListResults(ctx, f.Admin, ResultFilter{CenterID: f.OtherCenterID})
	if err != nil || len(entries) != 1 {
		t.Fatalf("Expected one entry in other center, got %d (%v)", len(entries), err)
	}
	if _, err := s.GetResult(ctx, f.Supervisor, entries[0].ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden reading another ward's entry, got %v", err)
	}
}

func TestTurnout(t *testing.T) {
	tests := []struct {
		voted, registered int
		want              float64
	}{
		{420, 500, 84},
		{0, 0, 0},
		{10, 0, 0},
		{2, 3, 66.67},
		{100, 100, 100},
		{150, 100, 100},
	}

	for _, tt := range tests {
		if got := Turnout(tt.voted, tt.registered); got != tt.want {
			t.Errorf("Turnout(%d, %d) = %v, want %v", tt.voted, tt.registered, got, tt.want)
		}
	}
}

func TestCreateResultTurnoutCapped(t *testing.T) {
	s, f := setup(t, 1)

	entry, err := s.CreateResult(context.Background(), f.Supervisor, ResultInput{
		ElectionID: f.ElectionID,
		StationID:  f.Stations[0],
		Tally:      models.Tally{Registered: 100, Voted: 150, ValidBallots: 150},
		Votes:      votes(f, 150),
	})
	if err != nil {
		t.Fatalf("CreateResult failed: %v", err)
	}
	if entry.TurnoutRate != 100 {
		t.Errorf("Expected turnout capped at 100, got %v", entry.TurnoutRate)
	}
}
