// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package stats

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/danielhkuo/municipal-results/auth"
	"github.com/danielhkuo/municipal-results/db"
	"github.com/danielhkuo/municipal-results/ledger"
	"github.com/danielhkuo/municipal-results/models"
)

// Level is a geographic grouping of the rollup.
type Level string

const (
	LevelCenter   Level = "center"
	LevelWard     Level = "ward"
	LevelDistrict Level = "district"
	LevelCommune  Level = "commune"
	LevelNational Level = "national"
)

// groupings maps each level to the id and name columns it groups by.
var groupings = map[Level][2]string{
	LevelCenter:   {"pc.id", "pc.name"},
	LevelWard:     {"w.id", "w.name"},
	LevelDistrict: {"d.id", "d.name"},
	LevelCommune:  {"cm.id", "cm.name"},
}

// ParseLevel accepts the level names used in routes, singular or plural.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "center", "centers", "centre", "centres":
		return LevelCenter, true
	case "ward", "wards":
		return LevelWard, true
	case "district", "districts":
		return LevelDistrict, true
	case "commune", "communes":
		return LevelCommune, true
	case "", "national":
		return LevelNational, true
	}
	return "", false
}

type PartyResult struct {
	PartyID string  `json:"party_id"`
	Name    string  `json:"name"`
	Code    string  `json:"code"`
	Votes   int     `json:"votes"`
	Share   float64 `json:"share"`
}

// Row is the rollup of one geographic unit.
type Row struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	StationsExpected int           `json:"stations_expected"`
	StationsReported int           `json:"stations_reported"`
	CompletionRate   float64       `json:"completion_rate"`
	Registered       int           `json:"registered_count"`
	Voted            int           `json:"voted_count"`
	ValidBallots     int           `json:"valid_ballots"`
	NullBallots      int           `json:"null_ballots"`
	TurnoutRate      float64       `json:"turnout_rate"`
	Parties          []PartyResult `json:"parties"`
}

// Report is a rollup of one election at one level.
type Report struct {
	ElectionID string    `json:"election_id"`
	Level      Level     `json:"level"`
	ComputedAt time.Time `json:"computed_at"`
	Rows       []Row     `json:"rows"`
}

// Engine computes rollups on demand. It never writes.
type Engine struct {
	db *sql.DB
}

func New(conn *sql.DB) *Engine {
	return &Engine{db: conn}
}

const geography = `
	FROM polling_station ps
	JOIN polling_center pc ON pc.id = ps.center_id
	JOIN neighborhood n ON n.id = pc.neighborhood_id
	JOIN ward w ON w.id = n.ward_id
	JOIN district d ON d.id = w.district_id
	JOIN commune cm ON cm.id = d.commune_id`

// countable lists the entry statuses that enter the totals. Rejected
// entries wait for correction and are left out.
var countable = []string{models.ResultSubmitted, models.ResultValidated}

// Compute returns the rollup of electionID at level, limited to what who may see.
// Registered and voted counts, and party votes, come from COMPLETEE and VALIDEE
// entries; completion counts any station with an entry.
func (e *Engine) Compute(ctx context.Context, who auth.Identity, electionID string, level Level) (Report, error) {
	var found string
	err := e.db.QueryRowContext(ctx, `SELECT id FROM election WHERE id = $1`, electionID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, &ledger.Error{Code: ledger.CodeNotFound, Message: fmt.Sprintf("election %s not found", electionID)}
	}
	if err != nil {
		return Report{}, fmt.Errorf("failed to query election: %w", err)
	}

	idCol, nameCol := "'national'", "'National'"
	groupBy := ""
	if level != LevelNational {
		g, ok := groupings[level]
		if !ok {
			return Report{}, &ledger.Error{Code: ledger.CodeInvalidInput, Message: fmt.Sprintf("unknown level %q", level)}
		}
		idCol, nameCol = g[0], g[1]
		groupBy = " GROUP BY " + idCol + ", " + nameCol
	}

	rows, err := e.tallies(ctx, who, electionID, idCol, nameCol, groupBy)
	if err != nil {
		return Report{}, err
	}
	if err := e.partyVotes(ctx, who, electionID, level, idCol, rows); err != nil {
		return Report{}, err
	}

	report := Report{ElectionID: electionID, Level: level, ComputedAt: time.Now().UTC(), Rows: make([]Row, 0, len(rows))}
	for _, r := range rows {
		report.Rows = append(report.Rows, *r)
	}
	slices.SortFunc(report.Rows, func(a, b Row) int {
		return cmp.Or(cmp.Compare(b.Voted, a.Voted), cmp.Compare(a.Name, b.Name))
	})
	return report, nil
}

// National returns the single-row rollup of an election.
func (e *Engine) National(ctx context.Context, who auth.Identity, electionID string) (Row, error) {
	report, err := e.Compute(ctx, who, electionID, LevelNational)
	if err != nil {
		return Row{}, err
	}
	return report.Rows[0], nil
}

// scope restricts rows to the caller's ward or center.
func scope(w *db.Where, who auth.Identity) {
	switch who.Role {
	case auth.RoleSupervisor:
		w.Add("n.ward_id = ?", who.WardID)
	case auth.RoleAgent:
		w.Add("pc.id = ?", who.CenterID)
	}
}

func (e *Engine) tallies(ctx context.Context, who auth.Identity, electionID, idCol, nameCol, groupBy string) (map[string]*Row, error) {
	var w db.Where
	in := "r.status IN (" + w.Next(countable[0]) + ", " + w.Next(countable[1]) + ")"
	election := w.Next(electionID)
	scope(&w, who)

	result, err := e.db.QueryContext(ctx, `
		SELECT `+idCol+`, `+nameCol+`,
		       COUNT(ps.id), COUNT(r.id),
		       COALESCE(SUM(CASE WHEN `+in+` THEN r.registered_count ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN `+in+` THEN r.voted_count ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN `+in+` THEN r.valid_ballots ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN `+in+` THEN r.null_ballots ELSE 0 END), 0)
		`+geography+`
		LEFT JOIN result_entry r ON r.station_id = ps.id AND r.election_id = `+election+
		w.String()+groupBy, w.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tallies: %w", err)
	}
	defer result.Close()

	rows := map[string]*Row{}
	for result.Next() {
		r := &Row{Parties: []PartyResult{}}
		if err := result.Scan(&r.ID, &r.Name, &r.StationsExpected, &r.StationsReported,
			&r.Registered, &r.Voted, &r.ValidBallots, &r.NullBallots); err != nil {
			return nil, fmt.Errorf("failed to scan tallies: %w", err)
		}
		r.CompletionRate = ledger.Percent(r.StationsReported, r.StationsExpected)
		r.TurnoutRate = ledger.Turnout(r.Voted, r.Registered)
		rows[r.ID] = r
	}
	return rows, result.Err()
}

func (e *Engine) partyVotes(ctx context.Context, who auth.Identity, electionID string, level Level, idCol string, rows map[string]*Row) error {
	var w db.Where
	in := "r.status IN (" + w.Next(countable[0]) + ", " + w.Next(countable[1]) + ")"
	w.Add("r.election_id = ?", electionID)
	scope(&w, who)

	groupBy := " GROUP BY p.id, p.name, p.code"
	if level != LevelNational {
		groupBy = " GROUP BY " + idCol + ", p.id, p.name, p.code"
	}

	result, err := e.db.QueryContext(ctx, `
		SELECT `+idCol+`, p.id, p.name, p.code, COALESCE(SUM(pv.votes), 0)
		`+geography+`
		JOIN result_entry r ON r.station_id = ps.id AND `+in+`
		JOIN party_vote pv ON pv.result_id = r.id
		JOIN party p ON p.id = pv.party_id`+w.String()+groupBy, w.Args()...)
	if err != nil {
		return fmt.Errorf("failed to query party votes: %w", err)
	}
	defer result.Close()

	for result.Next() {
		var key string
		var pr PartyResult
		if err := result.Scan(&key, &pr.PartyID, &pr.Name, &pr.Code, &pr.Votes); err != nil {
			return fmt.Errorf("failed to scan party votes: %w", err)
		}
		if r, ok := rows[key]; ok {
			r.Parties = append(r.Parties, pr)
		}
	}
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to iterate party votes: %w", err)
	}
	result.Close()

	parties, err := e.parties(ctx, electionID)
	if err != nil {
		return err
	}
	for _, r := range rows {
		r.Parties = complete(r.Parties, parties)
		for i := range r.Parties {
			r.Parties[i].Share = ledger.Percent(r.Parties[i].Votes, r.ValidBallots)
		}
		slices.SortFunc(r.Parties, func(a, b PartyResult) int {
			return cmp.Or(cmp.Compare(b.Votes, a.Votes), cmp.Compare(a.Code, b.Code))
		})
	}
	return nil
}

func (e *Engine) parties(ctx context.Context, electionID string) ([]PartyResult, error) {
	rows, err := e.db.QueryContext(ctx, `SELECT id, name, code FROM party WHERE election_id = $1`, electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query parties: %w", err)
	}
	defer rows.Close()

	var out []PartyResult
	for rows.Next() {
		var p PartyResult
		if err := rows.Scan(&p.PartyID, &p.Name, &p.Code); err != nil {
			return nil, fmt.Errorf("failed to scan party: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// complete adds a zero-vote line for every party missing from got.
func complete(got, all []PartyResult) []PartyResult {
	for _, p := range all {
		if !slices.ContainsFunc(got, func(g PartyResult) bool { return g.PartyID == p.PartyID }) {
			got = append(got, p)
		}
	}
	return got
}
