// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package stats computes turnout and party results for an election.

Rollups group stations by center, ward, district or commune by walking the
geography tree upward, or run over the whole election (national):

	report, err := engine.Compute(ctx, who, electionID, stats.LevelCommune)

Only COMPLETEE and VALIDEE entries count toward totals. Rates are rounded to
two decimals and are 0 when the denominator is 0:

	turnout    = voted / registered × 100
	share      = party votes / valid ballots × 100
	completion = stations with an entry / stations × 100

Turnout is capped at 100 when a tally reports more voters than registered.

Rows are ordered by votes cast, and parties within a row by votes.
*/
package stats
