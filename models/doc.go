// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines domain, request, and response types for the API.

# Domain Types

Persisted records:

  - Election: a vote event with its lifecycle status
  - Party: a list contesting one election
  - PollingCenter, PollingStation: leaves of the geography tree
  - Lineage: neighborhood → ward → district → commune → department above a center
  - User: an operator with a role and a ward or center assignment
  - ResultEntry: tallies and party votes for one station in one election
  - Compilation: per-center proof photo and aggregate validation status

# Constants

Election status:

	ElectionPlanned    = "PLANIFIEE"
	ElectionInProgress = "EN_COURS"
	ElectionClosed     = "CLOTUREE"
	ElectionArchived   = "ARCHIVEE"

Result entry status:

	ResultSubmitted = "COMPLETEE"
	ResultValidated = "VALIDEE"
	ResultRejected  = "REJETEE"

Compilation status:

	CompilationInProgress = "EN_COURS"
	CompilationValidated  = "VALIDEE"
	CompilationRejected   = "REJETEE"

# Request Types

JSON bodies accepted by the handlers, e.g. CreateResultRequest embeds
Tally so its fields sit at the top level of the object:

	{"election_id": "...", "station_id": "...", "registered_count": 500,
	 "voted_count": 420, "valid_ballots": 400,
	 "votes": [{"party_id": "...", "votes": 180}]}
*/
package models
