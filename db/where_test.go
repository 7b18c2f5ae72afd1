// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import "testing"

func TestWhere(t *testing.T) {
	var w Where
	if w.String() != "" {
		t.Errorf("empty Where should render nothing, got %q", w.String())
	}

	w.Add("a = ?", 1)
	w.AddIf("b = ?", "")
	w.AddIf("c = ?", "x")
	limit := w.Next(10)

	if got, want := w.String(), " WHERE a = $1 AND c = $2"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if limit != "$3" {
		t.Errorf("Next() = %q, want $3", limit)
	}
	if args := w.Args(); len(args) != 3 || args[1] != "x" || args[2] != 10 {
		t.Errorf("Args() = %v", args)
	}
}

func TestForUpdate(t *testing.T) {
	if SQLite.ForUpdate() != "" {
		t.Error("SQLite should not lock rows")
	}
	if Postgres.ForUpdate() != " FOR UPDATE" {
		t.Error("Postgres should lock rows")
	}
}
