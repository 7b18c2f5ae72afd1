// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/danielhkuo/municipal-results/audit"
	"github.com/danielhkuo/municipal-results/testutil"
)

func TestListAuditLogsNeedsReadableSink(t *testing.T) {
	h := NewAuditHandler(audit.LogSink{})
	w := call(h.ListAuditLogs, "GET", "/audit-logs", nil, nil)
	testutil.AssertStatus(t, w, http.StatusNotImplemented)
}

func TestListAuditLogs(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	sink := audit.NewSQLSink(conn)
	base := time.Date(2026, 1, 11, 18, 0, 0, 0, time.UTC)

	events := []audit.Event{
		{ID: "ev-1", At: base, ActorID: "sup-1", Action: "result.create", ResourceType: "result", ResourceID: "r-1", Status: 201},
		{ID: "ev-2", At: base.Add(time.Minute), ActorID: "adm-1", Action: "result.validate", ResourceType: "result", ResourceID: "r-1", Status: 200},
		{ID: "ev-3", At: base.Add(2 * time.Minute), ActorID: "adm-1", Action: "compilation.reject", ResourceType: "compilation", ResourceID: "c-1", Status: 200},
	}
	for _, ev := range events {
		if err := sink.Write(context.Background(), ev); err != nil {
			t.Fatalf("Failed to write event: %v", err)
		}
	}

	h := NewAuditHandler(sink)
	tests := []struct {
		name   string
		query  string
		status int
		ids    []string
	}{
		{"all newest first", "", http.StatusOK, []string{"ev-3", "ev-2", "ev-1"}},
		{"by resource", "?resource_type=result&resource_id=r-1", http.StatusOK, []string{"ev-2", "ev-1"}},
		{"by actor", "?actor_id=adm-1", http.StatusOK, []string{"ev-3", "ev-2"}},
		{"limit", "?limit=1", http.StatusOK, []string{"ev-3"}},
		{"bad limit", "?limit=abc", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(h.ListAuditLogs, "GET", "/audit-logs"+tt.query, nil, nil)
			testutil.AssertStatus(t, w, tt.status)
			if tt.status != http.StatusOK {
				return
			}
			var got []audit.Event
			testutil.AssertJSON(t, w, &got)
			if len(got) != len(tt.ids) {
				t.Fatalf("Expected %d events, got %d", len(tt.ids), len(got))
			}
			for i, id := range tt.ids {
				if got[i].ID != id {
					t.Errorf("Event %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}
}
