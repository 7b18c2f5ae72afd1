// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/municipal-results/auth"
	"github.com/danielhkuo/municipal-results/testutil"
)

// memorySink keeps events in a slice, optionally failing every write.
type memorySink struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (s *memorySink) Write(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *memorySink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestRecorder(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink)

	for range 20 {
		rec.Record(Event{ID: auth.NewID(), Action: "result.create"})
	}
	rec.Flush()

	if got := len(sink.all()); got != 20 {
		t.Errorf("Expected 20 events, got %d", got)
	}

	rec.Close()
	rec.Record(Event{ID: auth.NewID(), Action: "late"})
	if got := len(sink.all()); got != 20 {
		t.Errorf("Expected events after Close to be dropped, got %d", got)
	}
}

func TestRecorderSwallowsSinkFailure(t *testing.T) {
	rec := NewRecorder(&memorySink{fail: true})
	rec.Record(Event{ID: auth.NewID(), Action: "compilation.validate"})
	rec.Close()
}

func TestSQLSink(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	sink := NewSQLSink(conn)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{ID: "1", At: base, Action: "result.create", ResourceType: "result", ResourceID: "r1", ActorID: "sup", Status: 201, After: []byte(`{"status":"COMPLETEE"}`)},
		{ID: "2", At: base.Add(time.Minute), Action: "result.validate", ResourceType: "result", ResourceID: "r1", ActorID: "adm", Status: 200},
		{ID: "3", At: base.Add(2 * time.Minute), Action: "compilation.create", ResourceType: "compilation", ResourceID: "c1", ActorID: "agt", Status: 201},
	}
	for _, ev := range events {
		if err := sink.Write(ctx, ev); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all newest first", Filter{}, []string{"3", "2", "1"}},
		{"by resource type", Filter{ResourceType: "result"}, []string{"2", "1"}},
		{"by resource", Filter{ResourceType: "compilation", ResourceID: "c1"}, []string{"3"}},
		{"by actor", Filter{ActorID: "adm"}, []string{"2"}},
		{"limited", Filter{Limit: 1}, []string{"3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sink.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d events, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("Event %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}

	got, err := sink.List(ctx, Filter{ActorID: "sup"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if string(got[0].After) != `{"status":"COMPLETEE"}` || got[0].Before != nil {
		t.Errorf("Snapshots not preserved: before=%s after=%s", got[0].Before, got[0].After)
	}
}

func TestFilterLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultLimit},
		{-5, DefaultLimit},
		{50, 50},
		{1000, 1000},
		{5000, DefaultLimit},
	}
	for _, tt := range tests {
		if got := (Filter{Limit: tt.in}).limit(); got != tt.want {
			t.Errorf("limit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestWrap(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink)
	who := auth.Identity{UserID: "admin-1", Role: auth.RoleAdmin}

	handler := Wrap(rec, "result.validate", "result", func(w http.ResponseWriter, r *http.Request) {
		Annotate(r.Context(), "", map[string]string{"status": "COMPLETEE"}, map[string]string{"status": "VALIDEE"})
		w.WriteHeader(http.StatusOK)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /resultats-saisis/{id}/valider", handler)

	req := httptest.NewRequest("POST", "/resultats-saisis/r-42/valider", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), who))
	req.Header.Set("User-Agent", "field-app/1.0")
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	mux.ServeHTTP(httptest.NewRecorder(), req)
	rec.Close()

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Action != "result.validate" || ev.ResourceType != "result" || ev.ResourceID != "r-42" {
		t.Errorf("Unexpected event %+v", ev)
	}
	if ev.ActorID != "admin-1" || ev.ActorRole != auth.RoleAdmin {
		t.Errorf("Expected actor admin-1, got %s/%s", ev.ActorID, ev.ActorRole)
	}
	if ev.ClientIP != "203.0.113.9" || ev.UserAgent != "field-app/1.0" || ev.Status != http.StatusOK {
		t.Errorf("Unexpected request details %+v", ev)
	}
	if string(ev.Before) != `{"status":"COMPLETEE"}` || string(ev.After) != `{"status":"VALIDEE"}` {
		t.Errorf("Unexpected snapshots %s -> %s", ev.Before, ev.After)
	}
}

func TestWrapRecordsFailures(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink)

	handler := Wrap(rec, "compilation.create", "compilation", func(w http.ResponseWriter, r *http.Request) {
		Annotate(r.Context(), "c-1", nil, nil)
		w.WriteHeader(http.StatusConflict)
	})
	handler(httptest.NewRecorder(), httptest.NewRequest("POST", "/compilations", nil))
	rec.Close()

	events := sink.all()
	if len(events) != 1 || events[0].Status != http.StatusConflict || events[0].ResourceID != "c-1" {
		t.Errorf("Expected one 409 event for c-1, got %+v", events)
	}
	if events[0].ActorID != "" {
		t.Errorf("Expected anonymous actor, got %s", events[0].ActorID)
	}
}

func TestAnnotateOutsideWrap(t *testing.T) {
	Annotate(context.Background(), "x", 1, 2)
}
