// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/danielhkuo/municipal-results/auth"
	"github.com/danielhkuo/municipal-results/middleware"
)

type annotation struct {
	mu         sync.Mutex
	resourceID string
	before     json.RawMessage
	after      json.RawMessage
}

type annotationKey struct{}

// Annotate attaches the affected resource and its snapshots to the event Wrap
// will record for this request. before or after may be nil. Outside of Wrap it does nothing.
func Annotate(ctx context.Context, resourceID string, before, after any) {
	a, ok := ctx.Value(annotationKey{}).(*annotation)
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if resourceID != "" {
		a.resourceID = resourceID
	}
	if before != nil {
		a.before = snapshot(before)
	}
	if after != nil {
		a.after = snapshot(after)
	}
}

func snapshot(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Warn("audit snapshot failed", "error", err)
		return nil
	}
	return b
}

// Wrap records one Event per request handled by next, whatever its outcome.
// A path value named "id" is used as the resource id unless the handler annotates one.
func Wrap(rec *Recorder, action, resourceType string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		a := &annotation{resourceID: r.PathValue("id")}
		sw := middleware.NewStatusWriter(w)

		next(sw, r.WithContext(context.WithValue(r.Context(), annotationKey{}, a)))

		ev := Event{
			ID:           auth.NewID(),
			At:           start.UTC(),
			Action:       action,
			ResourceType: resourceType,
			ClientIP:     middleware.GetClientIP(r),
			UserAgent:    r.UserAgent(),
			Status:       sw.Status(),
			DurationMS:   time.Since(start).Milliseconds(),
		}
		if id, ok := auth.FromContext(r.Context()); ok {
			ev.ActorID, ev.ActorRole = id.UserID, id.Role
		}
		a.mu.Lock()
		ev.ResourceID, ev.Before, ev.After = a.resourceID, a.before, a.after
		a.mu.Unlock()

		rec.Record(ev)
	}
}
