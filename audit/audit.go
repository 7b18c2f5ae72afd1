// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/danielhkuo/municipal-results/metrics"
)

// Event records one mutating request: who did what to which resource.
type Event struct {
	ID           string          `json:"id" bson:"_id"`
	At           time.Time       `json:"at" bson:"at"`
	ActorID      string          `json:"actor_id,omitempty" bson:"actorId,omitempty"`
	ActorRole    string          `json:"actor_role,omitempty" bson:"actorRole,omitempty"`
	Action       string          `json:"action" bson:"action"`
	ResourceType string          `json:"resource_type" bson:"resourceType"`
	ResourceID   string          `json:"resource_id,omitempty" bson:"resourceId,omitempty"`
	Before       json.RawMessage `json:"before,omitempty" bson:"-"`
	After        json.RawMessage `json:"after,omitempty" bson:"-"`
	ClientIP     string          `json:"client_ip,omitempty" bson:"clientIp,omitempty"`
	UserAgent    string          `json:"user_agent,omitempty" bson:"userAgent,omitempty"`
	Status       int             `json:"status" bson:"status"`
	DurationMS   int64           `json:"duration_ms" bson:"durationMs"`
}

// Sink stores events. Implementations must be safe for concurrent use.
type Sink interface {
	Write(ctx context.Context, ev Event) error
}

// Filter narrows List. Zero values do not filter.
type Filter struct {
	ResourceType string
	ResourceID   string
	ActorID      string
	Limit        int
}

// DefaultLimit caps List when Filter.Limit is 0.
const DefaultLimit = 100

func (f Filter) limit() int {
	if f.Limit <= 0 || f.Limit > 1000 {
		return DefaultLimit
	}
	return f.Limit
}

// Lister is a Sink that can read its events back, newest first.
type Lister interface {
	Sink
	List(ctx context.Context, f Filter) ([]Event, error)
}

// LogSink writes events to the default slog logger.
type LogSink struct{}

func (LogSink) Write(_ context.Context, ev Event) error {
	slog.Info("audit",
		"action", ev.Action,
		"resource_type", ev.ResourceType,
		"resource_id", ev.ResourceID,
		"actor_id", ev.ActorID,
		"status", ev.Status,
		"duration_ms", ev.DurationMS,
	)
	return nil
}

// Recorder hands events to a sink in the background. A failed write is
// logged and counted, never returned to the request that produced it.
type Recorder struct {
	sink    Sink
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink, timeout: 5 * time.Second}
}

// Sink returns the underlying sink, e.g. to check whether it is a Lister.
func (r *Recorder) Sink() Sink {
	return r.sink
}

// Record queues ev for writing. Events recorded after Close are dropped.
func (r *Recorder) Record(ev Event) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		slog.Warn("audit event dropped after shutdown", "action", ev.Action)
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.sink.Write(ctx, ev); err != nil {
			metrics.AuditFailures.Inc()
			slog.Warn("audit write failed", "action", ev.Action, "resource_id", ev.ResourceID, "error", err)
		}
	}()
}

// Flush waits for every queued event to be written.
func (r *Recorder) Flush() {
	r.wg.Wait()
}

// Close stops accepting events and waits for pending writes.
func (r *Recorder) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}
