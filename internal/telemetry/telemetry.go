// Package telemetry emits lightweight structured events for the chat and
// ingestion paths. Events are best-effort observability signals, never
// control flow; emitters must not block or fail the request that emits.
package telemetry

import (
	"context"
	"log/slog"
)

// Event names emitted by the core paths.
const (
	EventChatAnswered   = "chat.answered"
	EventChatRouted     = "chat.routed"
	EventChatFallback   = "chat.fallback"
	EventIngestComplete = "ingest.complete"
)

// Event is a single telemetry record.
type Event struct {
	Name      string
	ActorID   string
	ActorRole string
	Fields    map[string]any
}

// Emitter records events. Implementations must be safe for concurrent use
// and must never panic or block the caller.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// SlogEmitter writes events to a structured logger.
type SlogEmitter struct {
	logger *slog.Logger
}

// NewSlogEmitter creates an Emitter backed by logger.
func NewSlogEmitter(logger *slog.Logger) *SlogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogEmitter{logger: logger}
}

func (s *SlogEmitter) Emit(ctx context.Context, e Event) {
	attrs := make([]any, 0, 6+2*len(e.Fields))
	attrs = append(attrs,
		"event", e.Name,
		"actor_id", e.ActorID,
		"actor_role", e.ActorRole,
	)
	for k, v := range e.Fields {
		attrs = append(attrs, k, v)
	}
	s.logger.InfoContext(ctx, "telemetry", attrs...)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}
