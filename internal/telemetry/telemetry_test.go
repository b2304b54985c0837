package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSlogEmitter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	em := NewSlogEmitter(logger)

	em.Emit(context.Background(), Event{
		Name:      EventChatAnswered,
		ActorID:   "s1",
		ActorRole: "student",
		Fields:    map[string]any{"top_score": 0.42, "grounded": true},
	})

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if record["event"] != EventChatAnswered {
		t.Errorf("event = %v, want %v", record["event"], EventChatAnswered)
	}
	if record["actor_id"] != "s1" {
		t.Errorf("actor_id = %v, want s1", record["actor_id"])
	}
	if record["grounded"] != true {
		t.Errorf("grounded = %v, want true", record["grounded"])
	}
}

func TestNopEmitter(t *testing.T) {
	// Must not panic on any input.
	Nop{}.Emit(context.Background(), Event{})
}
