// Package eventlog implements the append-only JSONL event ledger and the
// atomic state.json sidecar that make up a conversation's and an
// experiment's durable record (spec.md §4.4, §6.2).
package eventlog

import (
	"encoding/json"
	"time"
)

// Event types emitted by the conversation engine and scheduler.
const (
	TypeConversationStarted = "conversation_started"
	TypeMessageRequested    = "message_requested"
	TypeMessageChunk        = "message_chunk"
	TypeMessageCompleted    = "message_completed"
	TypeTurnCompleted       = "turn_completed"
	TypeConvergenceReached  = "convergence_reached"
	TypeProviderError       = "provider_error"
	TypeRateLimitPaused     = "rate_limit_paused"
	TypeConversationEnded   = "conversation_ended"

	TypeExperimentStarted = "experiment_started"
	TypeExperimentEnded   = "experiment_ended"
)

// Event is one JSONL record. Type and CreatedAt are always present
// (spec.md §6.2); Fields carries every other key so that readers can pass
// through event types they don't recognize without losing data
// (forward-compatibility requirement, spec.md §6.2).
type Event struct {
	Type      string
	CreatedAt time.Time
	Fields    map[string]any
}

// New constructs an Event of the given type stamped with now, carrying the
// supplied fields. now is passed in rather than taken internally so callers
// (and their tests) control time.
func New(now time.Time, eventType string, fields map[string]any) Event {
	return Event{Type: eventType, CreatedAt: now, Fields: fields}
}

// MarshalJSON flattens Type, CreatedAt, and Fields into one JSON object.
func (e Event) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(e.Fields)+2)
	for k, v := range e.Fields {
		flat[k] = v
	}
	flat["type"] = e.Type
	flat["created_at"] = e.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	return json.Marshal(flat)
}

// UnmarshalJSON recovers Type and CreatedAt from known keys and keeps every
// other key in Fields, including keys belonging to an event type this
// binary doesn't know about.
func (e *Event) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	if t, ok := flat["type"].(string); ok {
		e.Type = t
		delete(flat, "type")
	}
	if c, ok := flat["created_at"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, c); err == nil {
			e.CreatedAt = parsed
		}
		delete(flat, "created_at")
	}
	e.Fields = flat
	return nil
}

// Field reads a field back out with a type assertion, returning ok=false if
// absent or of the wrong type. Event consumers that need typed access
// (e.g. the state builder) use this instead of re-decoding Fields.
func Field[T any](e Event, key string) (T, bool) {
	var zero T
	v, present := e.Fields[key]
	if !present {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
