package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ConversationState is the denormalized per-conversation summary rewritten
// atomically after every turn (spec.md §4.4), letting monitors poll
// cheaply without re-scanning the event log.
type ConversationState struct {
	ConversationID  string    `json:"conversation_id"`
	ExperimentID    string    `json:"experiment_id,omitempty"`
	Status          string    `json:"status"`
	CurrentTurn     int       `json:"current_turn"`
	MaxTurns        int       `json:"max_turns"`
	LastConvergence *float64  `json:"last_convergence,omitempty"`
	AgentAModel     string    `json:"agent_a_model"`
	AgentBModel     string    `json:"agent_b_model"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// WriteState rewrites the state.json sidecar at path atomically.
func WriteState(path string, s ConversationState) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("eventlog: marshal state: %w", err)
	}
	return writeAtomic(path, b)
}

// ReadState loads a state.json sidecar. A missing sidecar is returned as
// the underlying os error; callers check os.IsNotExist themselves (the state
// builder falls back to scanning the event log, per spec.md §4.8).
func ReadState(path string) (ConversationState, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ConversationState{}, err
	}
	var s ConversationState
	if err := json.Unmarshal(b, &s); err != nil {
		return ConversationState{}, fmt.Errorf("eventlog: parse state %s: %w", path, err)
	}
	return s, nil
}

// Manifest is the experiment-level summary (spec.md §6.2).
type Manifest struct {
	ExperimentID           string     `json:"experiment_id"`
	Name                   string     `json:"name"`
	Status                 string     `json:"status"`
	TotalConversations     int        `json:"total_conversations"`
	CompletedConversations int        `json:"completed_conversations"`
	FailedConversations    int        `json:"failed_conversations"`
	CreatedAt              time.Time  `json:"created_at"`
	StartedAt              *time.Time `json:"started_at,omitempty"`
	EndedAt                *time.Time `json:"ended_at,omitempty"`
	ConfigDigest           string     `json:"config_digest"`
}

// WriteManifest rewrites manifest.json atomically.
func WriteManifest(path string, m Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("eventlog: marshal manifest: %w", err)
	}
	return writeAtomic(path, b)
}

// ReadManifest loads manifest.json.
func ReadManifest(path string) (Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}, fmt.Errorf("eventlog: parse manifest %s: %w", path, err)
	}
	return m, nil
}
