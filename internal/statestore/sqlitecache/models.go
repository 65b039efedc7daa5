// Package sqlitecache is an optional, strictly offline query index over an
// output root's experiments. It is never consulted at runtime: the
// scheduler, engine, and monitor packages read and write only the
// filesystem layout described in spec.md §6.2 ("there is no shared
// database at runtime"). This package exists for ad-hoc analysis after one
// or more experiments have run — e.g. "list every interrupted conversation
// across every experiment" without re-walking every events.jsonl by hand —
// and can always be rebuilt from scratch from the JSONL/JSON files, so
// losing or deleting the cache file has no effect on the authoritative
// record.
package sqlitecache

import "time"

// ExperimentRecord mirrors eventlog.Manifest, denormalized for SQL querying
// (e.g. "experiments with status = completed_with_failures").
type ExperimentRecord struct {
	ExperimentID       string `gorm:"primaryKey"`
	Name               string
	Status             string `gorm:"index"`
	TotalConversations int
	CompletedCount     int
	FailedCount        int
	ConfigDigest       string
	CreatedAt          time.Time
	StartedAt          *time.Time
	EndedAt            *time.Time
}

func (ExperimentRecord) TableName() string { return "experiments" }

// ConversationRecord mirrors eventlog.ConversationState, with ExperimentID
// denormalized alongside so a single query can filter across experiments
// (spec.md §4.8's per-experiment state builder has no such cross-experiment
// view; this table is what fills that gap for offline analysis).
type ConversationRecord struct {
	ConversationID  string `gorm:"primaryKey"`
	ExperimentID    string `gorm:"index"`
	Status          string `gorm:"index"`
	CurrentTurn     int
	MaxTurns        int
	LastConvergence *float64
	AgentAModel     string
	AgentBModel     string
	UpdatedAt       time.Time
}

func (ConversationRecord) TableName() string { return "conversations" }
