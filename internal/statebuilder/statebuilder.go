// Package statebuilder reconstructs a read-only view of an experiment and
// its conversations from manifest.json, each conversation's state.json, and
// (when those are missing or stale) by scanning the conversation's event
// log for its latest terminal event (spec.md §4.8). It is used by the
// list/status/attach/monitor commands and never writes to the filesystem
// itself.
package statebuilder

import (
	"fmt"
	"os"
	"sort"

	"pidgin/internal/eventlog"
	"pidgin/internal/paths"
)

// ConversationView is one conversation's reconstructed state plus whether it
// had to be recovered from the event log rather than trusted state.json.
type ConversationView struct {
	ConversationID string
	State          eventlog.ConversationState
	Reconstructed  bool // true if state.json was missing/stale and this came from scanning the log
}

// ExperimentView is the full reconstruction for one experiment directory.
type ExperimentView struct {
	Manifest      eventlog.Manifest
	Conversations []ConversationView
}

// Build reconstructs the view for the experiment rooted at outputDir/
// experiments/experimentID without using any cache.
func Build(outputDir, experimentID string) (ExperimentView, error) {
	manifestPath := paths.ManifestPath(outputDir, experimentID)
	manifest, err := eventlog.ReadManifest(manifestPath)
	if err != nil {
		return ExperimentView{}, fmt.Errorf("statebuilder: read manifest: %w", err)
	}

	convsDir := paths.ExperimentConversationsDir(outputDir, experimentID)
	ids, err := conversationIDs(convsDir)
	if err != nil {
		return ExperimentView{}, fmt.Errorf("statebuilder: list conversations: %w", err)
	}

	views := make([]ConversationView, 0, len(ids))
	for _, id := range ids {
		v, err := buildConversation(outputDir, experimentID, id)
		if err != nil {
			return ExperimentView{}, err
		}
		views = append(views, v)
	}

	return ExperimentView{Manifest: manifest, Conversations: views}, nil
}

func conversationIDs(convsDir string) ([]string, error) {
	entries, err := os.ReadDir(convsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// buildConversation trusts state.json unless it is absent or reports a
// non-terminal status while the event log's last line is already terminal
// (a crash between the final event append and the final state rewrite).
func buildConversation(outputDir, experimentID, conversationID string) (ConversationView, error) {
	statePath := paths.StatePath(outputDir, experimentID, conversationID)
	logPath := paths.EventLogPath(outputDir, experimentID, conversationID)

	state, stateErr := eventlog.ReadState(statePath)
	if stateErr == nil && isTerminalStatus(state.Status) {
		return ConversationView{ConversationID: conversationID, State: state}, nil
	}

	reconstructed, found, err := reconstructFromLog(logPath, experimentID, conversationID)
	if err != nil {
		return ConversationView{}, fmt.Errorf("statebuilder: scan event log for %s: %w", conversationID, err)
	}
	if found {
		return ConversationView{ConversationID: conversationID, State: reconstructed, Reconstructed: true}, nil
	}

	if stateErr == nil {
		// state.json exists and is non-terminal (conversation still running
		// or the log has no terminal event yet either); trust it as-is.
		return ConversationView{ConversationID: conversationID, State: state}, nil
	}
	if os.IsNotExist(stateErr) {
		// Neither state.json nor a terminal log event exists yet: the
		// conversation directory was created but nothing has run.
		return ConversationView{
			ConversationID: conversationID,
			State: eventlog.ConversationState{
				ConversationID: conversationID,
				ExperimentID:   experimentID,
				Status:         "pending",
			},
		}, nil
	}
	return ConversationView{}, fmt.Errorf("statebuilder: read state for %s: %w", conversationID, stateErr)
}

func isTerminalStatus(status string) bool {
	switch status {
	case "completed", "failed", "interrupted":
		return true
	default:
		return false
	}
}

// reconstructFromLog scans the event log backward for its last
// conversation_ended event and synthesizes a ConversationState from it.
func reconstructFromLog(logPath, experimentID, conversationID string) (eventlog.ConversationState, bool, error) {
	events, err := eventlog.ReadAll(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return eventlog.ConversationState{}, false, nil
		}
		return eventlog.ConversationState{}, false, err
	}

	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		if e.Type != eventlog.TypeConversationEnded {
			continue
		}
		status, _ := eventlog.Field[string](e, "status")
		turns, _ := eventlog.Field[float64](e, "total_turns")
		return eventlog.ConversationState{
			ConversationID: conversationID,
			ExperimentID:   experimentID,
			Status:         status,
			CurrentTurn:    int(turns),
			UpdatedAt:      e.CreatedAt,
		}, true, nil
	}
	return eventlog.ConversationState{}, false, nil
}
