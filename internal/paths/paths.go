// Package paths resolves the output directory an experiment daemon writes
// event logs and state sidecars into, mirroring pidgin/io/paths.py's
// working-directory resolution rules.
package paths

import (
	"os"
	"path/filepath"
)

// DefaultOutputDir is the directory name used outside the module's own
// source tree.
const DefaultOutputDir = "pidgin_output"

// devOutputDir is used instead when the resolved base looks like this
// module's own checkout (go.mod + cmd/pidgind present), so a developer
// iterating on the runtime doesn't pollute their working tree with the
// same directory name a deployed binary would use.
const devOutputDir = "pidgin_dev_output"

// OutputDir resolves the base output directory using the same priority
// order as the original CLI: an explicit override, then PIDGIN_OUTPUT_DIR,
// then a directory under PIDGIN_ORIGINAL_CWD (set by a parent shell wrapper
// so a daemon re-exec doesn't lose the caller's directory), then PWD, then
// the process's own working directory.
func OutputDir(override string) string {
	if override != "" {
		return override
	}
	if v := os.Getenv("PIDGIN_OUTPUT_DIR"); v != "" {
		return v
	}

	base := resolveBaseDir()
	if isDevCheckout(base) {
		return filepath.Join(base, devOutputDir)
	}
	return filepath.Join(base, DefaultOutputDir)
}

func resolveBaseDir() string {
	if v := os.Getenv("PIDGIN_ORIGINAL_CWD"); v != "" {
		if _, err := os.Stat(v); err == nil {
			return v
		}
	}
	if v := os.Getenv("PWD"); v != "" {
		if _, err := os.Stat(v); err == nil {
			return v
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func isDevCheckout(base string) bool {
	if _, err := os.Stat(filepath.Join(base, "go.mod")); err != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(base, "cmd", "pidgind"))
	return err == nil
}

// ExperimentsDir returns the directory under which per-experiment
// subdirectories are created.
func ExperimentsDir(override string) string {
	return filepath.Join(OutputDir(override), "experiments")
}

// ConversationsDir returns the directory holding standalone (non-experiment)
// conversation runs.
func ConversationsDir(override string) string {
	return filepath.Join(OutputDir(override), "conversations")
}

// ExperimentDir returns the directory for one experiment, identified by its
// generated ID.
func ExperimentDir(override, experimentID string) string {
	return filepath.Join(ExperimentsDir(override), experimentID)
}

// ExperimentConversationsDir returns the directory holding an experiment's per-run
// conversation subdirectories: <experiments>/<experimentID>/conversations/.
func ExperimentConversationsDir(override, experimentID string) string {
	return filepath.Join(ExperimentDir(override, experimentID), "conversations")
}

// ConversationDir returns the directory for one conversation within an
// experiment: <experiments>/<experimentID>/conversations/<conversationID>/.
func ConversationDir(override, experimentID, conversationID string) string {
	return filepath.Join(ExperimentConversationsDir(override, experimentID), conversationID)
}

// ConfigPath returns the frozen ExperimentConfig snapshot path.
func ConfigPath(override, experimentID string) string {
	return filepath.Join(ExperimentDir(override, experimentID), "config.yaml")
}

// DaemonPIDPath returns the supervising process's PID file path, present
// only while the scheduler daemon is running.
func DaemonPIDPath(override, experimentID string) string {
	return filepath.Join(ExperimentDir(override, experimentID), "daemon.pid")
}

// ExperimentEventLogPath returns the experiment-level event log (starts,
// stops), distinct from each conversation's own event log.
func ExperimentEventLogPath(override, experimentID string) string {
	return filepath.Join(ExperimentDir(override, experimentID), "events.jsonl")
}

// EventLogPath returns the append-only JSONL ledger path for a conversation.
func EventLogPath(override, experimentID, conversationID string) string {
	return filepath.Join(ConversationDir(override, experimentID, conversationID), "events.jsonl")
}

// StatePath returns the atomic state sidecar path for a conversation.
func StatePath(override, experimentID, conversationID string) string {
	return filepath.Join(ConversationDir(override, experimentID, conversationID), "state.json")
}

// ManifestPath returns the experiment-level manifest (status, conversation
// counts, timestamps and config.yaml digest) path.
func ManifestPath(override, experimentID string) string {
	return filepath.Join(ExperimentDir(override, experimentID), "manifest.json")
}

// EnsureDir creates dir (and parents) if it does not already exist.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
