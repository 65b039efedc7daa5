package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputDir_Override(t *testing.T) {
	assert.Equal(t, "/tmp/custom", OutputDir("/tmp/custom"))
}

func TestOutputDir_UsesPWDWhenSet(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PIDGIN_ORIGINAL_CWD", "")
	t.Setenv("PWD", dir)

	got := OutputDir("")
	assert.Equal(t, filepath.Join(dir, DefaultOutputDir), got)
}

func TestOutputDir_DevCheckoutUsesDevDirName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cmd", "pidgind"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module pidgin\n"), 0o644))

	t.Setenv("PIDGIN_ORIGINAL_CWD", dir)

	got := OutputDir("")
	assert.Equal(t, filepath.Join(dir, devOutputDir), got)
}

func TestConversationDir_Layout(t *testing.T) {
	got := ConversationDir("/base", "exp-1", "conv-1")
	assert.Equal(t, filepath.Join("/base", "experiments", "exp-1", "conversations", "conv-1"), got)
}

func TestEventLogPath_AndStatePath(t *testing.T) {
	assert.Equal(t, filepath.Join("/base", "experiments", "exp-1", "conversations", "conv-1", "events.jsonl"),
		EventLogPath("/base", "exp-1", "conv-1"))
	assert.Equal(t, filepath.Join("/base", "experiments", "exp-1", "conversations", "conv-1", "state.json"),
		StatePath("/base", "exp-1", "conv-1"))
}

func TestManifestPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/base", "experiments", "exp-1", "manifest.json"),
		ManifestPath("/base", "exp-1"))
}

func TestConfigPath_DaemonPIDPath_ExperimentEventLogPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/base", "experiments", "exp-1", "config.yaml"), ConfigPath("/base", "exp-1"))
	assert.Equal(t, filepath.Join("/base", "experiments", "exp-1", "daemon.pid"), DaemonPIDPath("/base", "exp-1"))
	assert.Equal(t, filepath.Join("/base", "experiments", "exp-1", "events.jsonl"), ExperimentEventLogPath("/base", "exp-1"))
}
