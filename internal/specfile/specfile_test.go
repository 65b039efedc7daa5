package specfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pidgin/internal/config"
)

func writeSpec(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "spec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAndResolve_Shorthand(t *testing.T) {
	path := writeSpec(t, `
name: shorthand-test
agent_a: claude-sonnet-4
agent_b: gpt-5
turns: 15
temperature: 0.7
prompt: "let's talk about language"
dimension: tone
`)
	cfg, err := LoadAndResolve(path)
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4", cfg.AgentAModel)
	assert.Equal(t, "gpt-5", cfg.AgentBModel)
	assert.Equal(t, 15, cfg.MaxTurns)
	require.NotNil(t, cfg.TemperatureA)
	assert.Equal(t, 0.7, *cfg.TemperatureA)
	require.NotNil(t, cfg.TemperatureB)
	assert.Equal(t, 0.7, *cfg.TemperatureB)
	assert.Equal(t, "let's talk about language", cfg.CustomPrompt)
	assert.Equal(t, []string{"tone"}, cfg.Dimensions)
}

func TestLoadAndResolve_DimensionsList(t *testing.T) {
	path := writeSpec(t, `
agent_a_model: claude-sonnet-4
agent_b_model: gpt-5
dimensions:
  - tone
  - length
`)
	cfg, err := LoadAndResolve(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"tone", "length"}, cfg.Dimensions)
}

func TestLoadAndResolve_MissingModels(t *testing.T) {
	path := writeSpec(t, `name: no-models`)
	_, err := LoadAndResolve(path)
	assert.Error(t, err)
}

func TestLoadAndResolve_ProfileAppliesConvergenceDefaults(t *testing.T) {
	path := writeSpec(t, `
agent_a_model: claude-sonnet-4
agent_b_model: gpt-5
profile: unattended
`)
	cfg, err := LoadAndResolve(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.ConvergenceThreshold)
	assert.Equal(t, 0.75, *cfg.ConvergenceThreshold)
	assert.Equal(t, config.ConvergenceActionStop, cfg.ConvergenceAction)
}

func TestLoadAndResolve_ThresholdDefaultsActionToStop(t *testing.T) {
	path := writeSpec(t, `
agent_a_model: claude-sonnet-4
agent_b_model: gpt-5
convergence_threshold: 0.9
`)
	cfg, err := LoadAndResolve(path)
	require.NoError(t, err)
	assert.Equal(t, config.ConvergenceActionStop, cfg.ConvergenceAction)
}

func TestLoadAndResolve_UnknownProfile(t *testing.T) {
	path := writeSpec(t, `
agent_a_model: claude-sonnet-4
agent_b_model: gpt-5
profile: nonexistent
`)
	_, err := LoadAndResolve(path)
	assert.Error(t, err)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/spec.yaml")
	assert.Error(t, err)
}
