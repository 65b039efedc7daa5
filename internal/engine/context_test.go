package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"pidgin/internal/config"
)

func TestContextWindowTokens_KnownFamilies(t *testing.T) {
	assert.Equal(t, 200_000, contextWindowTokens("claude-3-5-sonnet"))
	assert.Equal(t, 1_000_000, contextWindowTokens("gemini-1.5-pro"))
	assert.Equal(t, 32_000, contextWindowTokens("some-unknown-model"))
}

func TestTrimForContextWindow_DropsOldestWhenOverBudget(t *testing.T) {
	cfg := config.ContextManagementConfig{
		Enabled:             true,
		ContextReserveRatio: 0.99,
		MinMessagesRetained: 2,
		SafetyFactor:        0.9,
	}
	var history []historyEntry
	for i := 0; i < 20; i++ {
		history = append(history, historyEntry{Content: strings.Repeat("word ", 50)})
	}
	got := trimForContextWindow(history, "some-unknown-model", cfg)
	assert.Less(t, len(got), len(history))
	assert.GreaterOrEqual(t, len(got), cfg.MinMessagesRetained)
}

func TestTrimForContextWindow_DisabledIsNoop(t *testing.T) {
	cfg := config.ContextManagementConfig{Enabled: false}
	history := []historyEntry{{Content: "a"}, {Content: "b"}, {Content: "c"}}
	got := trimForContextWindow(history, "claude-3-5-sonnet", cfg)
	assert.Equal(t, history, got)
}

func TestTrimForContextWindow_UnderBudgetIsNoop(t *testing.T) {
	cfg := config.DefaultContextManagement()
	history := []historyEntry{{Content: "short"}, {Content: "also short"}}
	got := trimForContextWindow(history, "claude-3-5-sonnet", cfg)
	assert.Equal(t, history, got)
}
