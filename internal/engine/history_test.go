package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pidgin/internal/config"
)

func TestBuildMessages_OwnEntriesBecomeAssistant(t *testing.T) {
	history := []historyEntry{
		{Author: "", Content: "Hello"},
		{Author: config.AgentA, Content: "Hi there"},
		{Author: config.AgentB, Content: "How are you?"},
	}
	got := buildMessages(config.AgentA, history)
	assert.Equal(t, "user", got[0].Role)
	assert.Equal(t, "assistant", got[1].Role)
	assert.Equal(t, "user", got[2].Role)
}

func TestBuildMessages_FoldsConsecutiveSameRoleEntries(t *testing.T) {
	history := []historyEntry{
		{Author: "", Content: "Hello"},
		{Author: config.AgentB, Content: "Hi, I'm B"},
	}
	got := buildMessages(config.AgentA, history)
	require := assert.New(t)
	require.Len(got, 1)
	require.Equal("user", got[0].Role)
	require.Contains(got[0].Content, "Hello")
	require.Contains(got[0].Content, "Hi, I'm B")
}

func TestDropOldestPair_RemovesFirstTwoEntries(t *testing.T) {
	history := []historyEntry{
		{Content: "1"}, {Content: "2"}, {Content: "3"}, {Content: "4"},
	}
	got := dropOldestPair(history)
	assert.Equal(t, []historyEntry{{Content: "3"}, {Content: "4"}}, got)
}

func TestDropOldestPair_EmptiesShortHistory(t *testing.T) {
	history := []historyEntry{{Content: "1"}, {Content: "2"}}
	got := dropOldestPair(history)
	assert.Empty(t, got)
}
