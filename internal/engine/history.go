package engine

import (
	"pidgin/internal/config"
	"pidgin/internal/provideradapter"
)

// historyEntry is one message in the conversation's canonical log. Author
// is empty for the researcher-authored initial message, otherwise the
// agent that produced it.
type historyEntry struct {
	Author  config.AgentRole
	Content string
}

// buildMessages maps the canonical history into the role-labeled message
// list a given agent's adapter expects: its own prior entries become
// "assistant", every other entry (the counterpart's replies and the
// researcher-authored initial message) becomes "user" (spec.md §4.5,
// "Message history passed to each provider").
func buildMessages(forAgent config.AgentRole, history []historyEntry) []provideradapter.Message {
	messages := make([]provideradapter.Message, 0, len(history))
	for _, h := range history {
		role := "user"
		if h.Author == forAgent {
			role = "assistant"
		}
		if n := len(messages); n > 0 && messages[n-1].Role == role {
			// The researcher-authored seed message and the counterpart's
			// first reply both read as "user" to whichever agent didn't
			// author them; several providers (Anthropic in particular)
			// require strict user/assistant alternation, so consecutive
			// same-role entries are folded into one message.
			messages[n-1].Content += "\n\n" + h.Content
			continue
		}
		messages = append(messages, provideradapter.Message{Role: role, Content: h.Content})
	}
	return messages
}

// dropOldestPair removes the oldest non-system message pair from history:
// the earliest entry plus the one immediately following it, if present
// (spec.md §4.5, "drop the oldest non-system message pair and retry
// once"). The researcher-authored seed message counts as the first
// element of the first pair.
func dropOldestPair(history []historyEntry) []historyEntry {
	if len(history) <= 2 {
		return history[:0]
	}
	return history[2:]
}
