// Package prompt assembles each agent's system prompt from its awareness
// level and researcher prompt tag, and runs the optional one-shot
// name-selection exchange before turn 0 (spec.md §4.6).
package prompt

import (
	"strings"

	"pidgin/internal/config"
)

const (
	basicClause    = "You are in conversation with another AI assistant."
	firmClause     = "Both you and your counterpart are AI language models. Do not role-play as a human."
	researchClause = "This conversation is part of a research study on multi-agent dialogue."
)

// BaseIdentity is the first slot of every system prompt, before any
// awareness clause.
const BaseIdentity = "You are participating in a conversation."

// System composes one agent's system prompt from the base identity,
// awareness clause, naming clause, and researcher prompt tag slots
// (spec.md §4.6). chosenName is empty unless choose_names resolved one for
// this agent already.
func System(awareness string, chooseNames bool, chosenName string, promptTag string) string {
	slots := []string{BaseIdentity}

	if clause := awarenessClause(awareness); clause != "" {
		slots = append(slots, clause)
	}

	if chooseNames {
		if chosenName != "" {
			slots = append(slots, "You have chosen the name \""+chosenName+"\" for this conversation.")
		} else {
			slots = append(slots, "Choose a short name for yourself for this conversation.")
		}
	}

	if promptTag != "" {
		slots = append(slots, "Researcher tag: "+promptTag)
	}

	return strings.Join(slots, "\n\n")
}

// awarenessClause returns the cumulative clause for a level: basic is
// standalone, firm builds on basic, research builds on firm (spec.md
// §4.6). none yields no clause at all.
func awarenessClause(level string) string {
	switch level {
	case config.AwarenessNone, "":
		return ""
	case config.AwarenessBasic:
		return basicClause
	case config.AwarenessFirm:
		return basicClause + " " + firmClause
	case config.AwarenessResearch:
		return basicClause + " " + firmClause + " " + researchClause
	default:
		return ""
	}
}

// InitialMessage resolves the content of the first content turn: a custom
// prompt verbatim, a dimension-generated prompt, or the literal "Hello"
// (spec.md §4.6). If promptTag is non-empty it is prepended to this
// message only, never to later turns.
func InitialMessage(customPrompt string, dimensions []string, promptTag string) string {
	body := resolveBody(customPrompt, dimensions)
	if promptTag == "" {
		return body
	}
	return promptTag + " " + body
}

func resolveBody(customPrompt string, dimensions []string) string {
	if customPrompt != "" {
		return customPrompt
	}
	if len(dimensions) > 0 {
		return dimensionPrompt(dimensions)
	}
	return "Hello"
}

// dimensionPrompt deterministically derives an opening line from a list of
// dimension tags, e.g. ["philosophy", "humor"] becomes a prompt nudging the
// conversation toward both.
func dimensionPrompt(dimensions []string) string {
	return "Let's have a conversation exploring: " + strings.Join(dimensions, ", ") + "."
}
