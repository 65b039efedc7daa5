package prompt

import "strings"

// maxChosenNameLen is the longest accepted self-name (spec.md §4.6).
const maxChosenNameLen = 32

// ChosenNamePrompt is sent to each agent as the one-shot content message of
// the name-selection exchange, before turn 0.
const ChosenNamePrompt = "Before we begin, please propose a short name for yourself to use in this conversation."

// ExtractChosenName recovers the name an agent proposed from its raw
// response: the first non-empty whitespace-delimited token, truncated to
// maxChosenNameLen characters, keeping only alphanumeric, space, and
// hyphen characters (spec.md §4.6). A response with no acceptable token
// yields "" — the caller must treat that as a valid, non-fatal outcome
// and proceed without a chosen name (spec.md §9: a failed or oversize name
// response never fails the conversation).
func ExtractChosenName(response string) string {
	for _, token := range strings.Fields(response) {
		cleaned := cleanToken(token)
		if cleaned == "" {
			continue
		}
		if len(cleaned) > maxChosenNameLen {
			cleaned = cleaned[:maxChosenNameLen]
		}
		return cleaned
	}
	return ""
}

func cleanToken(token string) string {
	var b strings.Builder
	for _, r := range token {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
