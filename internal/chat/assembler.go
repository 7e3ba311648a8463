package chat

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/opalchat/opal/internal/upstream"
)

const memoryPreamble = "This is a summary of what you know about the user. Use this information to personalize your responses:\n"

// BuildMessages composes the exact upstream message list for one turn:
// an optional memory system message, then either the full history converted
// per-message (short histories) or a cached flattened prefix plus the live
// suffix converted per-message.
func BuildMessages(profileJSON string, history []HistoryMessage, window int) []upstream.Message {
	var messages []upstream.Message

	if memory, ok := MemoryMessage(profileJSON); ok {
		messages = append(messages, memory)
	}

	boundary := CacheBoundary(len(history), window)
	if boundary > 0 {
		messages = append(messages, cachedPrefixMessage(history[:boundary], boundary))
		for _, msg := range history[boundary:] {
			messages = append(messages, convertMessage(msg))
		}
		return messages
	}

	for _, msg := range history {
		messages = append(messages, convertMessage(msg))
	}
	return messages
}

// CacheBoundary returns the largest multiple of window not exceeding length.
// Zero means no caching for this turn.
func CacheBoundary(length, window int) int {
	if window < 1 {
		return 0
	}
	return (length / window) * window
}

// MemoryMessage renders the profile facts as a system message.
// Empty or unparseable profiles yield no message.
func MemoryMessage(profileJSON string) (upstream.Message, bool) {
	if profileJSON == "" || profileJSON == "{}" {
		return upstream.Message{}, false
	}

	var facts map[string]any
	if err := json.Unmarshal([]byte(profileJSON), &facts); err != nil || len(facts) == 0 {
		return upstream.Message{}, false
	}

	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("- %s: %v", humanizeKey(k), facts[k]))
	}

	return upstream.TextMessage("system", memoryPreamble+strings.Join(lines, "\n")), true
}

// cachedPrefixMessage flattens the pre-boundary history into one plain-text
// transcript and wraps it in a system message marked for upstream caching.
// Only plain text survives the flattening; structured parts are dropped from
// the transcript (the original messages remain persisted).
func cachedPrefixMessage(prefix []HistoryMessage, boundary int) upstream.Message {
	var transcript strings.Builder
	for _, msg := range prefix {
		if !msg.Content.IsPlain() || msg.Content.Text == "" {
			continue
		}
		role := msg.Role
		if role == "" {
			role = "unknown"
		}
		transcript.WriteString(role)
		transcript.WriteString(": ")
		transcript.WriteString(msg.Content.Text)
		transcript.WriteString("\n\n")
	}

	return upstream.PartsMessage("system",
		upstream.ContentPart{
			Type: "text",
			Text: fmt.Sprintf("Here is a summary of the conversation so far (messages 1-%d). Use this for context:", boundary),
		},
		upstream.ContentPart{
			Type:         "text",
			Text:         transcript.String(),
			CacheControl: &upstream.CacheControl{Type: "ephemeral"},
		},
	)
}

// convertMessage converts one history entry to the upstream content format:
// plain text becomes a single text-part array, structured parts pass through,
// and empty plain content stays as-is.
func convertMessage(msg HistoryMessage) upstream.Message {
	if !msg.Content.IsPlain() {
		return upstream.Message{Role: msg.Role, Content: msg.Content}
	}
	if msg.Content.Text == "" {
		return upstream.TextMessage(msg.Role, "")
	}
	return upstream.PartsMessage(msg.Role, upstream.ContentPart{Type: "text", Text: msg.Content.Text})
}

// humanizeKey turns a snake_case fact key into a title-cased label.
func humanizeKey(key string) string {
	words := strings.Split(strings.ReplaceAll(key, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
