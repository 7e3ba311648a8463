package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opalchat/opal/internal/upstream"
)

func plain(role, text string) HistoryMessage {
	return HistoryMessage{Role: role, Content: upstream.MessageContent{Text: text}}
}

func TestCacheBoundary(t *testing.T) {
	cases := []struct {
		length, window, want int
	}{
		{0, 10, 0},
		{9, 10, 0},
		{10, 10, 10},
		{11, 10, 10},
		{19, 10, 10},
		{20, 10, 20},
		{25, 10, 20},
		{5, 0, 0},
		{5, -1, 0},
		{7, 3, 6},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CacheBoundary(c.length, c.window),
			"length=%d window=%d", c.length, c.window)
	}
}

func TestMemoryMessageEmptyProfiles(t *testing.T) {
	for _, profile := range []string{"", "{}", "not json", "[1,2]"} {
		_, ok := MemoryMessage(profile)
		assert.False(t, ok, "profile %q should yield no message", profile)
	}
}

func TestMemoryMessageRendersSortedFacts(t *testing.T) {
	msg, ok := MemoryMessage(`{"favorite_color":"blue","age":30}`)
	require.True(t, ok)
	assert.Equal(t, "system", msg.Role)
	require.True(t, msg.Content.IsPlain())

	text := msg.Content.Text
	assert.Contains(t, text, "- Age: 30")
	assert.Contains(t, text, "- Favorite Color: blue")
	// Keys render in sorted order regardless of map iteration
	assert.Less(t, indexOf(text, "Age"), indexOf(text, "Favorite Color"))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestBuildMessagesShortHistory(t *testing.T) {
	history := []HistoryMessage{
		plain("user", "hello"),
		plain("assistant", "hi there"),
	}

	got := BuildMessages("{}", history, 10)
	require.Len(t, got, 2)

	// Plain text is wrapped in a single text part
	require.False(t, got[0].Content.IsPlain())
	require.Len(t, got[0].Content.Parts, 1)
	assert.Equal(t, "hello", got[0].Content.Parts[0].Text)
	assert.Nil(t, got[0].Content.Parts[0].CacheControl)
}

func TestBuildMessagesPrependsMemory(t *testing.T) {
	history := []HistoryMessage{plain("user", "hello")}

	got := BuildMessages(`{"name":"Ada"}`, history, 10)
	require.Len(t, got, 2)
	assert.Equal(t, "system", got[0].Role)
	assert.Contains(t, got[0].Content.Text, "- Name: Ada")
}

func TestBuildMessagesCachedPrefix(t *testing.T) {
	var history []HistoryMessage
	for i := 0; i < 12; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		history = append(history, plain(role, "msg"))
	}

	got := BuildMessages("{}", history, 10)
	// 1 cached prefix + 2 live suffix messages
	require.Len(t, got, 3)

	prefix := got[0]
	assert.Equal(t, "system", prefix.Role)
	require.Len(t, prefix.Content.Parts, 2)
	assert.Contains(t, prefix.Content.Parts[0].Text, "messages 1-10")
	assert.Nil(t, prefix.Content.Parts[0].CacheControl)
	require.NotNil(t, prefix.Content.Parts[1].CacheControl)
	assert.Equal(t, "ephemeral", prefix.Content.Parts[1].CacheControl.Type)
	assert.Contains(t, prefix.Content.Parts[1].Text, "user: msg")
	assert.Contains(t, prefix.Content.Parts[1].Text, "assistant: msg")
}

func TestCachedPrefixSkipsStructuredAndEmpty(t *testing.T) {
	history := []HistoryMessage{
		plain("user", "keep me"),
		{Role: "user", Content: upstream.MessageContent{Parts: []upstream.ContentPart{{Type: "text", Text: "drop me"}}}},
		plain("assistant", ""),
		plain("assistant", "also kept"),
		plain("user", "5"), plain("assistant", "6"),
		plain("user", "7"), plain("assistant", "8"),
		plain("user", "9"), plain("assistant", "10"),
	}

	got := BuildMessages("{}", history, 10)
	require.Len(t, got, 1)

	transcript := got[0].Content.Parts[1].Text
	assert.Contains(t, transcript, "user: keep me")
	assert.Contains(t, transcript, "assistant: also kept")
	assert.NotContains(t, transcript, "drop me")
}

func TestConvertMessageEmptyPlainStaysPlain(t *testing.T) {
	got := BuildMessages("{}", []HistoryMessage{plain("user", "")}, 10)
	require.Len(t, got, 1)
	assert.True(t, got[0].Content.IsPlain())
	assert.Equal(t, "", got[0].Content.Text)
}

func TestConvertMessagePartsPassThrough(t *testing.T) {
	parts := []upstream.ContentPart{
		{Type: "text", Text: "what is this?"},
		{Type: "image_url"},
	}
	history := []HistoryMessage{{Role: "user", Content: upstream.MessageContent{Parts: parts}}}

	got := BuildMessages("{}", history, 10)
	require.Len(t, got, 1)
	assert.Equal(t, parts, got[0].Content.Parts)
}
