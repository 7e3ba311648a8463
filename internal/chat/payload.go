// Package chat holds the message payload encoding and the per-turn context
// assembly that builds the exact upstream message list.
package chat

import (
	"encoding/json"

	"github.com/opalchat/opal/internal/upstream"
)

// Payload is the structured content blob persisted for one message:
// text content, optional reasoning text, and an ordered list of image URLs.
type Payload struct {
	Content   string   `json:"content,omitempty"`
	Reasoning string   `json:"reasoning,omitempty"`
	Images    []string `json:"images,omitempty"`
}

// IsEmpty reports whether the payload carries nothing worth persisting.
func (p Payload) IsEmpty() bool {
	return p.Content == "" && p.Reasoning == "" && len(p.Images) == 0
}

// userPayload is the persisted shape of an inbound user message. Images is
// always present, matching the read side's expectations.
type userPayload struct {
	Content string   `json:"content"`
	Images  []string `json:"images"`
}

// EncodeUserPayload serializes a user turn for persistence.
func EncodeUserPayload(content string, images []string) string {
	if images == nil {
		images = []string{}
	}
	data, _ := json.Marshal(userPayload{Content: content, Images: images})
	return string(data)
}

// EncodeAssistantPayload serializes an assistant turn, dropping empty fields.
// Returns ok=false when every field is empty; such messages must not be persisted.
func EncodeAssistantPayload(p Payload) (string, bool) {
	if p.IsEmpty() {
		return "", false
	}
	data, _ := json.Marshal(p)
	return string(data), true
}

// DecodePayload unwraps a persisted content blob. Blobs that don't parse as
// a payload object are treated as raw plain text.
func DecodePayload(raw string) Payload {
	if raw == "" {
		return Payload{}
	}
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{Content: raw}
	}
	return p
}

// HistoryMessage is one client-supplied message of a turn's history.
// Content is a union: plain text or structured content parts.
type HistoryMessage struct {
	Role    string                  `json:"role"`
	Content upstream.MessageContent `json:"content"`
	Images  []string                `json:"images,omitempty"`
}
