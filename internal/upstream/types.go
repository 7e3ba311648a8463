package upstream

import (
	"encoding/json"
	"fmt"
)

// Message is one entry of a chat-completions request.
type Message struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// MessageContent is either plain text or a list of typed content parts.
// Exactly one of Text/Parts is meaningful; Parts wins when non-nil.
type MessageContent struct {
	Text  string
	Parts []ContentPart
}

// ContentPart is a typed element of structured message content. Parts parsed
// from the wire keep their raw JSON so provider-specific fields (image_url,
// input_audio, ...) survive the round trip to the upstream untouched.
type ContentPart struct {
	Type         string
	Text         string
	CacheControl *CacheControl

	raw json.RawMessage
}

// CacheControl marks a content part for upstream prompt caching.
type CacheControl struct {
	Type string `json:"type"`
}

// UnmarshalJSON captures the full raw part alongside the fields this
// service inspects.
func (p *ContentPart) UnmarshalJSON(data []byte) error {
	var known struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	p.Type = known.Type
	p.Text = known.Text
	p.CacheControl = nil
	p.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON re-emits the original raw part when one was parsed, overlaying
// cache_control only if set; locally built parts marshal from their fields.
func (p ContentPart) MarshalJSON() ([]byte, error) {
	if p.raw != nil {
		if p.CacheControl == nil {
			return p.raw, nil
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(p.raw, &fields); err != nil {
			return nil, err
		}
		cc, err := json.Marshal(p.CacheControl)
		if err != nil {
			return nil, err
		}
		fields["cache_control"] = cc
		return json.Marshal(fields)
	}

	type part struct {
		Type         string        `json:"type"`
		Text         string        `json:"text,omitempty"`
		CacheControl *CacheControl `json:"cache_control,omitempty"`
	}
	return json.Marshal(part{Type: p.Type, Text: p.Text, CacheControl: p.CacheControl})
}

// MarshalJSON encodes Parts as an array when present, plain text otherwise.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts either a JSON string or an array of content parts.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		c.Text = text
		c.Parts = nil
		return nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err == nil {
		c.Parts = parts
		c.Text = ""
		return nil
	}
	return fmt.Errorf("message content is neither a string nor a part list")
}

// IsPlain reports whether the content is a plain text string.
func (c MessageContent) IsPlain() bool {
	return c.Parts == nil
}

// PlainText returns the textual content: the string itself for plain
// content, or the concatenated text parts for structured content.
func (c MessageContent) PlainText() string {
	if c.Parts == nil {
		return c.Text
	}
	var b []byte
	for _, p := range c.Parts {
		b = append(b, p.Text...)
	}
	return string(b)
}

// TextMessage builds a message with plain string content.
func TextMessage(role, text string) Message {
	return Message{Role: role, Content: MessageContent{Text: text}}
}

// PartsMessage builds a message with structured part content.
func PartsMessage(role string, parts ...ContentPart) Message {
	return Message{Role: role, Content: MessageContent{Parts: parts}}
}

// ChatRequest is the payload for the chat-completions endpoint.
type ChatRequest struct {
	Model      string    `json:"model"`
	Messages   []Message `json:"messages"`
	Stream     bool      `json:"stream,omitempty"`
	Modalities []string  `json:"modalities,omitempty"`
	MaxTokens  int       `json:"max_tokens,omitempty"`
}

// EventType identifies the kind of a streaming event.
type EventType int

const (
	EventTypeContent EventType = iota
	EventTypeReasoning
	EventTypeImage
	EventTypeDone
	EventTypeError
)

// StreamEvent is one incremental result from a streaming chat call.
type StreamEvent struct {
	Type  EventType
	Text  string // content or reasoning delta
	Image string // image URL
	Err   error
}
