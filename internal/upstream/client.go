// Package upstream implements the OpenAI-compatible chat-completions client
// used for streaming turns. The SSE parsing is hand-rolled because the relay
// needs provider extensions (reasoning deltas, image chunks, cache_control)
// that SDK stream types do not surface.
package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opalchat/opal/internal/logging"
)

// streamTimeout bounds one full streaming completion, not individual chunks.
const streamTimeout = 5 * time.Minute

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the given endpoint.
// baseURL is the API root, e.g. "https://openrouter.ai/api/v1".
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: streamTimeout,
		},
	}
}

// streamChunk mirrors one SSE data frame of a streaming completion.
// Image lists appear on the delta for most providers, on the message for some.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string       `json:"content"`
			Reasoning string       `json:"reasoning"`
			Images    []chunkImage `json:"images"`
		} `json:"delta"`
		Message struct {
			Images []chunkImage `json:"images"`
		} `json:"message"`
	} `json:"choices"`
}

type chunkImage struct {
	URL      string `json:"url"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

// url returns the image URL regardless of which field the provider used.
func (i chunkImage) url() string {
	if i.ImageURL.URL != "" {
		return i.ImageURL.URL
	}
	return i.URL
}

// Stream sends a streaming chat-completions request and emits incremental
// events on the returned channel. All failures are delivered as error events;
// the channel is always closed when the stream ends.
func (c *Client) Stream(ctx context.Context, req *ChatRequest) <-chan StreamEvent {
	events := make(chan StreamEvent, 100)

	go func() {
		defer close(events)

		req.Stream = true
		body, err := json.Marshal(req)
		if err != nil {
			emit(ctx, events, StreamEvent{Type: EventTypeError, Err: fmt.Errorf("failed to marshal request: %w", err)})
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			emit(ctx, events, StreamEvent{Type: EventTypeError, Err: fmt.Errorf("failed to create request: %w", err)})
			return
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-Title", "opal")

		resp, err := c.client.Do(httpReq)
		if err != nil {
			emit(ctx, events, StreamEvent{Type: EventTypeError, Err: fmt.Errorf("request failed: %w", err)})
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			emit(ctx, events, StreamEvent{Type: EventTypeError, Err: fmt.Errorf("upstream error (%d): %s", resp.StatusCode, string(msg))})
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Text()

			// SSE format: "data: {...}"; blank lines and non-data lines are skipped
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "" {
				continue
			}
			if data == "[DONE]" {
				emit(ctx, events, StreamEvent{Type: EventTypeDone})
				return
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				logging.Warnf("skipping malformed stream chunk: %.200s", data)
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]

			if choice.Delta.Reasoning != "" {
				if !emit(ctx, events, StreamEvent{Type: EventTypeReasoning, Text: choice.Delta.Reasoning}) {
					return
				}
			}
			if choice.Delta.Content != "" {
				if !emit(ctx, events, StreamEvent{Type: EventTypeContent, Text: choice.Delta.Content}) {
					return
				}
			}

			images := choice.Delta.Images
			if len(images) == 0 {
				images = choice.Message.Images
			}
			for _, img := range images {
				if u := img.url(); u != "" {
					if !emit(ctx, events, StreamEvent{Type: EventTypeImage, Image: u}) {
						return
					}
				}
			}
		}

		if err := scanner.Err(); err != nil {
			emit(ctx, events, StreamEvent{Type: EventTypeError, Err: fmt.Errorf("stream read error: %w", err)})
			return
		}

		// Stream closed without an explicit [DONE]; treat as complete.
		emit(ctx, events, StreamEvent{Type: EventTypeDone})
	}()

	return events
}

// emit delivers one event unless the context is cancelled first. Without the
// guard, a consumer that stops draining the channel would strand this
// goroutine on a blocked send.
func emit(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
