// Package memory maintains the long-term user profile: a bounded JSON object
// of inferred facts, regenerated in the background after conversations go idle.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/opalchat/opal/internal/chat"
	"github.com/opalchat/opal/internal/db"
	"github.com/opalchat/opal/internal/logging"
)

// minMessages is the minimum conversation length worth summarizing
// (roughly two user turns and two assistant turns).
const minMessages = 4

const updatePromptTemplate = `You are a highly intelligent entity tasked with creating a psychological and factual profile of a user based on their conversation.
Your goal is to update a JSON object that represents the user's memory profile.
Analyze the following conversation.
- Extract key facts, preferences, personality traits, and any other relevant information about the 'user'.
- DO NOT invent information. Only use what is explicitly stated or strongly implied in the text.
- Update the provided "Current Profile JSON". If a key already exists, update its value if new information contradicts or refines it. If the information is new, add a new key.
- Keep the profile concise and factual. Remove temporary or outdated information (e.g., 'currently looking for ideas').
- Your FINAL output MUST be ONLY the updated JSON object, and nothing else. No explanations, no introductory text.

Current Profile JSON:
%s

Conversation to Analyze:
---
%s
---

Updated Profile JSON:`

const shrinkPromptTemplate = `The following user profile JSON is too long. Your task is to summarize and shrink it.
- Keep the most essential, timeless, and important facts about the user.
- Remove any trivial, temporary, or less important details.
- The final output MUST be a valid JSON object, and it MUST be under %d characters.
- Output ONLY the final, shortened JSON. No explanations.

JSON to shrink:
%s`

// Summarizer regenerates the user profile from a session's conversation.
type Summarizer struct {
	store  *db.Store
	client openai.Client
	model  string
	limit  int
}

// NewSummarizer creates a summarizer talking to an OpenAI-compatible endpoint.
// limit is the maximum serialized profile length in characters.
func NewSummarizer(store *db.Store, apiKey, baseURL, model string, limit int) *Summarizer {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithRequestTimeout(2*time.Minute),
	)
	return &Summarizer{
		store:  store,
		client: client,
		model:  model,
		limit:  limit,
	}
}

// Regenerate rebuilds the user profile from the session's full conversation.
// It either commits one complete profile write or leaves the prior profile
// untouched; there are no partial updates. Safe to re-trigger.
func (s *Summarizer) Regenerate(ctx context.Context, sessionID string) error {
	messages, err := s.store.GetMessages(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}
	if len(messages) < minMessages {
		logging.Infof("Memory analysis skipped for session %s: not enough conversation", sessionID)
		return nil
	}

	currentProfile, err := s.store.GetProfileJSON(ctx)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	transcript := flattenTranscript(messages)

	candidate, err := s.complete(ctx, fmt.Sprintf(updatePromptTemplate, currentProfile, transcript), 2048)
	if err != nil {
		return fmt.Errorf("profile update call failed: %w", err)
	}

	if len(candidate) > s.limit {
		logging.Warnf("Profile over limit (%d > %d), shrinking", len(candidate), s.limit)
		candidate, err = s.complete(ctx, fmt.Sprintf(shrinkPromptTemplate, s.limit, candidate), 1024)
		if err != nil {
			return fmt.Errorf("profile shrink call failed: %w", err)
		}
	}

	if !json.Valid([]byte(candidate)) {
		return fmt.Errorf("summarizer returned invalid JSON")
	}

	if err := s.store.UpdateProfileJSON(ctx, candidate); err != nil {
		return fmt.Errorf("failed to persist profile: %w", err)
	}
	logging.Infof("Memory profile updated for session %s (%d chars)", sessionID, len(candidate))
	return nil
}

// complete issues one non-streaming completion constrained to a JSON object.
func (s *Summarizer) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens: openai.Int(int64(maxTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarizer returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// flattenTranscript reduces messages to "role: text" lines, unwrapping the
// payload blob and falling back to the raw content when unwrapping fails.
func flattenTranscript(messages []db.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		text := chat.DecodePayload(msg.Content).Content
		if text == "" {
			continue
		}
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}
