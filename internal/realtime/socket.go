// Package realtime implements the websocket chat session controller: it owns
// the live connection lifecycle, drives the upstream streaming call, relays
// incremental events to the client, and persists completed turns.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/opalchat/opal/internal/chat"
	"github.com/opalchat/opal/internal/db"
	"github.com/opalchat/opal/internal/logging"
	"github.com/opalchat/opal/internal/svc"
	"github.com/opalchat/opal/internal/upstream"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Upper bound for one streamed upstream turn.
	turnTimeout = 5 * time.Minute

	// Maximum inbound frame size. The client resends the full history
	// each turn, so this is generous.
	maxMessageSize = 1 << 20
)

// errClientGone marks a write failure caused by the peer disconnecting.
var errClientGone = errors.New("client connection closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewSessionSentinel is the path segment that requests a fresh session.
const NewSessionSentinel = "new"

// ChatHandler returns the HTTP handler for the chat websocket endpoint.
// The route carries either an existing session id or the "new" sentinel.
func ChatHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionParam := chi.URLParam(r, "session")

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Errorf("WebSocket upgrade error: %v", err)
			return
		}

		c := &connection{svcCtx: svcCtx, ws: ws}
		c.serve(r.Context(), sessionParam)
	}
}

// connection is one live chat socket. All reads and writes happen on the
// handler goroutine; turns are processed strictly in arrival order.
type connection struct {
	svcCtx *svc.ServiceContext
	ws     *websocket.Conn
}

func (c *connection) serve(ctx context.Context, sessionParam string) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("Chat connection panic: %v\n%s", r, debug.Stack())
		}
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)

	sess, ok := c.attach(ctx, sessionParam)
	if !ok {
		return
	}

	turns := 0
	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			// Disconnection is not an error.
			break
		}

		// The frame counts as activity even if the turn fails mid-stream;
		// the user message is persisted before the upstream call.
		turns++

		if err := c.handleTurn(ctx, sess, frame); err != nil {
			if errors.Is(err, errClientGone) {
				break
			}
			logging.Errorf("Chat turn failed for session %s: %v", sess.ID, err)
			return
		}
	}

	if turns > 0 {
		delay := time.Duration(c.svcCtx.Config.Memory.InactivityDelaySeconds) * time.Second
		c.svcCtx.Memory.Schedule(sess.ID, time.Now(), delay)
	} else {
		logging.Infof("Session %s disconnected with no new messages, skipping summary", sess.ID)
	}
}

// attach resolves the session for this connection: the "new" sentinel creates
// one bound to the currently selected model, anything else must exist.
// Unknown ids close the socket with a policy violation.
func (c *connection) attach(ctx context.Context, sessionParam string) (*db.Session, bool) {
	var sess *db.Session

	if sessionParam == NewSessionSentinel {
		model := c.svcCtx.Models.Current()
		created, err := c.svcCtx.DB.CreateSession(ctx, uuid.New().String(), model)
		if err != nil {
			logging.Errorf("Failed to create session: %v", err)
			c.send(errorEvent("Error creating session"))
			return nil, false
		}
		sess = created
		if err := c.send(sessionCreatedEvent(sess.ID, model)); err != nil {
			return nil, false
		}
		logging.Infof("New chat session %s (model %s)", sess.ID, c.svcCtx.Models.DisplayName(model))
	} else {
		found, err := c.svcCtx.DB.GetSession(ctx, sessionParam)
		if err != nil {
			msg := "Session not found"
			if !errors.Is(err, db.ErrSessionNotFound) {
				msg = fmt.Sprintf("Error loading session: %v", err)
			}
			c.send(errorEvent(msg))
			c.closePolicyViolation(msg)
			return nil, false
		}
		sess = found
		logging.Infof("Resuming chat session %s (model %s)", sess.ID, c.svcCtx.Models.DisplayName(sess.ModelUsed))
	}

	if err := c.svcCtx.DB.TouchSession(ctx, sess.ID, time.Now()); err != nil {
		logging.Errorf("Failed to stamp session %s: %v", sess.ID, err)
	}
	return sess, true
}

// handleTurn processes one inbound client frame: persist the user message,
// assemble the upstream request, stream the reply back, persist the result.
// Upstream failures are reported to the client and do not end the connection.
func (c *connection) handleTurn(ctx context.Context, sess *db.Session, frame []byte) error {
	if err := c.svcCtx.DB.TouchSession(ctx, sess.ID, time.Now()); err != nil {
		return err
	}

	// Reconcile against the process-wide selected model.
	if current := c.svcCtx.Models.Current(); sess.ModelUsed != current {
		if err := c.svcCtx.DB.UpdateSessionModel(ctx, sess.ID, current); err != nil {
			return err
		}
		sess.ModelUsed = current
		logging.Infof("Model updated to %s for session %s", c.svcCtx.Models.DisplayName(current), sess.ID)
	}

	var history []chat.HistoryMessage
	if err := json.Unmarshal(frame, &history); err != nil {
		return fmt.Errorf("malformed client frame: %w", err)
	}
	if len(history) == 0 {
		return fmt.Errorf("client frame carries no messages")
	}

	// Persist the inbound user message before calling upstream.
	last := history[len(history)-1]
	userBlob := chat.EncodeUserPayload(last.Content.PlainText(), last.Images)
	if _, err := c.svcCtx.DB.AppendMessage(ctx, uuid.New().String(), sess.ID, "user", userBlob); err != nil {
		return fmt.Errorf("failed to persist user message: %w", err)
	}

	profileJSON, err := c.svcCtx.DB.GetProfileJSON(ctx)
	if err != nil {
		logging.Errorf("Failed to load memory profile: %v", err)
		profileJSON = "{}"
	}

	req := &upstream.ChatRequest{
		Model:    sess.ModelUsed,
		Messages: chat.BuildMessages(profileJSON, history, c.svcCtx.Config.CacheWindow),
	}
	if c.svcCtx.Config.IsImageGenerationModel(sess.ModelUsed) {
		req.Modalities = []string{"image", "text"}
	}
	if maxTokens, ok := c.svcCtx.Config.ReasoningMaxTokens[sess.ModelUsed]; ok {
		req.MaxTokens = maxTokens
	}

	return c.relayStream(ctx, sess, req)
}

// relayStream consumes the upstream stream, forwarding deltas to the client
// as they arrive, then persists the assembled assistant message.
func (c *connection) relayStream(ctx context.Context, sess *db.Session, req *upstream.ChatRequest) error {
	streamCtx, cancel := context.WithTimeout(ctx, turnTimeout)
	defer cancel()

	events := c.svcCtx.Upstream.Stream(streamCtx, req)

	var content, reasoning strings.Builder
	var images []string
	failed := false

consume:
	for ev := range events {
		switch ev.Type {
		case upstream.EventTypeReasoning:
			reasoning.WriteString(ev.Text)
			if err := c.send(reasoningEvent(ev.Text)); err != nil {
				cancel()
				return err
			}
		case upstream.EventTypeContent:
			content.WriteString(ev.Text)
			if err := c.send(chatMessageEvent(ev.Text)); err != nil {
				cancel()
				return err
			}
		case upstream.EventTypeImage:
			if containsString(images, ev.Image) {
				continue
			}
			images = append(images, ev.Image)
			if err := c.send(imageEvent(ev.Image)); err != nil {
				cancel()
				return err
			}
		case upstream.EventTypeError:
			logging.Errorf("Upstream stream failed for session %s: %v", sess.ID, ev.Err)
			if err := c.send(errorEvent(fmt.Sprintf("API error: %v", ev.Err))); err != nil {
				cancel()
				return err
			}
			failed = true
			break consume
		case upstream.EventTypeDone:
			break consume
		}
	}

	if !failed {
		payload := chat.Payload{
			Content:   content.String(),
			Reasoning: reasoning.String(),
			Images:    images,
		}
		if blob, ok := chat.EncodeAssistantPayload(payload); ok {
			if _, err := c.svcCtx.DB.AppendMessage(ctx, uuid.New().String(), sess.ID, "assistant", blob); err != nil {
				logging.Errorf("Failed to persist assistant message for session %s: %v", sess.ID, err)
			}
		}
	}

	return c.send(streamEndEvent())
}

// send writes one event frame. Write failures mean the peer is gone.
func (c *connection) send(ev Event) error {
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(ev); err != nil {
		return fmt.Errorf("%w: %v", errClientGone, err)
	}
	return nil
}

// closePolicyViolation sends a 1008 close frame for client protocol errors.
func (c *connection) closePolicyViolation(reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
