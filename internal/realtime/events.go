package realtime

// Event is one server-to-client frame on the chat socket.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	ModelUsed string `json:"model_used,omitempty"`
	Message   string `json:"message,omitempty"`
	Content   string `json:"content,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
}

func sessionCreatedEvent(sessionID, model string) Event {
	return Event{Type: "session_created", SessionID: sessionID, ModelUsed: model}
}

func errorEvent(message string) Event {
	return Event{Type: "error", Message: message}
}

func reasoningEvent(delta string) Event {
	return Event{Type: "reasoning", Content: delta}
}

func chatMessageEvent(delta string) Event {
	return Event{Type: "chat_message", Content: delta}
}

func imageEvent(url string) Event {
	return Event{Type: "image", ImageURL: url}
}

func streamEndEvent() Event {
	return Event{Type: "stream_end"}
}
