// Package types defines the REST surface's request and response shapes.
package types

// HealthResponse is returned by the health check endpoint
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// ModelCatalogResponse lists the available models and the current selection
type ModelCatalogResponse struct {
	AvailableModels map[string]string `json:"available_models"`
	CurrentModel    string            `json:"current_model"`
}

// SelectModelResponse confirms a model selection
type SelectModelResponse struct {
	Message      string `json:"message"`
	CurrentModel string `json:"current_model"`
	ModelName    string `json:"model_name"`
}

// SessionSummary is one entry of the session list
type SessionSummary struct {
	Id        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

// GetSessionRequest fetches one session with its messages
type GetSessionRequest struct {
	SessionId string `path:"session_id"`
}

// SessionMessage is one content-unwrapped message of a session
type SessionMessage struct {
	Id        string   `json:"id"`
	SessionId string   `json:"session_id"`
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	Reasoning string   `json:"reasoning,omitempty"`
	Images    []string `json:"images"`
	CreatedAt string   `json:"created_at"`
}

// GetSessionResponse is a session with its messages
type GetSessionResponse struct {
	Id        string           `json:"id"`
	CreatedAt string           `json:"created_at"`
	ModelUsed string           `json:"model_used"`
	Messages  []SessionMessage `json:"messages"`
}
