// Package types holds the JSON payloads of the companiond HTTP API.
package types

// ModelInfo describes one catalog entry for GET /models.
type ModelInfo struct {
	// Catalog name of the model.
	// example: qwen3-0.6b
	Name string `json:"name" example:"qwen3-0.6b"`
	// Resolved model file on disk; empty when the file is not present.
	// example: /home/user/models/Qwen3-0.6B-Q4_K_M.gguf
	Path string `json:"path,omitempty" example:"/home/user/models/Qwen3-0.6B-Q4_K_M.gguf"`
	// Remote source the file would be downloaded from (informational).
	URL string `json:"url,omitempty"`
	// Whether the model file is present locally.
	// example: true
	Available bool `json:"available" example:"true"`
	// Preferred compute backend ("", default, accelerated).
	// example: accelerated
	Backend string `json:"backend,omitempty" example:"accelerated"`
	// Whether think spans are shown.
	Thinking bool `json:"thinking"`
	// Context window in tokens.
	// example: 2048
	MaxTokens int `json:"max_tokens" example:"2048"`
	// Whether this is the currently selected model.
	Selected bool `json:"selected"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of catalog models.
	Models []ModelInfo `json:"models"`
}

// SelectRequest is the body of POST /select.
type SelectRequest struct {
	// Catalog name of the model to select.
	// example: qwen3-0.6b
	Model string `json:"model" example:"qwen3-0.6b"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	// User prompt appended to the conversation.
	// example: Tell me a short story.
	Prompt string `json:"prompt" example:"Tell me a short story."`
}

// Usage reports token accounting of one reply.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatChunk is one NDJSON line of the POST /chat stream. Exactly one of the
// final forms (done, cancelled, error) ends the stream.
type ChatChunk struct {
	Token     string `json:"token,omitempty"`
	Done      bool   `json:"done,omitempty"`
	Usage     *Usage `json:"usage,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
	Error     string `json:"error,omitempty"`
	// Machine readable error class: budget_exceeded, generation_failed, closed.
	Code string `json:"code,omitempty"`
}

// Turn is one entry of the conversation history.
type Turn struct {
	// example: user
	Role string `json:"role" example:"user"`
	Text string `json:"text"`
}

// BudgetInfo reports the context window accounting of a session.
type BudgetInfo struct {
	// example: 2048
	Max int `json:"max" example:"2048"`
	// example: 256
	Reserved int `json:"reserved" example:"256"`
	// example: 150
	Consumed int `json:"consumed" example:"150"`
	// example: 1642
	Remaining int `json:"remaining" example:"1642"`
}

// SessionResponse is returned by GET /session.
type SessionResponse struct {
	// example: 7b0f3c9e-6f1e-4de4-9a53-51b2a0a3d0c1
	ID string `json:"id" example:"7b0f3c9e-6f1e-4de4-9a53-51b2a0a3d0c1"`
	// example: qwen3-0.6b
	Model string `json:"model" example:"qwen3-0.6b"`
	// Session state: idle, generating, cancelled, failed.
	// example: idle
	State string `json:"state" example:"idle"`
	// Failure reason when state is failed.
	Error   string     `json:"error,omitempty"`
	History []Turn     `json:"history"`
	Budget  BudgetInfo `json:"budget"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Manager state: unselected, loading, ready, failed.
	// example: ready
	State string `json:"state" example:"ready"`
	// Selected model name, if any.
	// example: qwen3-0.6b
	Model string `json:"model,omitempty" example:"qwen3-0.6b"`
	// Resolved model file of the loaded handle.
	Path string `json:"path,omitempty"`
	// Runtime performing generation.
	// example: llama
	Runtime string `json:"runtime" example:"llama"`
	// Last load error observed by the manager (if any).
	Error string `json:"error,omitempty"`
	// Active session, if a model is loaded.
	Session *SessionResponse `json:"session,omitempty"`
	// Total number of successful model loads.
	// example: 3
	LoadsTotal uint64 `json:"loads_total" example:"3"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// EventMessage is one NDJSON line of GET /events.
type EventMessage struct {
	// example: ready
	Name string `json:"name" example:"ready"`
	// example: qwen3-0.6b
	Model  string         `json:"model,omitempty" example:"qwen3-0.6b"`
	Fields map[string]any `json:"fields,omitempty"`
	// example: 1700000000
	TimeUnix int64 `json:"time_unix" example:"1700000000"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
