// Package llm defines the runtime boundary the session manager depends on and
// the runtimes that implement it:
//
//   - In-process llama.cpp via go-llama.cpp, built with `-tags=llama`
//     (llama.go). Without the tag llama_stub.go fails fast at Load.
//   - llama.cpp's llama-server, spawned per loaded model or attached to an
//     already running instance (server.go, server_proc.go). Streaming goes
//     through the OpenAI-compatible chat API.
//
// Keep this surface small; heavy lifting stays in native code.
package llm

import (
	"context"

	"companiond/internal/catalog"
)

// Role tags a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of a conversation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// SamplingParams are the decoding parameters of one generation.
type SamplingParams struct {
	Temperature float32
	TopK        int
	TopP        float32
	// MaxTokens caps the reply length; 0 leaves it to the runtime.
	MaxTokens int
	Seed      int
	Thinking  bool
}

// LoadOptions are applied once when a model file is loaded.
type LoadOptions struct {
	Backend     catalog.Backend
	ContextSize int
	Threads     int
	Sampling    SamplingParams
}

// Runtime loads model files into engines.
type Runtime interface {
	// Name identifies the runtime in logs and status output.
	Name() string
	// Load allocates the runtime resources for the model file at path.
	Load(ctx context.Context, path string, opts LoadOptions) (Engine, error)
}

// Engine is a loaded model. Engines are not safe for concurrent Generate
// calls; the session layer guarantees a single caller.
type Engine interface {
	// Tokenize returns the token ids of text.
	Tokenize(text string) ([]int32, error)
	// Generate streams the reply to turns. onToken is invoked for each piece
	// of generated text; a non-nil return stops generation and is returned.
	// Implementations must return when ctx is canceled.
	Generate(ctx context.Context, turns []Turn, params SamplingParams, onToken func(string) error) (FinalResult, error)
	// Close releases the engine's resources.
	Close() error
}

// FinalResult summarizes the generation after streaming.
type FinalResult struct {
	Content      string
	Usage        Usage
	FinishReason string
}

// Usage contains token accounting.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// SamplingFrom maps a descriptor's decoding fields.
func SamplingFrom(d catalog.Descriptor) SamplingParams {
	return SamplingParams{
		Temperature: d.Temperature,
		TopK:        d.TopK,
		TopP:        d.TopP,
		Thinking:    d.Thinking,
	}
}
