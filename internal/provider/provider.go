// Package provider defines the Provider interface and the upstream LLM adapter.
//
// The rest of blogsmith works with the unified types in this file, so the
// blog generator never needs to know how the upstream API spells its JSON.
package provider

import "context"

// Provider is the interface an upstream completion backend must satisfy.
type Provider interface {
	// Name returns the provider identifier, e.g. "groq". Used for logging
	// and metrics labels.
	Name() string

	// ChatCompletion sends one request and returns the complete response.
	// There is no streaming path: the caller always waits for the full text.
	//
	// ctx carries cancellation and deadlines; adapters must tie their HTTP
	// call to it.
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// ---------------------------------------------------------------------------
// Unified request types
// ---------------------------------------------------------------------------

// ChatRequest is the internal representation of a chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"` // 0 = let the provider decide
}

// Message is a single role + content pair, OpenAI style.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// ---------------------------------------------------------------------------
// Unified response types
// ---------------------------------------------------------------------------

// ChatResponse is a complete chat completion response.
type ChatResponse struct {
	ID      string // response ID from the provider
	Model   string // the model the provider reports having used
	Content string // generated text; empty when the provider sent null
	Usage   Usage
}

// Usage holds token counts. They feed the token metrics only.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
