package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ---------------------------------------------------------------------------
// GroqProvider struct + constructor
// ---------------------------------------------------------------------------

// GroqProvider implements the Provider interface for Groq's OpenAI-compatible
// chat completions API: translate our unified ChatRequest into the wire
// format, make the HTTP call, translate the reply back.
type GroqProvider struct {
	apiKey  string
	baseURL string // e.g. "https://api.groq.com/openai/v1"
	client  *http.Client
}

// NewGroqProvider creates a GroqProvider ready to make API calls. The
// *http.Client is injected so main can set the upstream timeout and tests
// can swap in a recorder-backed transport.
func NewGroqProvider(apiKey, baseURL string, client *http.Client) *GroqProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &GroqProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  client,
	}
}

// GroqDisplayName is how the provider is named in client-facing errors.
const GroqDisplayName = "Groq"

// Name returns the provider identifier.
func (g *GroqProvider) Name() string {
	return "groq"
}

// ---------------------------------------------------------------------------
// Groq API types (unexported)
// ---------------------------------------------------------------------------

// --- Request types ---

// groqRequest is the request body for POST /chat/completions.
type groqRequest struct {
	Model       string        `json:"model"`
	Messages    []groqMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// --- Response types ---

// groqResponse is the top-level reply from /chat/completions.
type groqResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []groqChoice `json:"choices"`
	Usage   groqUsage    `json:"usage"`
}

type groqChoice struct {
	Index        int                 `json:"index"`
	Message      groqResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

// groqResponseMessage differs from groqMessage in one way: content may be
// JSON null, so it decodes into a pointer.
type groqResponseMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type groqUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// groqErrorBody is the error envelope Groq returns on non-2xx responses:
//
//	{"error":{"message":"Invalid API Key","type":"invalid_request_error","code":"invalid_api_key"}}
type groqErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// ErrNoChoices is returned when the provider answers 200 with an empty
// choices array.
var ErrNoChoices = errors.New("response contained no choices")

// APIError is a non-200 reply from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("groq API error (status %d): %s", e.StatusCode, e.Message)
}

// ---------------------------------------------------------------------------
// Request translation
// ---------------------------------------------------------------------------

func toGroqRequest(req *ChatRequest) *groqRequest {
	gr := &groqRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, msg := range req.Messages {
		gr.Messages = append(gr.Messages, groqMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return gr
}

// ---------------------------------------------------------------------------
// ChatCompletion
// ---------------------------------------------------------------------------

// ChatCompletion sends a request to {baseURL}/chat/completions and returns
// the first choice as a ChatResponse.
//
// The flow: translate → serialize → HTTP POST → decode → translate back.
func (g *GroqProvider) ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(toGroqRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", g.baseURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request to groq: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(httpResp)
	}

	var groqResp groqResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&groqResp); err != nil {
		return nil, fmt.Errorf("decoding groq response: %w", err)
	}

	if len(groqResp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	var text string
	if c := groqResp.Choices[0].Message.Content; c != nil {
		text = *c
	}

	return &ChatResponse{
		ID:      groqResp.ID,
		Model:   groqResp.Model,
		Content: text,
		Usage: Usage{
			PromptTokens:     groqResp.Usage.PromptTokens,
			CompletionTokens: groqResp.Usage.CompletionTokens,
			TotalTokens:      groqResp.Usage.TotalTokens,
		},
	}, nil
}

// decodeAPIError turns a non-200 response into an *APIError. When the body
// isn't Groq's JSON envelope the raw text (truncated) is used instead.
func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var envelope groqErrorBody
	msg := ""
	if err := json.Unmarshal(raw, &envelope); err == nil {
		msg = envelope.Error.Message
	}
	if msg == "" {
		msg = string(bytes.TrimSpace(raw))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
