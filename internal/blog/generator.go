package blog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/howard-nolan/blogsmith/internal/metrics"
	"github.com/howard-nolan/blogsmith/internal/provider"
)

// Temperature is sent with every upstream call.
const Temperature = 0.7

// UpstreamError wraps anything that went wrong while getting text out of the
// provider. Its message is what the client sees in the 502 body.
type UpstreamError struct {
	Provider string // display name, e.g. "Groq"
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Generator runs blog requests against one provider and model. At most
// maxInFlight upstream calls run at once; the rest wait for a slot.
type Generator struct {
	provider provider.Provider
	label    string
	model    string
	slots    *semaphore.Weighted
	log      *slog.Logger
}

// NewGenerator creates a Generator. label is the provider name used in
// error messages ("Groq"); model is sent upstream and echoed in results.
func NewGenerator(p provider.Provider, label, model string, maxInFlight int64, log *slog.Logger) *Generator {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Generator{
		provider: p,
		label:    label,
		model:    model,
		slots:    semaphore.NewWeighted(maxInFlight),
		log:      log,
	}
}

// Model returns the model name results are tagged with.
func (g *Generator) Model() string {
	return g.model
}

// Generate builds the prompt for req and makes exactly one upstream call.
// Every failure comes back as *UpstreamError; there are no retries.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	prompt := BuildPrompt(req)

	if err := g.slots.Acquire(ctx, 1); err != nil {
		return nil, &UpstreamError{Provider: g.label, Err: err}
	}
	defer g.slots.Release(1)

	metrics.LLMInFlight.Inc()
	defer metrics.LLMInFlight.Dec()

	name := g.provider.Name()
	start := time.Now()

	resp, err := g.provider.ChatCompletion(ctx, &provider.ChatRequest{
		Model:       g.model,
		Messages:    []provider.Message{{Role: "user", Content: prompt}},
		Temperature: Temperature,
	})

	metrics.LLMCallDuration.WithLabelValues(name, g.model).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(name, g.model, "error").Inc()
		g.log.ErrorContext(ctx, "upstream call failed",
			"provider", name,
			"model", g.model,
			"error", err,
		)
		return nil, &UpstreamError{Provider: g.label, Err: err}
	}

	metrics.LLMCallTotal.WithLabelValues(name, g.model, "ok").Inc()
	metrics.LLMTokensUsed.WithLabelValues(name, g.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(name, g.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	g.log.InfoContext(ctx, "blog generated",
		"provider", name,
		"model", g.model,
		"duration", time.Since(start),
		"total_tokens", resp.Usage.TotalTokens,
	)

	return &Result{Content: resp.Content, Model: g.model}, nil
}
