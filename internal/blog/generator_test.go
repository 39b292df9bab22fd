package blog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/howard-nolan/blogsmith/internal/provider"
)

// fakeProvider lets each test decide what the upstream does.
type fakeProvider struct {
	complete func(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error)
	calls    atomic.Int32
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) ChatCompletion(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	f.calls.Add(1)
	return f.complete(ctx, req)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGenerate_Success(t *testing.T) {
	var got *provider.ChatRequest
	p := &fakeProvider{complete: func(_ context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
		got = req
		return &provider.ChatResponse{Model: "upstream-reported", Content: "# Post"}, nil
	}}

	g := NewGenerator(p, "Groq", "llama-3.1-8b-instant", 4, quietLogger())
	res, err := g.Generate(context.Background(), Request{Topic: "kites", Words: intPtr(300)})
	require.NoError(t, err)

	// The configured model is echoed, not whatever the provider reports.
	assert.Equal(t, &Result{Content: "# Post", Model: "llama-3.1-8b-instant"}, res)

	require.NotNil(t, got)
	assert.Equal(t, "llama-3.1-8b-instant", got.Model)
	assert.Equal(t, 0.7, got.Temperature)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, BuildPrompt(Request{Topic: "kites", Words: intPtr(300)}), got.Messages[0].Content)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestGenerate_EmptyContent(t *testing.T) {
	p := &fakeProvider{complete: func(context.Context, *provider.ChatRequest) (*provider.ChatResponse, error) {
		return &provider.ChatResponse{}, nil
	}}

	res, err := NewGenerator(p, "Groq", "m", 1, quietLogger()).Generate(context.Background(), Request{Topic: "t"})
	require.NoError(t, err)
	assert.Equal(t, "", res.Content)
	assert.Equal(t, "m", res.Model)
}

func TestGenerate_UpstreamFailureNoRetry(t *testing.T) {
	boom := errors.New("connection refused")
	p := &fakeProvider{complete: func(context.Context, *provider.ChatRequest) (*provider.ChatResponse, error) {
		return nil, boom
	}}

	_, err := NewGenerator(p, "Groq", "m", 1, quietLogger()).Generate(context.Background(), Request{Topic: "t"})
	require.Error(t, err)

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "Groq error: connection refused", err.Error())
	assert.Equal(t, int32(1), p.calls.Load(), "exactly one upstream call")
}

func TestGenerate_BoundedInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 2)

	p := &fakeProvider{complete: func(ctx context.Context, _ *provider.ChatRequest) (*provider.ChatResponse, error) {
		entered <- struct{}{}
		<-release
		return &provider.ChatResponse{Content: "ok"}, nil
	}}
	g := NewGenerator(p, "Groq", "m", 1, quietLogger())

	done := make(chan error, 1)
	go func() {
		_, err := g.Generate(context.Background(), Request{Topic: "first"})
		done <- err
	}()
	<-entered

	// The only slot is taken, so the second call waits until its context
	// expires and never reaches the provider.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := g.Generate(ctx, Request{Topic: "second"})

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestNewGenerator_Defaults(t *testing.T) {
	g := NewGenerator(&fakeProvider{}, "Groq", "m", 0, nil)
	assert.Equal(t, "m", g.Model())
	assert.NotNil(t, g.log)
	assert.True(t, g.slots.TryAcquire(1), "non-positive bound falls back to one slot")
}
