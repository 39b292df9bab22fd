package blog

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	lineOutline  = "Include an outline first, then the full article."
	lineHeadings = "Use headings (H2/H3), short paragraphs, and bullet points where helpful."
	lineClosing  = "Add an engaging introduction and a concise conclusion."
)

func intPtr(n int) *int { return &n }

func TestBuildPrompt_TopicOnly(t *testing.T) {
	got := BuildPrompt(Request{Topic: "sourdough"})

	want := strings.Join([]string{
		"Write a high-quality blog post about: sourdough.",
		lineHeadings,
		lineClosing,
	}, " \n")
	assert.Equal(t, want, got)

	assert.NotContains(t, got, "Target length")
	assert.NotContains(t, got, "Style:")
	assert.NotContains(t, got, lineOutline)
}

func TestBuildPrompt_AllFields(t *testing.T) {
	got := BuildPrompt(Request{
		Topic:   "Go generics",
		Style:   "technical",
		Words:   intPtr(1200),
		Outline: true,
	})

	lines := strings.Split(got, " \n")
	assert.Equal(t, []string{
		"Write a high-quality blog post about: Go generics.",
		"Target length: ~1200 words.",
		"Style: technical.",
		lineOutline,
		lineHeadings,
		lineClosing,
	}, lines)
}

func TestBuildPrompt_Words(t *testing.T) {
	got := BuildPrompt(Request{Topic: "t", Words: intPtr(500)})
	assert.Contains(t, got, "Target length: ~500 words.")

	// Zero means "no preference", same as leaving it out.
	assert.NotContains(t, BuildPrompt(Request{Topic: "t", Words: intPtr(0)}), "Target length")

	// No bounds are enforced.
	assert.Contains(t, BuildPrompt(Request{Topic: "t", Words: intPtr(-5)}), "Target length: ~-5 words.")
}

func TestBuildPrompt_Outline(t *testing.T) {
	assert.Contains(t, BuildPrompt(Request{Topic: "t", Outline: true}), lineOutline)
	assert.NotContains(t, BuildPrompt(Request{Topic: "t", Outline: false}), lineOutline)
}

func TestBuildPrompt_Style(t *testing.T) {
	assert.Contains(t, BuildPrompt(Request{Topic: "t", Style: "conversational"}), "Style: conversational.")
}

func TestNewRequest_DecodeDefaults(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantWords *int
		outline   bool
	}{
		{"absent words gets default", `{"topic":"x"}`, intPtr(DefaultWords), false},
		{"explicit words", `{"topic":"x","words":500}`, intPtr(500), false},
		{"null words clears default", `{"topic":"x","words":null}`, nil, false},
		{"outline true", `{"topic":"x","outline":true}`, intPtr(DefaultWords), true},
		{"outline null stays false", `{"topic":"x","outline":null}`, intPtr(DefaultWords), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewRequest()
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			assert.Equal(t, tt.wantWords, req.Words)
			assert.Equal(t, tt.outline, req.Outline)
		})
	}
}
