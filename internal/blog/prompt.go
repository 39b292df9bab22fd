// Package blog turns a blog-topic request into a prompt and runs it against
// the upstream completion provider.
package blog

import (
	"fmt"
	"strings"
)

// DefaultWords is the target length used when a request omits "words".
const DefaultWords = 800

// promptSeparator joins prompt lines. The trailing space before each
// newline is what the upstream model has always been given.
const promptSeparator = " \n"

// Request is the body of POST /generate-blog.
//
// Words is a pointer so JSON null can be told apart from an absent field:
// absent means DefaultWords (see NewRequest), null means no length line.
type Request struct {
	Topic   string `json:"topic" validate:"required"`
	Style   string `json:"style"`
	Words   *int   `json:"words"`
	Outline bool   `json:"outline"`
}

// NewRequest returns a Request pre-filled with the defaults that apply when
// a JSON body leaves a field out. Decode into it rather than a zero Request.
func NewRequest() Request {
	words := DefaultWords
	return Request{Words: &words}
}

// Result is the body of a successful POST /generate-blog response.
type Result struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

// BuildPrompt assembles the instruction sent upstream. Line order is fixed;
// the length, style and outline lines appear only when their field is set.
// words is passed through unchecked, negative or huge values included.
func BuildPrompt(req Request) string {
	lines := []string{
		fmt.Sprintf("Write a high-quality blog post about: %s.", req.Topic),
	}
	if req.Words != nil && *req.Words != 0 {
		lines = append(lines, fmt.Sprintf("Target length: ~%d words.", *req.Words))
	}
	if req.Style != "" {
		lines = append(lines, fmt.Sprintf("Style: %s.", req.Style))
	}
	if req.Outline {
		lines = append(lines, "Include an outline first, then the full article.")
	}
	lines = append(lines,
		"Use headings (H2/H3), short paragraphs, and bullet points where helpful.",
		"Add an engaging introduction and a concise conclusion.",
	)
	return strings.Join(lines, promptSeparator)
}
