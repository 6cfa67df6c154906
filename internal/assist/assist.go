// Package assist sends a source file and its structural explanations to a
// chat-completion model and returns the model's prose. It is separate from
// the explainer, which never calls it.
package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Roles used in a chat request.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one role-tagged chat message.
type Message struct {
	Role    string
	Content string
}

// Request is a chat-completion request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float32
}

// Completer produces a response for a chat request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// SystemMessage is the fixed instruction sent with every elaboration.
const SystemMessage = "You explain Python code to a reader who is learning to program. " +
	"You are given the source and a list of one-line structural explanations produced by a parser. " +
	"Write a short plain-English summary of what the code does, using the explanations as a guide."

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("assist: empty response")

// Elaborate asks c to summarise source given its explanation lines. The
// request carries exactly two messages: SystemMessage and a user message
// holding the source and the explanations.
func Elaborate(ctx context.Context, c Completer, model string, temperature float32, source string, lines []string) (string, error) {
	req := Request{
		Model:       model,
		Temperature: temperature,
		Messages: []Message{
			{Role: RoleSystem, Content: SystemMessage},
			{Role: RoleUser, Content: UserMessage(source, lines)},
		},
	}
	out, err := c.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("assist: complete: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

// UserMessage formats source and lines into the user turn.
func UserMessage(source string, lines []string) string {
	var b strings.Builder
	b.WriteString("<source>\n")
	b.WriteString(source)
	if !strings.HasSuffix(source, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("</source>\n<explanations>\n")
	for _, line := range lines {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("</explanations>")
	return b.String()
}
