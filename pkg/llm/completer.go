// Package llm contains the language model side of datachat: the Completer
// abstraction the synthesizers talk to, the OpenAI / Azure OpenAI engine, a
// scripted completer for tests and dry runs, and token counting.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Prompt is a single completion request. System carries the instructions and
// the schema, User carries the question (or the correction context).
type Prompt struct {
	System string `json:"system" yaml:"system"`
	User   string `json:"user" yaml:"user"`
}

func (p Prompt) String() string {
	return fmt.Sprintf("[system]: %s\n[user]: %s", strings.TrimRight(p.System, "\n"), strings.TrimRight(p.User, "\n"))
}

// Completer turns a prompt into raw model text. No structure is guaranteed:
// callers impose it by parsing the returned string.
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// CompleterFunc adapts a plain function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt Prompt) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt Prompt) (string, error) {
	return f(ctx, prompt)
}

var _ Completer = CompleterFunc(nil)
