package llm

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Reply is one canned answer of a ScriptedCompleter. When Err is set it is
// returned instead of Text.
type Reply struct {
	Text string
	Err  error
}

// ScriptedCompleter replays canned replies in order and records every prompt
// it receives. Once the script is exhausted the last reply is repeated.
type ScriptedCompleter struct {
	mu      sync.Mutex
	replies []Reply
	index   int
	prompts []Prompt
}

func NewScriptedCompleter(replies ...Reply) *ScriptedCompleter {
	return &ScriptedCompleter{replies: replies}
}

// NewScriptedTextCompleter is a shorthand for replies that all succeed.
func NewScriptedTextCompleter(texts ...string) *ScriptedCompleter {
	replies := make([]Reply, 0, len(texts))
	for _, t := range texts {
		replies = append(replies, Reply{Text: t})
	}
	return NewScriptedCompleter(replies...)
}

func (s *ScriptedCompleter) Complete(ctx context.Context, prompt Prompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, prompt)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(s.replies) == 0 {
		return "", errors.New("scripted completer has no replies")
	}

	r := s.replies[s.index]
	if s.index < len(s.replies)-1 {
		s.index++
	}
	return r.Text, r.Err
}

// Prompts returns a copy of the prompts received so far.
func (s *ScriptedCompleter) Prompts() []Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]Prompt, len(s.prompts))
	copy(ret, s.prompts)
	return ret
}

func (s *ScriptedCompleter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

var _ Completer = (*ScriptedCompleter)(nil)
