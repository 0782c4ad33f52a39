package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one entry of the chat history. Turns are never changed
// once appended.
type ConversationTurn struct {
	ID      uuid.UUID `json:"id"`
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

type TurnOption func(*ConversationTurn)

func WithTime(t time.Time) TurnOption {
	return func(ct *ConversationTurn) {
		ct.Time = t
	}
}

func NewTurn(role Role, content string, options ...TurnOption) ConversationTurn {
	ret := ConversationTurn{
		ID:      uuid.New(),
		Role:    role,
		Content: content,
		Time:    time.Now(),
	}
	for _, o := range options {
		o(&ret)
	}
	return ret
}

func (t ConversationTurn) String() string {
	return fmt.Sprintf("[%s]: %s", t.Role, strings.TrimRight(t.Content, "\n"))
}

// History is the append-only list of turns of a session.
type History struct {
	mu    sync.RWMutex
	turns []ConversationTurn
}

func (h *History) Append(t ConversationTurn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, t)
}

// Turns returns a copy of the history.
func (h *History) Turns() []ConversationTurn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ret := make([]ConversationTurn, len(h.turns))
	copy(ret, h.turns)
	return ret
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}
