package ui

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
)

// Asker reads the next question of a chat.
type Asker interface {
	Ask() (string, error)
}

var _ Asker = &Prompter{}
var _ Asker = &InputPrompter{}

type InputKeyMap struct {
	Submit      key.Binding
	Quit        key.Binding
	HistoryPrev key.Binding
	HistoryNext key.Binding
}

var DefaultInputKeyMap = InputKeyMap{
	Submit:      key.NewBinding(key.WithKeys("enter")),
	Quit:        key.NewBinding(key.WithKeys("ctrl+c", "ctrl+d", "esc")),
	HistoryPrev: key.NewBinding(key.WithKeys("up")),
	HistoryNext: key.NewBinding(key.WithKeys("down")),
}

var hintStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
	Light: "#888888",
	Dark:  "#666666",
})

// inputModel edits a single question. Up and down walk through the
// questions asked earlier in the session.
type inputModel struct {
	textInput textinput.Model
	keyMap    InputKeyMap
	history   []string
	// historyIdx == len(history) while editing a fresh line
	historyIdx int
	draft      string

	answer string
	quit   bool
}

func newInputModel(history []string) inputModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about your data (/help for commands)"
	ti.Focus()

	return inputModel{
		textInput:  ti,
		keyMap:     DefaultInputKeyMap,
		history:    history,
		historyIdx: len(history),
	}
}

func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keyMap.Quit):
			m.quit = true
			return m, tea.Quit
		case key.Matches(msg, m.keyMap.Submit):
			answer := strings.TrimSpace(m.textInput.Value())
			if answer == "" {
				return m, nil
			}
			m.answer = answer
			return m, tea.Quit
		case key.Matches(msg, m.keyMap.HistoryPrev):
			if m.historyIdx > 0 {
				if m.historyIdx == len(m.history) {
					m.draft = m.textInput.Value()
				}
				m.historyIdx--
				m.textInput.SetValue(m.history[m.historyIdx])
				m.textInput.CursorEnd()
			}
			return m, nil
		case key.Matches(msg, m.keyMap.HistoryNext):
			if m.historyIdx < len(m.history) {
				m.historyIdx++
				if m.historyIdx == len(m.history) {
					m.textInput.SetValue(m.draft)
				} else {
					m.textInput.SetValue(m.history[m.historyIdx])
				}
				m.textInput.CursorEnd()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.quit || m.answer != "" {
		// leave the submitted line on screen
		return m.textInput.Prompt + m.answer + "\n"
	}
	return "\n" + m.textInput.View() + "\n" + hintStyle.Render("enter to ask, esc to quit") + "\n"
}

// InputPrompter reads questions with an interactive line editor. It is used
// when stdin is a terminal.
type InputPrompter struct {
	ctx     context.Context
	in      io.Reader
	out     io.Writer
	history []string
}

func NewInputPrompter(ctx context.Context, r io.Reader, w io.Writer) *InputPrompter {
	return &InputPrompter{ctx: ctx, in: r, out: w}
}

func (p *InputPrompter) Ask() (string, error) {
	program := tea.NewProgram(newInputModel(p.history),
		tea.WithContext(p.ctx),
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
	)
	final, err := program.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return "", ErrQuit
		}
		return "", errors.Wrap(err, "read question")
	}

	m, ok := final.(inputModel)
	if !ok || m.quit || m.answer == "" {
		return "", ErrQuit
	}
	p.history = append(p.history, m.answer)
	return m.answer, nil
}
