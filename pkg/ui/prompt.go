package ui

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/tcnksm/go-input"
)

// ErrQuit is returned by Prompter.Ask when the user ends the chat.
var ErrQuit = errors.New("quit")

// Prompter reads questions from the user.
type Prompter struct {
	ui     *input.UI
	in     *lineReader
	prompt string
}

func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	in := &lineReader{r: bufio.NewReader(r)}
	return &Prompter{
		ui: &input.UI{
			Reader: in,
			Writer: w,
		},
		in:     in,
		prompt: "\nAsk a question about your data (/help for commands)",
	}
}

// Ask blocks until a non-empty line is entered. End of input and interrupts
// are reported as ErrQuit.
func (p *Prompter) Ask() (string, error) {
	for {
		answer, err := p.ui.Ask(p.prompt, &input.Options{
			HideOrder: true,
		})
		if err != nil {
			if errors.Is(err, input.ErrInterrupted) || errors.Is(err, io.EOF) || p.in.eof {
				return "", ErrQuit
			}
			return "", errors.Wrap(err, "read question")
		}
		if answer = strings.TrimSpace(answer); answer != "" {
			return answer, nil
		}
		if p.in.eof {
			return "", ErrQuit
		}
	}
}

// lineReader hands out one byte per Read. input.UI wraps its reader in a new
// bufio.Reader on every question, which must not consume past the line.
type lineReader struct {
	r   *bufio.Reader
	eof bool
}

func (l *lineReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	b, err := l.r.ReadByte()
	if err != nil {
		if err == io.EOF {
			l.eof = true
		}
		return 0, err
	}
	p[0] = b
	return 1, nil
}
