package synth

import (
	"context"
	"strings"

	"github.com/go-go-golems/datachat/pkg/db"
	"github.com/go-go-golems/datachat/pkg/llm"
	"github.com/go-go-golems/datachat/pkg/prompts"
	"github.com/pkg/errors"
)

// Narrator summarizes a small result set in plain language. It makes a single
// model call; there is nothing to validate in free text.
type Narrator struct {
	completer llm.Completer
	tmpl      prompts.Template
	maxLines  int
}

type narrativePromptData struct {
	Question string
	Rows     [][]any
	Table    string
}

func NewNarrator(completer llm.Completer, tmpl *prompts.Template) *Narrator {
	n := &Narrator{completer: completer, tmpl: prompts.Default().Narrative, maxLines: 50}
	if tmpl != nil {
		n.tmpl = *tmpl
	}
	return n
}

func (n *Narrator) Narrate(ctx context.Context, question string, table *db.Table) (string, error) {
	if table == nil {
		return "", errors.New("no result table")
	}
	p, err := n.tmpl.Render(narrativePromptData{
		Question: question,
		Rows:     table.Rows,
		Table:    table.Text(n.maxLines),
	})
	if err != nil {
		return "", err
	}
	text, err := n.completer.Complete(ctx, p)
	if err != nil {
		return "", errors.Wrap(err, "narrate result")
	}
	return strings.TrimSpace(text), nil
}
