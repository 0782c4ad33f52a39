package synth

import (
	"context"

	"github.com/go-go-golems/datachat/pkg/chart"
	"github.com/go-go-golems/datachat/pkg/db"
	"github.com/go-go-golems/datachat/pkg/llm"
	"github.com/go-go-golems/datachat/pkg/parse"
	"github.com/go-go-golems/datachat/pkg/prompts"
	"github.com/go-go-golems/datachat/pkg/retry"
	"github.com/go-go-golems/datachat/pkg/sandbox"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var codeLanguages = []string{"javascript", "js"}

// Runner compiles and runs plotting code. *sandbox.Sandbox implements it.
type Runner interface {
	Compile(code string) (*sandbox.Program, error)
	Run(ctx context.Context, p *sandbox.Program, env sandbox.Env) (*chart.Figure, error)
}

// Chart is a rendered figure together with the code that produced it.
type Chart struct {
	Figure   *chart.Figure
	Code     string
	Attempts int
}

type chartPromptData struct {
	Question         string
	Columns          []string
	Rows             [][]any
	LastError        string
	PreviousResponse string
}

type VizSynthesizer struct {
	loop   *retry.Loop
	runner Runner
	tmpl   prompts.Template
	height int
}

type VizOption func(*VizSynthesizer)

func WithChartTemplate(t prompts.Template) VizOption {
	return func(s *VizSynthesizer) { s.tmpl = t }
}

func WithChartHeight(h int) VizOption {
	return func(s *VizSynthesizer) { s.height = h }
}

func NewVizSynthesizer(loop *retry.Loop, runner Runner, opts ...VizOption) *VizSynthesizer {
	s := &VizSynthesizer{
		loop:   loop,
		runner: runner,
		tmpl:   prompts.Default().Chart,
		height: chart.DefaultHeight,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SynthesizeChart generates plotting code for the table, checks its syntax,
// runs it and returns the figure. Syntax and runtime errors are sent back to
// the model together with the failing code until the attempt cap is reached.
func (s *VizSynthesizer) SynthesizeChart(ctx context.Context, question string, table *db.Table) (*Chart, error) {
	if s.runner == nil {
		return nil, errors.New("no code runner configured")
	}
	if table == nil {
		return nil, errors.New("no result table")
	}

	data := chartPromptData{
		Question: question,
		Columns:  table.Columns,
		Rows:     table.Rows,
	}
	env := sandbox.Env{
		Question: question,
		Columns:  table.Columns,
		Rows:     table.Rows,
	}

	prompt := func(rc retry.RetryContext) (llm.Prompt, error) {
		if rc.First() {
			return s.tmpl.Render(data)
		}
		d := data
		d.LastError = rc.LastError
		d.PreviousResponse = parse.ExtractPayload(rc.PreviousResponse, codeLanguages...)
		return s.tmpl.RenderCorrection(d)
	}

	handle := func(ctx context.Context, a *retry.Attempt, raw string) (*Chart, error) {
		code := parse.ExtractPayload(raw, codeLanguages...)

		a.Enter(retry.StateValidating)
		p, err := s.runner.Compile(code)
		if err != nil {
			return nil, retry.Recoverable(err)
		}

		a.Enter(retry.StateExecuting)
		fig, err := s.runner.Run(ctx, p, env)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			return nil, retry.Recoverable(err)
		}
		if s.height > 0 {
			fig = fig.WithHeight(s.height)
		}
		return &Chart{Figure: fig, Code: code, Attempts: a.Number}, nil
	}

	c, trace, err := retry.Run(ctx, s.loop, prompt, handle)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("title", c.Figure.Title()).
		Int("traces", len(c.Figure.Data)).
		Int("attempts", trace.Attempts).
		Msg("chart synthesized")
	return c, nil
}
