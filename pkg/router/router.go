// Package router decides how a query result is shown: small results are
// summarized in words next to the table, larger ones are charted.
package router

import (
	"context"

	"github.com/go-go-golems/datachat/pkg/db"
	"github.com/go-go-golems/datachat/pkg/metrics"
	"github.com/go-go-golems/datachat/pkg/synth"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultNarrativeThreshold is the row count from which results are charted.
const DefaultNarrativeThreshold = 6

type Path string

const (
	PathNarrative Path = "narrative"
	PathChart     Path = "chart"
)

type Narrator interface {
	Narrate(ctx context.Context, question string, table *db.Table) (string, error)
}

type ChartSynthesizer interface {
	SynthesizeChart(ctx context.Context, question string, table *db.Table) (*synth.Chart, error)
}

// Presenter renders the outcome of a route.
type Presenter interface {
	Narrative(question string, text string, table *db.Table) error
	Chart(question string, c *synth.Chart, table *db.Table) error
}

type Outcome struct {
	Path  Path
	Text  string
	Chart *synth.Chart
}

type Router struct {
	threshold int
	narrator  Narrator
	charts    ChartSynthesizer
	presenter Presenter
}

type Option func(*Router)

func WithThreshold(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.threshold = n
		}
	}
}

func New(narrator Narrator, charts ChartSynthesizer, presenter Presenter, opts ...Option) *Router {
	r := &Router{
		threshold: DefaultNarrativeThreshold,
		narrator:  narrator,
		charts:    charts,
		presenter: presenter,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Router) Threshold() int { return r.threshold }

// Choose returns the path for a result with the given number of rows.
func (r *Router) Choose(rows int) Path {
	if rows < r.threshold {
		return PathNarrative
	}
	return PathChart
}

// Route narrates or charts table and hands the result to the presenter.
func (r *Router) Route(ctx context.Context, question string, table *db.Table) (*Outcome, error) {
	if table == nil {
		return nil, errors.New("no result table")
	}
	path := r.Choose(table.Len())
	metrics.ObserveRoute(string(path))
	log.Debug().Int("rows", table.Len()).Int("threshold", r.threshold).Str("path", string(path)).Msg("routing result")

	switch path {
	case PathNarrative:
		text, err := r.narrator.Narrate(ctx, question, table)
		if err != nil {
			return nil, err
		}
		if err := r.presenter.Narrative(question, text, table); err != nil {
			return nil, errors.Wrap(err, "present narrative")
		}
		return &Outcome{Path: path, Text: text}, nil

	default:
		c, err := r.charts.SynthesizeChart(ctx, question, table)
		if err != nil {
			return nil, err
		}
		if err := r.presenter.Chart(question, c, table); err != nil {
			return nil, errors.Wrap(err, "present chart")
		}
		return &Outcome{Path: path, Chart: c}, nil
	}
}
