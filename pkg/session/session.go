// Package session ties the pipeline of one chat together. A Session owns the
// schema description, the database executor, the synthesizers, the router
// and the conversation history, and runs one turn at a time.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/go-go-golems/datachat/pkg/db"
	"github.com/go-go-golems/datachat/pkg/metrics"
	"github.com/go-go-golems/datachat/pkg/retry"
	"github.com/go-go-golems/datachat/pkg/router"
	"github.com/go-go-golems/datachat/pkg/synth"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Executor interface {
	Execute(ctx context.Context, sql string) (*db.Table, error)
}

type QuerySynthesizer interface {
	Synthesize(ctx context.Context, schemaText string, question string, opts ...synth.SynthesizeOption) (*synth.Query, error)
}

type Router interface {
	Route(ctx context.Context, question string, table *db.Table) (*router.Outcome, error)
}

// Presenter is the display side of a session.
type Presenter interface {
	router.Presenter
	Query(sql string) error
	Notice(msg string) error
	SetupError(msg string) error
}

type Outcome string

const (
	OutcomeOK            Outcome = "ok"
	OutcomeNoQuery       Outcome = "no_query"
	OutcomeModelDeclined Outcome = "model_declined"
	OutcomeAbandoned     Outcome = "abandoned"
	OutcomeSQLError      Outcome = "sql_error"
	OutcomeRouteError    Outcome = "route_error"
	OutcomeCancelled     Outcome = "cancelled"
)

// TurnResult is what a turn produced. Err is set for every outcome but
// OutcomeOK. Rejected holds the model answer that could not be turned into
// a query, if any; it can be passed back with WithPreviousResponse.
type TurnResult struct {
	ID       uuid.UUID
	Question string
	Outcome  Outcome
	Query    *synth.Query
	Table    *db.Table
	Route    *router.Outcome
	Rejected *Rejection
	Err      error
}

type Rejection struct {
	Response string
	Error    string
}

type turnOptions struct {
	previous *Rejection
}

type TurnOption func(*turnOptions)

// WithPreviousResponse runs the turn as a correction of an answer the model
// gave earlier for the same question.
func WithPreviousResponse(r *Rejection) TurnOption {
	return func(o *turnOptions) { o.previous = r }
}

type Session struct {
	ID         uuid.UUID
	schema     *db.Schema
	schemaText string
	executor   Executor
	queries    QuerySynthesizer
	router     Router
	presenter  Presenter
	history    *History
	config     *Config
	closers    []func() error
}

func New(schema *db.Schema, executor Executor, queries QuerySynthesizer, r Router, p Presenter) *Session {
	s := &Session{
		ID:        uuid.New(),
		schema:    schema,
		executor:  executor,
		queries:   queries,
		router:    r,
		presenter: p,
		history:   &History{},
	}
	if schema != nil {
		s.schemaText = schema.Text()
	}
	return s
}

func (s *Session) Schema() *db.Schema   { return s.schema }
func (s *Session) SchemaText() string   { return s.schemaText }
func (s *Session) History() *History    { return s.history }
func (s *Session) Presenter() Presenter { return s.presenter }

func (s *Session) Close() error {
	var ret error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && ret == nil {
			ret = err
		}
	}
	s.closers = nil
	return ret
}

// RunTurn answers one question: synthesize a query, execute it, and route the
// result to the narrative or chart path. Failures are shown as notices and
// end the turn; the returned error is the same as TurnResult.Err.
func (s *Session) RunTurn(ctx context.Context, question string, opts ...TurnOption) (*TurnResult, error) {
	start := time.Now()
	res := &TurnResult{ID: uuid.New(), Question: question}
	o := turnOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := log.With().Str("session", s.ID.String()).Str("turn", res.ID.String()).Logger()

	s.history.Append(NewTurn(RoleUser, question))

	finish := func(o Outcome, err error, notice string) (*TurnResult, error) {
		res.Outcome = o
		res.Err = err
		metrics.ObserveTurn(string(o), time.Since(start))
		if err != nil {
			logger.Warn().Err(err).Str("outcome", string(o)).Msg("turn ended without result")
			if notice != "" && ctx.Err() == nil {
				if perr := s.presenter.Notice(notice); perr != nil {
					logger.Warn().Err(perr).Msg("could not show notice")
				}
			}
		} else {
			logger.Debug().Dur("elapsed", time.Since(start)).Msg("turn done")
		}
		return res, err
	}

	sopts := []synth.SynthesizeOption{
		synth.OnRejected(func(response string, err error) {
			res.Rejected = &Rejection{Response: response, Error: err.Error()}
		}),
	}
	if o.previous != nil {
		sopts = append(sopts, synth.WithPreviousResponse(o.previous.Response, o.previous.Error))
	}

	q, err := s.queries.Synthesize(ctx, s.schemaText, question, sopts...)
	res.Query = q
	switch {
	case err != nil && ctx.Err() != nil:
		return finish(OutcomeCancelled, err, "")
	case errors.Is(err, retry.ErrAbandoned):
		return finish(OutcomeAbandoned, err, "Could not get a usable query from the model. Try rephrasing the question.")
	case err != nil:
		return finish(OutcomeNoQuery, err, "Could not get a query from the model: "+err.Error())
	case q == nil:
		return finish(OutcomeNoQuery, errors.New("no query produced"), "No query was produced for this question.")
	case !q.Executable():
		msg := q.ErrorText()
		if msg == "" {
			msg = "empty query"
		}
		s.history.Append(NewTurn(RoleAssistant, msg))
		return finish(OutcomeModelDeclined, errors.Errorf("model declined: %s", msg), msg)
	}

	if err := s.presenter.Query(q.SQL); err != nil {
		logger.Warn().Err(err).Msg("could not show query")
	}

	table, err := s.executor.Execute(ctx, q.SQL)
	if err != nil {
		if ctx.Err() != nil {
			return finish(OutcomeCancelled, err, "")
		}
		metrics.IncrementSQLErrors()
		reason := err
		var ee *db.ExecutionError
		if errors.As(err, &ee) {
			reason = ee.Err
		}
		return finish(OutcomeSQLError, err, "The query failed: "+reason.Error())
	}
	res.Table = table

	out, err := s.router.Route(ctx, question, table)
	if err != nil {
		if ctx.Err() != nil {
			return finish(OutcomeCancelled, err, "")
		}
		return finish(OutcomeRouteError, err, "Could not present the result: "+err.Error())
	}
	res.Route = out

	s.history.Append(NewTurn(RoleAssistant, assistantContent(out, table)))
	return finish(OutcomeOK, nil, "")
}

func assistantContent(out *router.Outcome, table *db.Table) string {
	if out.Path == router.PathNarrative {
		return out.Text
	}
	title := ""
	if out.Chart != nil && out.Chart.Figure != nil {
		title = out.Chart.Figure.Title()
	}
	if title == "" {
		return fmt.Sprintf("Chart of %d rows", table.Len())
	}
	return fmt.Sprintf("Chart: %s (%d rows)", title, table.Len())
}
