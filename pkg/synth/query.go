// Package synth holds the model-backed generators of a turn: the SQL query
// synthesizer, the chart code synthesizer and the narrator for small results.
package synth

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-go-golems/datachat/pkg/db"
	"github.com/go-go-golems/datachat/pkg/llm"
	"github.com/go-go-golems/datachat/pkg/parse"
	"github.com/go-go-golems/datachat/pkg/prompts"
	"github.com/go-go-golems/datachat/pkg/retry"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Query is the model's answer to a question. When Error is set the model
// declined to write a query and SQL must not be executed.
type Query struct {
	SQL   string  `json:"query" jsonschema:"description=The SQL query answering the question"`
	Error *string `json:"error,omitempty" jsonschema:"oneof_type=string;null,description=Reason no valid query could be written or null"`
}

// Executable reports whether the query may be handed to the executor.
func (q *Query) Executable() bool {
	return q != nil && q.Error == nil && strings.TrimSpace(q.SQL) != ""
}

func (q *Query) ErrorText() string {
	if q == nil || q.Error == nil {
		return ""
	}
	return *q.Error
}

var errNothingToCorrect = errors.New("no previous attempt to correct")

type sqlPromptData struct {
	Dialect          string
	DialectNotes     string
	Schema           string
	ResponseSchema   string
	Question         string
	LastError        string
	PreviousResponse string
}

type QuerySynthesizer struct {
	loop    *retry.Loop
	tmpl    prompts.Template
	dialect db.Dialect
}

type QueryOption func(*QuerySynthesizer)

func WithDialect(d db.Dialect) QueryOption {
	return func(s *QuerySynthesizer) { s.dialect = d }
}

func WithQueryTemplate(t prompts.Template) QueryOption {
	return func(s *QuerySynthesizer) { s.tmpl = t }
}

func NewQuerySynthesizer(loop *retry.Loop, opts ...QueryOption) *QuerySynthesizer {
	s := &QuerySynthesizer{
		loop: loop,
		tmpl: prompts.Default().SQL,
		dialect: db.Dialect{
			Name: "SQL",
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type synthesizeOptions struct {
	previousResponse string
	lastError        string
	rejected         func(response string, err error)
}

type SynthesizeOption func(*synthesizeOptions)

// WithPreviousResponse makes the call a correction of an earlier answer to
// the same question. The first prompt carries response and lastError, and
// unusable answers are re-prompted until the loop gives up.
func WithPreviousResponse(response string, lastError string) SynthesizeOption {
	return func(o *synthesizeOptions) {
		o.previousResponse = response
		o.lastError = lastError
	}
}

// OnRejected registers f to receive the last model answer of a call that
// ended without a query, e.g. to offer it for correction later.
func OnRejected(f func(response string, err error)) SynthesizeOption {
	return func(o *synthesizeOptions) { o.rejected = f }
}

// Synthesize asks the model for a query answering question over the schema.
//
// Without WithPreviousResponse there is nothing to correct: if the first
// answer cannot be parsed, or the model call fails, Synthesize returns a nil
// query and a nil error after that single call. With a previous response,
// unusable answers are fed back to the model, and running out of attempts
// returns a *retry.AbandonedError.
func (s *QuerySynthesizer) Synthesize(ctx context.Context, schemaText string, question string, opts ...SynthesizeOption) (*Query, error) {
	o := synthesizeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	seeded := strings.TrimSpace(o.previousResponse) != ""

	data := sqlPromptData{
		Dialect:        s.dialect.Name,
		DialectNotes:   s.dialect.Notes,
		Schema:         schemaText,
		ResponseSchema: ResponseSchemaJSON(),
		Question:       question,
	}

	prompt := func(rc retry.RetryContext) (llm.Prompt, error) {
		if rc.First() {
			return s.tmpl.Render(data)
		}
		d := data
		d.LastError = rc.LastError
		d.PreviousResponse = rc.PreviousResponse
		return s.tmpl.RenderCorrection(d)
	}

	var runOpts []retry.RunOption
	if seeded {
		runOpts = append(runOpts, retry.WithPreviousAttempt(o.previousResponse, o.lastError))
	}

	unusable := ""
	handle := func(ctx context.Context, a *retry.Attempt, raw string) (*Query, error) {
		a.Enter(retry.StateValidating)
		q, err := ParseQuery(raw)
		if err == nil {
			return q, nil
		}
		if strings.TrimSpace(raw) != "" {
			unusable = raw
		}
		if !seeded && a.Number == 1 {
			return nil, errors.WithMessage(errNothingToCorrect, err.Error())
		}
		return nil, retry.Recoverable(err)
	}

	q, trace, err := retry.Run(ctx, s.loop, prompt, handle, runOpts...)
	if err != nil {
		if o.rejected != nil && unusable != "" {
			o.rejected(unusable, err)
		}
		first := trace == nil || trace.Attempts <= 1
		if errors.Is(err, errNothingToCorrect) || (first && !seeded && errors.Is(err, retry.ErrNoResponse)) {
			log.Warn().Err(err).Str("question", question).Msg("no query produced")
			return nil, nil
		}
		return nil, err
	}

	log.Debug().
		Str("sql", q.SQL).
		Str("model_error", q.ErrorText()).
		Int("attempts", trace.Attempts).
		Msg("query synthesized")
	return q, nil
}

var ErrMalformedResponse = errors.New("malformed model response")

// MalformedResponseError is returned when a response cannot be turned into a
// payload. Response is the raw text as received.
type MalformedResponseError struct {
	Err      error
	Response string
}

func (e *MalformedResponseError) Error() string {
	return ErrMalformedResponse.Error() + ": " + e.Err.Error()
}

func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }
func (e *MalformedResponseError) Unwrap() error        { return e.Err }

// ParseQuery strips fence markers from raw, checks it against the response
// schema and decodes it. The query string is returned exactly as sent.
func ParseQuery(raw string) (*Query, error) {
	payload := strings.TrimSpace(parse.ExtractPayload(raw, "json"))
	if payload == "" {
		return nil, &MalformedResponseError{Err: errors.New("response contains no JSON"), Response: raw}
	}

	var doc any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, &MalformedResponseError{Err: errors.Wrap(err, "invalid JSON"), Response: raw}
	}
	if err := validateResponse(payload); err != nil {
		return nil, &MalformedResponseError{Err: err, Response: raw}
	}

	q := &Query{}
	if err := json.Unmarshal([]byte(payload), q); err != nil {
		return nil, &MalformedResponseError{Err: errors.Wrap(err, "decode query"), Response: raw}
	}
	return q, nil
}
