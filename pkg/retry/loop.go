// Package retry implements the self-correcting request loop shared by the
// query and visualization synthesizers: ask the model, parse and validate the
// answer, and on a recoverable failure ask again with the error text and the
// previous answer, up to a fixed number of attempts.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-go-golems/datachat/pkg/llm"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Failure is one recoverable failure, kept for logging and for the trace.
type Failure struct {
	Attempt  int
	State    State
	Err      error
	Response string
}

// RetryContext is handed to the prompt builder. On the first attempt it is
// empty; afterwards it carries the latest raw response and error verbatim.
type RetryContext struct {
	Attempt          int
	PreviousResponse string
	LastError        string
	Failures         []Failure
}

// First reports whether no previous attempt exists.
func (rc RetryContext) First() bool {
	return rc.PreviousResponse == ""
}

type Trace struct {
	Attempts    int
	Final       State
	Transitions []Transition
	Failures    []Failure
}

// Observer is notified about every state change, e.g. to feed metrics.
type Observer interface {
	OnTransition(loop string, t Transition)
}

type ObserverFunc func(loop string, t Transition)

func (f ObserverFunc) OnTransition(loop string, t Transition) { f(loop, t) }

// PromptFunc builds the prompt for an attempt.
type PromptFunc func(rc RetryContext) (llm.Prompt, error)

// Handler turns a raw model response into a result. Errors wrapped with
// Recoverable trigger another attempt, any other error ends the run.
type Handler[T any] func(ctx context.Context, a *Attempt, raw string) (T, error)

type Loop struct {
	name      string
	cfg       Config
	completer llm.Completer
	newBack   func() backoff.BackOff
	observers []Observer
}

type Option func(*Loop)

func New(name string, completer llm.Completer, opts ...Option) *Loop {
	l := &Loop{
		name:      name,
		cfg:       DefaultConfig(),
		completer: completer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func WithConfig(cfg Config) Option {
	return func(l *Loop) { l.cfg = cfg }
}

// WithBackOff overrides the backoff schedule derived from the config.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(l *Loop) { l.newBack = f }
}

func WithObserver(o Observer) Option {
	return func(l *Loop) {
		if o != nil {
			l.observers = append(l.observers, o)
		}
	}
}

func (l *Loop) Name() string   { return l.name }
func (l *Loop) Config() Config { return l.cfg }

// Attempt tracks the state of the current request/validate cycle. Handlers
// call Enter to report Parsing, Validating and Executing.
type Attempt struct {
	Number int
	state  State
	loop   *Loop
	trace  *Trace
}

func (a *Attempt) State() State { return a.state }

func (a *Attempt) Enter(s State) {
	if a.state == s {
		return
	}
	t := Transition{Attempt: a.Number, From: a.state, To: s}
	a.state = s
	a.trace.Transitions = append(a.trace.Transitions, t)
	log.Debug().
		Str("loop", a.loop.name).
		Int("attempt", t.Attempt).
		Str("from", t.From.String()).
		Str("to", t.To.String()).
		Msg("retry: state transition")
	for _, o := range a.loop.observers {
		o.OnTransition(a.loop.name, t)
	}
}

// RunOption configures a single Run.
type RunOption func(*RetryContext)

// WithPreviousAttempt starts the run as a correction of an earlier answer:
// the first prompt already carries response and lastError, and a failed
// model call is retried like any other failure.
func WithPreviousAttempt(response string, lastError string) RunOption {
	return func(rc *RetryContext) {
		rc.PreviousResponse = response
		rc.LastError = lastError
	}
}

// Run drives the loop until the handler succeeds, a non-recoverable error
// occurs, the attempt cap is reached or ctx ends.
//
// A failed model call ends the run with ErrNoResponse when no previous
// attempt exists. Otherwise it counts as a failed attempt.
func Run[T any](ctx context.Context, l *Loop, prompt PromptFunc, handle Handler[T], opts ...RunOption) (T, *Trace, error) {
	var zero T
	if l == nil || l.completer == nil {
		return zero, nil, errors.New("retry loop has no completer")
	}

	maxAttempts := l.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultConfig().MaxAttempts
	}
	back := l.cfg.NewBackOff()
	if l.newBack != nil {
		back = l.newBack()
	}

	trace := &Trace{}
	a := &Attempt{state: StatePending, loop: l, trace: trace}
	rc := RetryContext{}
	for _, o := range opts {
		o(&rc)
	}
	var last error

	abandon := func(err error) (T, *Trace, error) {
		a.Enter(StateAbandoned)
		trace.Final = StateAbandoned
		return zero, trace, &AbandonedError{Name: l.name, Attempts: trace.Attempts, Last: err, Trace: trace}
	}

	for n := 1; n <= maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return abandon(err)
		}
		a.Number = n
		rc.Attempt = n
		trace.Attempts = n

		p, err := prompt(rc)
		if err != nil {
			a.Enter(StateAbandoned)
			trace.Final = StateAbandoned
			return zero, trace, errors.Wrap(err, "build prompt")
		}

		a.Enter(StateAwaitingLLM)
		raw, err := l.completer.Complete(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return abandon(ctx.Err())
			}
			err = errors.Wrapf(ErrNoResponse, "%s attempt %d: %v", l.name, n, err)
			if rc.First() {
				a.Enter(StateAbandoned)
				trace.Final = StateAbandoned
				return zero, trace, err
			}
			// keep correcting the last answer we did get
			f := Failure{Attempt: n, State: a.state, Err: err}
			trace.Failures = append(trace.Failures, f)
			rc.Failures = append(rc.Failures, f)
			last = err
			l.logFailure(f, maxAttempts)
			a.Enter(StateRetrying)
		} else {
			a.Enter(StateParsing)
			res, err := handle(ctx, a, raw)
			if err == nil {
				a.Enter(StateSucceeded)
				trace.Final = StateSucceeded
				return res, trace, nil
			}
			if !IsRecoverable(err) {
				a.Enter(StateAbandoned)
				trace.Final = StateAbandoned
				return zero, trace, err
			}

			f := Failure{Attempt: n, State: a.state, Err: err, Response: raw}
			trace.Failures = append(trace.Failures, f)
			rc.Failures = append(rc.Failures, f)
			last = err
			l.logFailure(f, maxAttempts)

			a.Enter(StateRetrying)
			rc.PreviousResponse = raw
			rc.LastError = err.Error()
		}

		if n == maxAttempts {
			break
		}
		wait := back.NextBackOff()
		if wait == backoff.Stop {
			break
		}
		if err := sleep(ctx, wait); err != nil {
			return abandon(err)
		}
	}

	return abandon(last)
}

func (l *Loop) logFailure(f Failure, maxAttempts int) {
	log.Warn().
		Err(f.Err).
		Str("loop", l.name).
		Int("attempt", f.Attempt).
		Int("max_attempts", maxAttempts).
		Str("state", f.State.String()).
		Msg("retry: recoverable failure")
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
