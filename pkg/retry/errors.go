package retry

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrAbandoned  = errors.New("retry loop abandoned")
	ErrNoResponse = errors.New("no response from model")
)

type recoverableError struct {
	err error
}

func (e *recoverableError) Error() string { return e.err.Error() }
func (e *recoverableError) Unwrap() error { return e.err }

// Recoverable marks err as correctable by re-prompting the model with the
// error text. Handlers return it for malformed output and failed executions.
func Recoverable(err error) error {
	if err == nil {
		return nil
	}
	return &recoverableError{err: err}
}

func IsRecoverable(err error) bool {
	var r *recoverableError
	return errors.As(err, &r)
}

// AbandonedError is the typed result of a loop that stopped without success,
// either because the attempt cap was hit or because the context ended.
type AbandonedError struct {
	Name     string
	Attempts int
	Last     error
	Trace    *Trace
}

func (e *AbandonedError) Error() string {
	if e == nil {
		return ErrAbandoned.Error()
	}
	return fmt.Sprintf("%s: %s after %d attempt(s): %v", e.Name, ErrAbandoned, e.Attempts, e.Last)
}

func (e *AbandonedError) Is(target error) bool { return target == ErrAbandoned }

func (e *AbandonedError) Unwrap() error { return e.Last }
