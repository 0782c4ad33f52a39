package db

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrSQLExecution = errors.New("sql execution failed")

// ExecutionError wraps a driver error together with the statement that
// caused it.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return "sql execution failed: " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Is(target error) bool { return target == ErrSQLExecution }

var readOnlyPrefix = regexp.MustCompile(`(?i)^\s*(select|with|explain|pragma|show|describe|values)\b`)

// Executor runs synthesized SQL against a connection and returns the full
// result set as a Table.
type Executor struct {
	db       DBLike
	maxRows  int
	timeout  time.Duration
	readOnly bool
}

type ExecutorOption func(*Executor)

func WithMaxRows(n int) ExecutorOption {
	return func(e *Executor) { e.maxRows = n }
}

func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

func WithReadOnly(ro bool) ExecutorOption {
	return func(e *Executor) { e.readOnly = ro }
}

func NewExecutor(db DBLike, opts ...ExecutorOption) *Executor {
	e := &Executor{db: db}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewExecutorFromConfig applies the row cap, timeout and read-only flag of
// cfg.
func NewExecutorFromConfig(db DBLike, cfg Config) *Executor {
	return NewExecutor(db, WithMaxRows(cfg.MaxRows), WithTimeout(cfg.Timeout), WithReadOnly(cfg.ReadOnly))
}

func (e *Executor) Execute(ctx context.Context, sqlStr string) (*Table, error) {
	sqlStr = strings.TrimSpace(sqlStr)
	if sqlStr == "" {
		return nil, &ExecutionError{SQL: sqlStr, Err: errors.New("empty statement")}
	}
	if e.readOnly && !readOnlyPrefix.MatchString(sqlStr) {
		return nil, &ExecutionError{SQL: sqlStr, Err: errors.New("only read-only statements are allowed")}
	}

	cctx := ctx
	cancel := func() {}
	if e.timeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, e.timeout)
	}
	defer cancel()

	start := time.Now()
	rows, err := e.db.QueryContext(cctx, sqlStr)
	if err != nil {
		return nil, &ExecutionError{SQL: sqlStr, Err: err}
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to close rows")
		}
	}()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &ExecutionError{SQL: sqlStr, Err: err}
	}

	t := &Table{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		if e.maxRows > 0 && len(t.Rows) >= e.maxRows {
			t.Truncated = true
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &ExecutionError{SQL: sqlStr, Err: err}
		}
		for i, v := range vals {
			vals[i] = normalize(v)
		}
		t.Rows = append(t.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecutionError{SQL: sqlStr, Err: err}
	}

	log.Debug().
		Int("rows", t.Len()).
		Bool("truncated", t.Truncated).
		Dur("elapsed", time.Since(start)).
		Msg("query executed")
	return t, nil
}
