// Package sandbox runs model generated plotting code in a restricted
// JavaScript interpreter. Every run gets a fresh goja runtime whose require()
// only knows the modules of a static registry; the filesystem loader is
// disabled, the call stack is capped and a watchdog interrupts long runs.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"
	"github.com/go-go-golems/datachat/pkg/chart"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultEntryPoint = "generate_fig"

type Config struct {
	Timeout          time.Duration
	MaxCallStackSize int
	EntryPoint       string
}

func DefaultConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		MaxCallStackSize: 1024,
		EntryPoint:       DefaultEntryPoint,
	}
}

// Env is the data the program can see through the rows, columns and question
// globals.
type Env struct {
	Question string
	Columns  []string
	Rows     [][]any
}

// Program is code that passed syntax validation.
type Program struct {
	Code    string
	Imports []Import

	compiled *goja.Program
}

type Sandbox struct {
	cfg      Config
	registry *Registry
}

type Option func(*Sandbox)

func WithConfig(cfg Config) Option {
	return func(s *Sandbox) { s.cfg = cfg }
}

func WithRegistry(r *Registry) Option {
	return func(s *Sandbox) { s.registry = r }
}

func New(opts ...Option) *Sandbox {
	s := &Sandbox{cfg: DefaultConfig(), registry: DefaultRegistry()}
	for _, o := range opts {
		o(s)
	}
	if s.cfg.EntryPoint == "" {
		s.cfg.EntryPoint = DefaultEntryPoint
	}
	return s
}

func (s *Sandbox) Registry() *Registry { return s.registry }

// Compile parses code, enumerates its imports and compiles it. Any failure is
// a *SyntaxError; such code never reaches Run.
func (s *Sandbox) Compile(code string) (*Program, error) {
	if strings.TrimSpace(code) == "" {
		return nil, &SyntaxError{Err: errors.New("empty program")}
	}
	tree, err := parser.ParseFile(nil, "generated.js", code, 0)
	if err != nil {
		return nil, &SyntaxError{Err: err}
	}
	compiled, err := goja.CompileAST(tree, false)
	if err != nil {
		return nil, &SyntaxError{Err: err}
	}
	return &Program{
		Code:     code,
		Imports:  EnumerateImports(tree),
		compiled: compiled,
	}, nil
}

// Run executes the program in a fresh runtime, calls the zero-argument entry
// point and converts its return value into a figure.
func (s *Sandbox) Run(ctx context.Context, p *Program, env Env) (fig *chart.Figure, err error) {
	if p == nil || p.compiled == nil {
		return nil, errors.New("program was not compiled")
	}

	modules, missing := s.registry.Resolve(p.Imports)
	log.Debug().
		Int("imports", len(p.Imports)).
		Int("resolved", len(modules)).
		Int("missing", len(missing)).
		Msg("sandbox: imports resolved")

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if s.cfg.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(s.cfg.MaxCallStackSize)
	}
	enable(vm, modules, missing)
	if err := installGlobals(vm, env); err != nil {
		return nil, errors.Wrap(err, "install sandbox globals")
	}

	if s.cfg.Timeout > 0 {
		timer := time.AfterFunc(s.cfg.Timeout, func() {
			vm.Interrupt(ErrExecutionTimedOut)
		})
		defer timer.Stop()
	}
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			fig = nil
			err = &RuntimeError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	start := time.Now()
	if _, err := vm.RunProgram(p.compiled); err != nil {
		return nil, &RuntimeError{Err: unwrapInterrupt(err)}
	}

	entry, err := vm.RunString(s.cfg.EntryPoint)
	if err != nil {
		return nil, &RuntimeError{Err: unwrapInterrupt(err)}
	}
	fn, ok := goja.AssertFunction(entry)
	if !ok {
		return nil, &RuntimeError{Err: errors.Errorf("%s is not a function", s.cfg.EntryPoint)}
	}
	ret, err := fn(goja.Undefined())
	if err != nil {
		return nil, &RuntimeError{Err: unwrapInterrupt(err)}
	}
	if ret == nil || goja.IsUndefined(ret) || goja.IsNull(ret) {
		return nil, &RuntimeError{Err: errors.Errorf("%s returned nothing", s.cfg.EntryPoint)}
	}

	fig, err = chart.FromValue(ret.Export())
	if err != nil {
		return nil, &RuntimeError{Err: errors.Wrapf(err, "%s returned an invalid figure", s.cfg.EntryPoint)}
	}
	log.Debug().Dur("elapsed", time.Since(start)).Int("traces", len(fig.Data)).Msg("sandbox: figure generated")
	return fig, nil
}

func unwrapInterrupt(err error) error {
	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		if e, ok := ie.Value().(error); ok {
			return e
		}
	}
	return err
}

func installGlobals(vm *goja.Runtime, env Env) error {
	rows := make([]any, 0, len(env.Rows))
	for _, r := range env.Rows {
		rows = append(rows, append([]any(nil), r...))
	}
	columns := make([]any, 0, len(env.Columns))
	for _, c := range env.Columns {
		columns = append(columns, c)
	}
	if err := vm.Set("rows", rows); err != nil {
		return err
	}
	if err := vm.Set("columns", columns); err != nil {
		return err
	}
	if err := vm.Set("question", env.Question); err != nil {
		return err
	}

	console := vm.NewObject()
	logFn := func(call goja.FunctionCall) goja.Value {
		log.Debug().Str("source", "sandbox").Msg(joinArgs(call.Arguments))
		return goja.Undefined()
	}
	_ = console.Set("log", logFn)
	_ = console.Set("error", logFn)
	return vm.Set("console", console)
}

func joinArgs(args []goja.Value) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil || goja.IsUndefined(a) || goja.IsNull(a) {
			continue
		}
		parts = append(parts, a.String())
	}
	return strings.Join(parts, " ")
}
