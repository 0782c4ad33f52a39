package sandbox

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrCodeSyntax        = errors.New("code syntax error")
	ErrCodeRuntime       = errors.New("code runtime error")
	ErrImportResolution  = errors.New("import resolution error")
	ErrExecutionTimedOut = errors.New("execution timed out")
)

// SyntaxError means the program never reached execution.
type SyntaxError struct {
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %v", ErrCodeSyntax, e.Err)
}

func (e *SyntaxError) Is(target error) bool { return target == ErrCodeSyntax }
func (e *SyntaxError) Unwrap() error        { return e.Err }

// RuntimeError is raised while running the program or calling its entry point.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %v", ErrCodeRuntime, e.Err)
}

func (e *RuntimeError) Is(target error) bool { return target == ErrCodeRuntime }
func (e *RuntimeError) Unwrap() error        { return e.Err }

// ImportError names a module or a module symbol that is not in the registry.
// It is logged and skipped; using the missing name fails at runtime.
type ImportError struct {
	Module string
	Symbol string
}

func (e *ImportError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("%s: module %q has no export %q", ErrImportResolution, e.Module, e.Symbol)
	}
	return fmt.Sprintf("%s: module %q is not available", ErrImportResolution, e.Module)
}

func (e *ImportError) Is(target error) bool { return target == ErrImportResolution }
