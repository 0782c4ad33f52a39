package sandbox

import (
	"sort"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/rs/zerolog/log"
)

// Export builds the value of one module symbol for a given runtime.
type Export func(vm *goja.Runtime) any

// Module is a statically registered module that generated code may require.
type Module struct {
	Name    string
	Exports map[string]Export
}

func (m *Module) Has(symbol string) bool {
	_, ok := m.Exports[symbol]
	return ok
}

func (m *Module) Symbols() []string {
	ret := make([]string, 0, len(m.Exports))
	for k := range m.Exports {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

func (m *Module) loader() require.ModuleLoader {
	return func(vm *goja.Runtime, module *goja.Object) {
		exports := module.Get("exports").(*goja.Object)
		for name, build := range m.Exports {
			_ = exports.Set(name, build(vm))
		}
	}
}

// Registry is the allow list of modules. Nothing outside it can be loaded.
type Registry struct {
	modules map[string]*Module
}

func NewRegistry(modules ...*Module) *Registry {
	r := &Registry{modules: map[string]*Module{}}
	for _, m := range modules {
		r.modules[m.Name] = m
	}
	return r
}

// DefaultRegistry holds the chart and data modules.
func DefaultRegistry() *Registry {
	return NewRegistry(ChartModule(), DataModule())
}

func (r *Registry) Get(name string) (*Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

func (r *Registry) Names() []string {
	ret := make([]string, 0, len(r.modules))
	for k := range r.modules {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// Resolve matches imports against the registry. Unknown modules and symbols
// are reported as ImportErrors and left out; the returned modules are the
// ones the program will be able to require.
func (r *Registry) Resolve(imports []Import) ([]*Module, []*ImportError) {
	var resolved []*Module
	var missing []*ImportError
	for _, imp := range imports {
		m, ok := r.modules[imp.Module]
		if !ok {
			missing = append(missing, &ImportError{Module: imp.Module})
			continue
		}
		for _, s := range imp.Symbols {
			if !m.Has(s) {
				missing = append(missing, &ImportError{Module: imp.Module, Symbol: s})
			}
		}
		resolved = append(resolved, m)
	}
	for _, e := range missing {
		log.Warn().Str("module", e.Module).Str("symbol", e.Symbol).Msg(e.Error())
	}
	return resolved, missing
}

// enable installs require() on vm with only the given modules registered and
// the file loader disabled. Modules that could not be resolved are installed
// empty, so requiring them succeeds and only using one of their symbols
// fails.
func enable(vm *goja.Runtime, modules []*Module, missing []*ImportError) {
	reg := require.NewRegistry(require.WithLoader(func(path string) ([]byte, error) {
		return nil, require.ModuleFileDoesNotExistError
	}))
	for _, m := range modules {
		reg.RegisterNativeModule(m.Name, m.loader())
	}
	for _, e := range missing {
		if e.Symbol != "" || isPath(e.Module) {
			continue
		}
		reg.RegisterNativeModule(e.Module, func(*goja.Runtime, *goja.Object) {})
	}
	reg.Enable(vm)
}

func isPath(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "/")
}
