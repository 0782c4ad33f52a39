package sandbox

import (
	"reflect"

	"github.com/dop251/goja/ast"
)

const requireFunc = "require"

// Import is a module named in a require("...") call together with the symbols
// taken from it, either by destructuring (const {bar} = require("chart")) or
// by direct member access (require("chart").bar).
type Import struct {
	Module  string
	Symbols []string
}

// EnumerateImports walks the syntax tree and lists every required module in
// order of first appearance.
func EnumerateImports(program *ast.Program) []Import {
	var order []string
	symbols := map[string][]string{}
	seenSymbol := map[string]map[string]bool{}

	add := func(module string, syms ...string) {
		if _, ok := symbols[module]; !ok {
			order = append(order, module)
			symbols[module] = nil
			seenSymbol[module] = map[string]bool{}
		}
		for _, s := range syms {
			if s == "" || seenSymbol[module][s] {
				continue
			}
			seenSymbol[module][s] = true
			symbols[module] = append(symbols[module], s)
		}
	}

	walk(reflect.ValueOf(program), map[uintptr]bool{}, func(n ast.Node) {
		switch v := n.(type) {
		case *ast.CallExpression:
			if m, ok := requiredModule(v); ok {
				add(m)
			}
		case *ast.DotExpression:
			if call, ok := v.Left.(*ast.CallExpression); ok {
				if m, ok := requiredModule(call); ok {
					add(m, string(v.Identifier.Name))
				}
			}
		case *ast.Binding:
			call, ok := v.Initializer.(*ast.CallExpression)
			if !ok {
				return
			}
			m, ok := requiredModule(call)
			if !ok {
				return
			}
			if pattern, ok := v.Target.(*ast.ObjectPattern); ok {
				add(m, patternNames(pattern)...)
			}
		}
	})

	ret := make([]Import, 0, len(order))
	for _, m := range order {
		ret = append(ret, Import{Module: m, Symbols: symbols[m]})
	}
	return ret
}

func requiredModule(call *ast.CallExpression) (string, bool) {
	id, ok := call.Callee.(*ast.Identifier)
	if !ok || string(id.Name) != requireFunc || len(call.ArgumentList) == 0 {
		return "", false
	}
	lit, ok := call.ArgumentList[0].(*ast.StringLiteral)
	if !ok {
		return "", false
	}
	return string(lit.Value), true
}

func patternNames(p *ast.ObjectPattern) []string {
	var names []string
	for _, prop := range p.Properties {
		switch v := prop.(type) {
		case *ast.PropertyShort:
			names = append(names, string(v.Name.Name))
		case *ast.PropertyKeyed:
			switch k := v.Key.(type) {
			case *ast.StringLiteral:
				names = append(names, string(k.Value))
			case *ast.Identifier:
				names = append(names, string(k.Name))
			}
		}
	}
	return names
}

var nodeType = reflect.TypeOf((*ast.Node)(nil)).Elem()

// walk visits every ast.Node reachable from v through exported fields.
func walk(v reflect.Value, seen map[uintptr]bool, visit func(ast.Node)) {
	if !v.IsValid() {
		return
	}
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return
		}
		walk(v.Elem(), seen, visit)
		return
	case reflect.Ptr:
		if v.IsNil() {
			return
		}
		if seen[v.Pointer()] {
			return
		}
		seen[v.Pointer()] = true
		if v.Type().Implements(nodeType) && v.CanInterface() {
			visit(v.Interface().(ast.Node))
		}
		walk(v.Elem(), seen, visit)
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			walk(v.Field(i), seen, visit)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			walk(v.Index(i), seen, visit)
		}
	}
}
