package sandbox

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/dop251/goja"
)

// ChartModule exports figure builders. Every builder returns a plotly shaped
// object {data: [...], layout: {...}}.
func ChartModule() *Module {
	trace := func(kind, mode string) Export {
		return func(vm *goja.Runtime) any {
			return func(opts map[string]any) map[string]any {
				if opts == nil {
					panic(vm.NewTypeError("chart.%s expects an options object", kind))
				}
				t := map[string]any{"type": kind, "x": opts["x"], "y": opts["y"]}
				if mode != "" {
					t["mode"] = mode
				}
				if name, ok := opts["name"]; ok {
					t["name"] = name
				}
				return figure(t, opts)
			}
		}
	}

	return &Module{
		Name: "chart",
		Exports: map[string]Export{
			"bar":     trace("bar", ""),
			"line":    trace("scatter", "lines"),
			"scatter": trace("scatter", "markers"),
			"pie": func(vm *goja.Runtime) any {
				return func(opts map[string]any) map[string]any {
					if opts == nil {
						panic(vm.NewTypeError("chart.pie expects an options object"))
					}
					t := map[string]any{"type": "pie", "labels": opts["labels"], "values": opts["values"]}
					return figure(t, opts)
				}
			},
			"figure": func(vm *goja.Runtime) any {
				return func(fig map[string]any) map[string]any {
					if fig == nil || fig["data"] == nil {
						panic(vm.NewTypeError("chart.figure expects {data, layout}"))
					}
					return fig
				}
			},
		},
	}
}

func figure(trace map[string]any, opts map[string]any) map[string]any {
	layout := map[string]any{}
	if v, ok := opts["title"]; ok {
		layout["title"] = v
	}
	if v, ok := opts["xLabel"]; ok {
		layout["xaxis"] = map[string]any{"title": v}
	}
	if v, ok := opts["yLabel"]; ok {
		layout["yaxis"] = map[string]any{"title": v}
	}
	return map[string]any{
		"data":   []any{trace},
		"layout": layout,
	}
}

// DataModule exports small helpers for working with result rows.
func DataModule() *Module {
	fn := func(f any) Export {
		return func(*goja.Runtime) any { return f }
	}
	return &Module{
		Name: "data",
		Exports: map[string]Export{
			"column":   fn(column),
			"sum":      fn(sum),
			"groupSum": fn(groupSum),
			"sortBy":   fn(sortBy),
			"top":      fn(top),
		},
	}
}

func cell(row any, index int) any {
	r, ok := row.([]any)
	if !ok || index < 0 || index >= len(r) {
		return nil
	}
	return r[index]
}

func column(rows []any, index int) []any {
	ret := make([]any, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, cell(row, index))
	}
	return ret
}

func sum(values []any) float64 {
	total := 0.0
	for _, v := range values {
		if n, ok := number(v); ok {
			total += n
		}
	}
	return total
}

func groupSum(rows []any, keyIndex int, valueIndex int) map[string]any {
	var keys []any
	totals := map[string]float64{}
	for _, row := range rows {
		k := cell(row, keyIndex)
		ks := fmt.Sprint(k)
		if _, ok := totals[ks]; !ok {
			keys = append(keys, k)
		}
		n, _ := number(cell(row, valueIndex))
		totals[ks] += n
	}
	values := make([]any, 0, len(keys))
	for _, k := range keys {
		values = append(values, totals[fmt.Sprint(k)])
	}
	return map[string]any{"keys": keys, "values": values}
}

func sortBy(rows []any, index int, descending bool) []any {
	ret := append([]any(nil), rows...)
	sort.SliceStable(ret, func(i, j int) bool {
		c := compare(cell(ret[i], index), cell(ret[j], index))
		if descending {
			return c > 0
		}
		return c < 0
	})
	return ret
}

func top(rows []any, n int) []any {
	if n < 0 {
		n = 0
	}
	if n > len(rows) {
		n = len(rows)
	}
	return append([]any(nil), rows[:n]...)
}

func compare(a, b any) int {
	na, oka := number(a)
	nb, okb := number(b)
	if oka && okb {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
