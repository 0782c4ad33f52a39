package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/dop251/goja/parser"
	"github.com/go-go-golems/datachat/pkg/chart"
	"github.com/stretchr/testify/require"
)

const staticFigure = `{"data":[{"type":"bar","name":"profit","x":["Asia","Europe"],"y":[10.5,20],"orientation":"v","marker":{"color":"#1f77b4"}}],"layout":{"title":"Profit by region","height":300,"barmode":"group"}}`

func TestRunReturnsStaticFigure(t *testing.T) {
	s := New()
	p, err := s.Compile(`
const chart = require("chart");
function generate_fig() {
  return chart.figure(` + staticFigure + `);
}
`)
	require.NoError(t, err)

	got, err := s.Run(context.Background(), p, Env{})
	require.NoError(t, err)

	want, err := chart.Parse([]byte(staticFigure))
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Equal(t, "group", got.Layout.Extra["barmode"])
}

func TestRunWithBuildersAndData(t *testing.T) {
	s := New()
	p, err := s.Compile(`
const { bar } = require("chart");
const data = require("data");

const generate_fig = () => {
  const g = data.groupSum(rows, 0, 1);
  return bar({x: g.keys, y: g.values, title: question, xLabel: columns[0], yLabel: columns[1]});
};
`)
	require.NoError(t, err)
	require.Equal(t, []Import{{Module: "chart", Symbols: []string{"bar"}}, {Module: "data"}}, p.Imports)

	fig, err := s.Run(context.Background(), p, Env{
		Question: "profit by region",
		Columns:  []string{"Region", "Total_Profit"},
		Rows:     [][]any{{"Asia", 10}, {"Europe", 5}, {"Asia", 2.5}},
	})
	require.NoError(t, err)
	require.Equal(t, "profit by region", fig.Title())
	require.Equal(t, []chart.Point{{Label: "Asia", Value: 12.5}, {Label: "Europe", Value: 5}}, fig.Points())
	require.Equal(t, chart.Text("Region"), fig.Layout.XAxis.Title)
}

func TestCompileRejectsSyntaxErrors(t *testing.T) {
	s := New()
	for _, code := range []string{
		"function generate_fig( { return 1 }",
		"function generate_fig() { return chart.bar({x: [1], y: [2]) }",
		"   ",
	} {
		p, err := s.Compile(code)
		require.Nil(t, p)
		require.ErrorIs(t, err, ErrCodeSyntax, code)
	}
}

func TestEnumerateImports(t *testing.T) {
	tree, err := parser.ParseFile(nil, "", `
const chart = require("chart");
const { column, sum: total } = require("data");
const pie = require("chart").pie;
require("fs");
function f() { return require("data").top; }
`, 0)
	require.NoError(t, err)

	require.Equal(t, []Import{
		{Module: "chart", Symbols: []string{"pie"}},
		{Module: "data", Symbols: []string{"column", "sum", "top"}},
		{Module: "fs"},
	}, EnumerateImports(tree))
}

func TestResolveSkipsUnknownModulesAndSymbols(t *testing.T) {
	r := DefaultRegistry()
	mods, missing := r.Resolve([]Import{
		{Module: "chart", Symbols: []string{"bar", "heatmap"}},
		{Module: "matplotlib"},
	})
	require.Len(t, mods, 1)
	require.Equal(t, "chart", mods[0].Name)
	require.Len(t, missing, 2)
	require.ErrorIs(t, missing[0], ErrImportResolution)
	require.Equal(t, "heatmap", missing[0].Symbol)
	require.Equal(t, "matplotlib", missing[1].Module)
}

func TestUnusedMissingImportIsNotFatal(t *testing.T) {
	s := New()
	p, err := s.Compile(`
const { bar, heatmap } = require("chart");
function generate_fig() { return bar({x: [1], y: [2]}); }
`)
	require.NoError(t, err)
	_, err = s.Run(context.Background(), p, Env{})
	require.NoError(t, err)
}

func TestUnusedUnknownModuleIsNotFatal(t *testing.T) {
	s := New()
	p, err := s.Compile(`
const plt = require("matplotlib");
const { figure_factory } = require("plotly");
const chart = require("chart");
function generate_fig() { return chart.bar({x: ["a"], y: [1]}); }
`)
	require.NoError(t, err)
	fig, err := s.Run(context.Background(), p, Env{})
	require.NoError(t, err)
	require.Equal(t, []chart.Point{{Label: "a", Value: 1}}, fig.Points())
}

func TestUsingMissingModuleFailsAtRuntime(t *testing.T) {
	s := New()
	p, err := s.Compile(`
const fs = require("fs");
function generate_fig() { return fs.readFileSync("/etc/passwd"); }
`)
	require.NoError(t, err)
	_, err = s.Run(context.Background(), p, Env{})
	require.ErrorIs(t, err, ErrCodeRuntime)
}

func TestFileLoaderIsDisabled(t *testing.T) {
	s := New()
	p, err := s.Compile(`
const x = require("./chart.js");
function generate_fig() { return x; }
`)
	require.NoError(t, err)
	_, err = s.Run(context.Background(), p, Env{})
	require.ErrorIs(t, err, ErrCodeRuntime)
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"no entry point", "var x = 1;"},
		{"entry is not a function", "var generate_fig = 3;"},
		{"throws", "function generate_fig() { throw new Error('boom'); }"},
		{"returns nothing", "function generate_fig() {}"},
		{"invalid figure", "function generate_fig() { return {data: []}; }"},
		{"bad builder call", "const c = require('chart'); function generate_fig() { return c.bar(); }"},
	}
	s := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := s.Compile(tt.code)
			require.NoError(t, err)
			_, err = s.Run(context.Background(), p, Env{})
			require.ErrorIs(t, err, ErrCodeRuntime)
		})
	}
}

func TestRunIsInterruptedAfterTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	s := New(WithConfig(cfg))

	p, err := s.Compile("function generate_fig() { while (true) {} }")
	require.NoError(t, err)

	start := time.Now()
	_, err = s.Run(context.Background(), p, Env{})
	require.ErrorIs(t, err, ErrCodeRuntime)
	require.ErrorIs(t, err, ErrExecutionTimedOut)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestRunsDoNotShareState(t *testing.T) {
	s := New()
	p, err := s.Compile(`
var counter = (typeof counter === "undefined") ? 0 : counter + 1;
const chart = require("chart");
function generate_fig() { return chart.bar({x: ["n"], y: [counter]}); }
`)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		fig, err := s.Run(context.Background(), p, Env{})
		require.NoError(t, err)
		require.Equal(t, []chart.Point{{Label: "n", Value: 0}}, fig.Points())
	}
}
