package ui

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-go-golems/datachat/pkg/chart"
	"github.com/go-go-golems/datachat/pkg/db"
	"github.com/go-go-golems/datachat/pkg/session"
	"github.com/go-go-golems/datachat/pkg/synth"
	"github.com/pterm/pterm"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	os.Exit(m.Run())
}

func TestNarrativePrintsTextAndTable(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(WithWriter(&buf), WithMarkdown(false, ""))

	table := &db.Table{Columns: []string{"Total_Profit"}, Rows: [][]any{{10.5}, {nil}}}
	require.NoError(t, term.Narrative("q", "Asia made 10.5.", table))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "Asia made 10.5.\n"))
	require.Contains(t, out, "Total_Profit")
	require.Contains(t, out, "10.5")
	require.Contains(t, out, "NULL")
}

func TestChartWritesFiles(t *testing.T) {
	var buf bytes.Buffer
	dir := t.TempDir()
	term := NewTerminal(WithWriter(&buf), WithChartDir(dir), WithMaxTableRows(2))

	fig := &chart.Figure{
		Data:   []chart.Trace{{Type: "bar", X: []any{"Asia", "Europe", "Africa"}, Y: []any{12.5, 5.0, 1.0}}},
		Layout: chart.Layout{Title: "Profit by region", Height: chart.DefaultHeight},
	}
	table := &db.Table{
		Columns: []string{"Region", "Total_Profit"},
		Rows:    [][]any{{"Asia", 12.5}, {"Europe", 5.0}, {"Africa", 1.0}},
	}
	require.NoError(t, term.Chart("q", &synth.Chart{Figure: fig}, table))

	out := buf.String()
	require.Contains(t, out, "Profit by region")
	require.Contains(t, out, "Asia (12.5)")
	require.Contains(t, out, "... 1 more rows")

	htmlFiles, err := filepath.Glob(filepath.Join(dir, "chart-*.html"))
	require.NoError(t, err)
	require.Len(t, htmlFiles, 1)
	jsonFiles, err := filepath.Glob(filepath.Join(dir, "chart-*.json"))
	require.NoError(t, err)
	require.Len(t, jsonFiles, 1)
}

func TestNoticesAndHistory(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(WithWriter(&buf), WithShowSQL(false))

	require.NoError(t, term.Query("SELECT 1"))
	require.Empty(t, buf.String())

	require.NoError(t, term.SetupError(session.SetupErrorMessage))
	require.NoError(t, term.Notice("The query failed"))
	term.History([]session.ConversationTurn{
		session.NewTurn(session.RoleUser, "profit?"),
		session.NewTurn(session.RoleAssistant, "10.5"),
	})

	out := buf.String()
	require.Contains(t, out, session.SetupErrorMessage)
	require.Contains(t, out, "The query failed")
	require.Contains(t, out, "[user] profit?")
	require.Contains(t, out, "[assistant] 10.5")
}

func TestPrompterSkipsBlankLinesAndQuitsOnEOF(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("\n  \nWhat is the profit?\n"), &out)

	q, err := p.Ask()
	require.NoError(t, err)
	require.Equal(t, "What is the profit?", q)

	_, err = p.Ask()
	require.ErrorIs(t, err, ErrQuit)
}
