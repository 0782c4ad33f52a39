// Package ui renders a chat session in the terminal: tables and bar charts
// with pterm, narrative answers as markdown through glamour.
package ui

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/datachat/pkg/chart"
	"github.com/go-go-golems/datachat/pkg/db"
	"github.com/go-go-golems/datachat/pkg/session"
	"github.com/go-go-golems/datachat/pkg/synth"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog/log"
)

const defaultMaxTableRows = 50

type Terminal struct {
	out          io.Writer
	markdown     bool
	style        string
	chartDir     string
	maxTableRows int
	showSQL      bool
	showCode     bool
}

type Option func(*Terminal)

func WithWriter(w io.Writer) Option {
	return func(t *Terminal) { t.out = w }
}

// WithMarkdown toggles glamour rendering of narrative text.
func WithMarkdown(enabled bool, style string) Option {
	return func(t *Terminal) {
		t.markdown = enabled
		if style != "" {
			t.style = style
		}
	}
}

// WithChartDir makes every chart also be written as JSON and HTML into dir.
func WithChartDir(dir string) Option {
	return func(t *Terminal) { t.chartDir = dir }
}

func WithMaxTableRows(n int) Option {
	return func(t *Terminal) { t.maxTableRows = n }
}

func WithShowSQL(show bool) Option {
	return func(t *Terminal) { t.showSQL = show }
}

func WithShowCode(show bool) Option {
	return func(t *Terminal) { t.showCode = show }
}

func NewTerminal(opts ...Option) *Terminal {
	t := &Terminal{
		out:          os.Stdout,
		markdown:     isatty.IsTerminal(os.Stdout.Fd()),
		style:        "dark",
		maxTableRows: defaultMaxTableRows,
		showSQL:      true,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

var _ session.Presenter = (*Terminal)(nil)

func (t *Terminal) Narrative(question string, text string, table *db.Table) error {
	if t.markdown {
		styled, err := glamour.Render(text, t.style)
		if err != nil {
			log.Debug().Err(err).Msg("markdown rendering failed")
		} else {
			text = styled
		}
	}
	fmt.Fprintln(t.out, strings.TrimRight(text, "\n"))
	return t.Table(table)
}

func (t *Terminal) Chart(question string, c *synth.Chart, table *db.Table) error {
	fig := c.Figure
	title := fig.Title()
	if title == "" {
		title = question
	}
	fmt.Fprintln(t.out, pterm.NewStyle(pterm.FgLightCyan, pterm.Bold).Sprint(title))

	if err := t.bars(fig); err != nil {
		return err
	}
	if t.showCode && c.Code != "" {
		fmt.Fprintln(t.out, pterm.DefaultBox.WithTitle("chart code").Sprint(strings.TrimSpace(c.Code)))
	}
	if t.chartDir != "" {
		jsonPath, htmlPath, err := fig.WriteFiles(t.chartDir, "chart-"+uuid.NewString())
		if err != nil {
			return err
		}
		pterm.Info.WithWriter(t.out).Println("Chart written to " + filepath.Clean(htmlPath) + " (" + filepath.Base(jsonPath) + ")")
	}
	return t.Table(table)
}

func (t *Terminal) bars(fig *chart.Figure) error {
	points := fig.Points()
	if len(points) == 0 {
		return nil
	}
	bars := make(pterm.Bars, 0, len(points))
	for _, p := range points {
		bars = append(bars, pterm.Bar{
			Label: p.Label + " (" + strconv.FormatFloat(p.Value, 'f', -1, 64) + ")",
			Value: int(p.Value + 0.5),
		})
	}
	s, err := pterm.DefaultBarChart.WithBars(bars).WithHorizontal().Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(t.out, s)
	return nil
}

// Table prints a result table, capped at the configured number of rows.
func (t *Terminal) Table(table *db.Table) error {
	if table == nil {
		return nil
	}
	data := pterm.TableData{table.Columns}
	for i, row := range table.Rows {
		if t.maxTableRows > 0 && i >= t.maxTableRows {
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = db.FormatValue(v)
		}
		data = append(data, cells)
	}
	s, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(t.out, s)
	if hidden := table.Len() - t.maxTableRows; t.maxTableRows > 0 && hidden > 0 {
		fmt.Fprintf(t.out, "... %d more rows\n", hidden)
	}
	if table.Truncated {
		pterm.Warning.WithWriter(t.out).Println("Result was cut off at the row limit.")
	}
	return nil
}

func (t *Terminal) Query(sql string) error {
	if !t.showSQL {
		return nil
	}
	fmt.Fprintln(t.out, pterm.DefaultBox.WithTitle("SQL").Sprint(strings.TrimSpace(sql)))
	return nil
}

func (t *Terminal) Notice(msg string) error {
	pterm.Warning.WithWriter(t.out).Println(msg)
	return nil
}

func (t *Terminal) SetupError(msg string) error {
	pterm.Error.WithWriter(t.out).Println(msg)
	return nil
}

func (t *Terminal) History(turns []session.ConversationTurn) {
	if len(turns) == 0 {
		pterm.Info.WithWriter(t.out).Println("No history yet.")
		return
	}
	for _, turn := range turns {
		style := pterm.NewStyle(pterm.FgLightCyan, pterm.Bold)
		if turn.Role == session.RoleAssistant {
			style = pterm.NewStyle(pterm.FgGreen, pterm.Bold)
		}
		fmt.Fprintf(t.out, "%s %s\n", style.Sprint("["+string(turn.Role)+"]"), strings.TrimRight(turn.Content, "\n"))
	}
}

func (t *Terminal) Schema(s *db.Schema, tokens int) {
	fmt.Fprintln(t.out, s.Text())
	if tokens > 0 {
		pterm.Info.WithWriter(t.out).Println(fmt.Sprintf("%d tables, %d tokens", len(s.Tables), tokens))
	}
}
