package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/datachat/pkg/db"
	"github.com/go-go-golems/datachat/pkg/llm"
	"github.com/go-go-golems/datachat/pkg/retry"
	"github.com/go-go-golems/datachat/pkg/router"
	"github.com/go-go-golems/datachat/pkg/synth"
	"github.com/stretchr/testify/require"
)

type recordingPresenter struct {
	queries     []string
	notices     []string
	setupErrors []string
	narratives  []string
	charts      []*synth.Chart
	tables      []*db.Table
}

func (p *recordingPresenter) Narrative(question string, text string, table *db.Table) error {
	p.narratives = append(p.narratives, text)
	p.tables = append(p.tables, table)
	return nil
}

func (p *recordingPresenter) Chart(question string, c *synth.Chart, table *db.Table) error {
	p.charts = append(p.charts, c)
	p.tables = append(p.tables, table)
	return nil
}

func (p *recordingPresenter) Query(sql string) error {
	p.queries = append(p.queries, sql)
	return nil
}

func (p *recordingPresenter) Notice(msg string) error {
	p.notices = append(p.notices, msg)
	return nil
}

func (p *recordingPresenter) SetupError(msg string) error {
	p.setupErrors = append(p.setupErrors, msg)
	return nil
}

func salesDB(t *testing.T) db.Config {
	t.Helper()
	cfg := db.DefaultConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "sales.db")

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.ExecContext(ctx, `CREATE TABLE Sales1m (Region TEXT, Country TEXT, Total_Profit REAL)`)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `INSERT INTO Sales1m VALUES
		('Asia', 'Japan', 120.5),
		('Europe', 'France', 80),
		('Europe', 'Spain', 20),
		('Africa', 'Kenya', 15),
		('Asia', 'India', 30),
		('Oceania', 'Fiji', 5),
		('Americas', 'Peru', 12),
		('Americas', 'Chile', 18)`)
	require.NoError(t, err)
	return cfg
}

func openSession(t *testing.T, c llm.Completer, p Presenter) *Session {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DB = salesDB(t)
	cfg.Retry = retry.DefaultConfig().WithIntervals(0, 0)
	cfg.SchemaTokenBudget = 0

	s, err := Open(context.Background(), cfg, c, nil, p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNarrativeTurn(t *testing.T) {
	c := llm.NewScriptedTextCompleter(
		"```json\n{\"query\": \"SELECT Total_Profit FROM Sales1m WHERE Region = 'Asia'\", \"error\": null}\n```",
		"Asia made 150.5 in profit.",
	)
	p := &recordingPresenter{}
	s := openSession(t, c, p)
	require.Contains(t, s.SchemaText(), "Sales1m")

	res, err := s.RunTurn(context.Background(), "What is the profit in asia?")
	require.NoError(t, err)
	require.Equal(t, OutcomeOK, res.Outcome)
	require.Equal(t, router.PathNarrative, res.Route.Path)
	require.Equal(t, []string{"SELECT Total_Profit FROM Sales1m WHERE Region = 'Asia'"}, p.queries)
	require.Equal(t, []string{"Asia made 150.5 in profit."}, p.narratives)
	require.Equal(t, 2, p.tables[0].Len())

	turns := s.History().Turns()
	require.Len(t, turns, 2)
	require.Equal(t, RoleUser, turns[0].Role)
	require.Equal(t, "What is the profit in asia?", turns[0].Content)
	require.Equal(t, RoleAssistant, turns[1].Role)
	require.Equal(t, "Asia made 150.5 in profit.", turns[1].Content)
}

func TestChartTurn(t *testing.T) {
	c := llm.NewScriptedTextCompleter(
		`{"query": "SELECT Region, Total_Profit FROM Sales1m", "error": null}`,
		"```javascript\n"+`const chart = require("chart");
const data = require("data");
function generate_fig() {
  const g = data.groupSum(rows, 0, 1);
  return chart.bar({x: g.keys, y: g.values, title: "Profit by region"});
}`+"\n```",
	)
	p := &recordingPresenter{}
	s := openSession(t, c, p)

	res, err := s.RunTurn(context.Background(), "Show profit by region")
	require.NoError(t, err)
	require.Equal(t, router.PathChart, res.Route.Path)
	require.Len(t, p.charts, 1)
	require.Equal(t, 400, p.charts[0].Figure.Layout.Height)
	require.Equal(t, 8, p.tables[0].Len())
	require.Equal(t, "Chart: Profit by region (8 rows)", s.History().Turns()[1].Content)
}

func TestSQLErrorEndsTurn(t *testing.T) {
	c := llm.NewScriptedTextCompleter(`{"query": "SELECT Profit FROM Sales1m", "error": null}`)
	p := &recordingPresenter{}
	s := openSession(t, c, p)

	res, err := s.RunTurn(context.Background(), "profit?")
	require.Error(t, err)
	require.ErrorIs(t, err, db.ErrSQLExecution)
	require.Equal(t, OutcomeSQLError, res.Outcome)
	require.Equal(t, 1, c.Calls())
	require.Len(t, p.notices, 1)
	require.Contains(t, p.notices[0], "The query failed: no such column: Profit")
	require.Empty(t, p.narratives)
	require.Len(t, s.History().Turns(), 1)
}

func TestModelDeclinedIsNotExecuted(t *testing.T) {
	c := llm.NewScriptedTextCompleter(`{"query": "DROP TABLE Sales1m", "error": "The question is not about the data"}`)
	p := &recordingPresenter{}
	s := openSession(t, c, p)

	res, err := s.RunTurn(context.Background(), "drop everything")
	require.Error(t, err)
	require.Equal(t, OutcomeModelDeclined, res.Outcome)
	require.Empty(t, p.queries)
	require.Equal(t, []string{"The question is not about the data"}, p.notices)

	turns := s.History().Turns()
	require.Len(t, turns, 2)
	require.Equal(t, "The question is not about the data", turns[1].Content)
}

func TestSetupErrorIsShown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DB.DSN = filepath.Join(t.TempDir(), "missing", "dir", "x.db")
	p := &recordingPresenter{}

	s, err := Open(context.Background(), cfg, llm.NewScriptedTextCompleter("unused"), nil, p)
	require.Nil(t, s)
	require.ErrorIs(t, err, ErrSetup)
	require.Equal(t, []string{SetupErrorMessage}, p.setupErrors)
}

func TestMalformedFirstAnswerEndsTurnAndCanBeCorrected(t *testing.T) {
	c := llm.NewScriptedTextCompleter(
		"SELECT Total_Profit FROM Sales1m WHERE Region = 'Asia'",
		`{"query": "SELECT Total_Profit FROM Sales1m WHERE Region = 'Asia'", "error": null}`,
		"Asia made 150.5 in profit.",
	)
	p := &recordingPresenter{}
	s := openSession(t, c, p)

	res, err := s.RunTurn(context.Background(), "What is the profit in asia?")
	require.Error(t, err)
	require.Equal(t, OutcomeNoQuery, res.Outcome)
	require.Equal(t, 1, c.Calls())
	require.Empty(t, p.queries)
	require.NotNil(t, res.Rejected)
	require.Equal(t, "SELECT Total_Profit FROM Sales1m WHERE Region = 'Asia'", res.Rejected.Response)
	require.Contains(t, res.Rejected.Error, "invalid JSON")

	res, err = s.RunTurn(context.Background(), res.Question, WithPreviousResponse(res.Rejected))
	require.NoError(t, err)
	require.Equal(t, OutcomeOK, res.Outcome)
	require.Nil(t, res.Rejected)
	require.Equal(t, []string{"Asia made 150.5 in profit."}, p.narratives)

	prompts := c.Prompts()
	require.Len(t, prompts, 3)
	require.Contains(t, prompts[1].User, "invalid JSON")
	require.Contains(t, prompts[1].User, "SELECT Total_Profit FROM Sales1m WHERE Region = 'Asia'")
}

func TestOpenKeepsItsOwnConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DB = salesDB(t)
	cfg.DB.ExcludeTables = []string{"audit"}
	cfg.SchemaTokenBudget = 0

	s, err := Open(context.Background(), cfg, llm.NewScriptedTextCompleter("unused"), nil, &recordingPresenter{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg.DB.ExcludeTables[0] = "Sales1m"
	got := s.Config()
	require.Equal(t, []string{"audit"}, got.DB.ExcludeTables)

	got.DB.ExcludeTables[0] = "changed"
	require.Equal(t, []string{"audit"}, s.Config().DB.ExcludeTables)
}

type fakeQueries struct {
	q   *synth.Query
	err error
}

func (f fakeQueries) Synthesize(ctx context.Context, schemaText string, question string, opts ...synth.SynthesizeOption) (*synth.Query, error) {
	return f.q, f.err
}

type failingExecutor struct{ calls int }

func (f *failingExecutor) Execute(ctx context.Context, sql string) (*db.Table, error) {
	f.calls++
	return nil, &db.ExecutionError{SQL: sql}
}

func TestAbandonedAndEmptyQueries(t *testing.T) {
	p := &recordingPresenter{}
	ex := &failingExecutor{}
	abandoned := &retry.AbandonedError{Name: "sql", Attempts: 3}

	s := New(&db.Schema{}, ex, fakeQueries{err: abandoned}, nil, p)
	res, err := s.RunTurn(context.Background(), "q")
	require.ErrorIs(t, err, retry.ErrAbandoned)
	require.Equal(t, OutcomeAbandoned, res.Outcome)

	s = New(&db.Schema{}, ex, fakeQueries{}, nil, p)
	res, err = s.RunTurn(context.Background(), "q")
	require.Error(t, err)
	require.Equal(t, OutcomeNoQuery, res.Outcome)

	require.Equal(t, 0, ex.calls)
	require.Len(t, p.notices, 2)
}
