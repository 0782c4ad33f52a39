package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type sqlData struct {
	Dialect          string
	DialectNotes     string
	Schema           string
	ResponseSchema   string
	Question         string
	LastError        string
	PreviousResponse string
}

func TestDefaultCatalogRendersSQL(t *testing.T) {
	c := Default()
	p, err := c.SQL.Render(sqlData{
		Dialect:  "SQLite",
		Schema:   "Table: Sales1m\n  - Region (TEXT)\n  - Total_Profit (REAL)",
		Question: "What is the profit in asia?",
	})
	require.NoError(t, err)
	require.Contains(t, p.System, "SQLite query")
	require.Contains(t, p.System, "Table: Sales1m")
	require.NotContains(t, p.System, "JSON schema")
	require.Contains(t, p.User, "What is the profit in asia?")
}

func TestCorrectionCarriesErrorAndResponseVerbatim(t *testing.T) {
	c := Default()
	prev := "```json\n{\"qurey\": \"SELECT\"\n```"
	p, err := c.SQL.RenderCorrection(sqlData{
		Dialect:          "SQLite",
		Question:         "q",
		LastError:        "unexpected end of JSON input",
		PreviousResponse: prev,
	})
	require.NoError(t, err)
	require.Contains(t, p.User, "unexpected end of JSON input")
	require.Contains(t, p.User, prev)
}

func TestChartTemplateUsesSprig(t *testing.T) {
	c := Default()
	p, err := c.Chart.Render(struct {
		Question string
		Columns  []string
		Rows     [][]any
	}{
		Question: "profit by region",
		Columns:  []string{"Region", "Total_Profit"},
		Rows:     [][]any{{"Asia", 10}, {"Europe", 20}},
	})
	require.NoError(t, err)
	require.Contains(t, p.User, "Columns: Region, Total_Profit")
	require.Contains(t, p.User, `[["Asia",10],["Europe",20]]`)
	require.Contains(t, p.System, "generate_fig")
}

func TestLoadOverridesSingleTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("narrative:\n  system: be brief\n  user: \"{{ .Question }}\"\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "be brief", c.Narrative.System)
	require.Equal(t, Default().SQL, c.SQL)
}

func TestParseRejectsIncompleteCatalog(t *testing.T) {
	_, err := Parse([]byte("sql:\n  system: x\n"))
	require.Error(t, err)
}
