package db

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// PromptsTable is an optional table of free-form hints that are appended to
// the schema description.
const PromptsTable = "_prompts"

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type TableSchema struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns,omitempty"`
	// DDL is the CREATE statement when the dialect exposes it.
	DDL string `json:"ddl,omitempty"`
}

type Schema struct {
	Dialect Dialect       `json:"-"`
	Tables  []TableSchema `json:"tables"`
	Hints   []string      `json:"hints,omitempty"`
}

// Text is the schema description handed to the model.
func (s *Schema) Text() string {
	var b strings.Builder
	for i, t := range s.Tables {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if t.DDL != "" {
			b.WriteString(strings.TrimSuffix(strings.TrimSpace(t.DDL), ";"))
			b.WriteString(";")
			continue
		}
		b.WriteString("CREATE TABLE ")
		b.WriteString(t.Name)
		b.WriteString(" (\n")
		for j, c := range t.Columns {
			b.WriteString("  ")
			b.WriteString(c.Name)
			if c.Type != "" {
				b.WriteString(" ")
				b.WriteString(c.Type)
			}
			if j < len(t.Columns)-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
		b.WriteString(");")
	}
	if len(s.Hints) > 0 {
		b.WriteString("\n\nNotes:\n")
		for _, h := range s.Hints {
			b.WriteString("\n- ")
			b.WriteString(h)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (s *Schema) TableNames() []string {
	ret := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		ret = append(ret, t.Name)
	}
	return ret
}

// DescribeSchema introspects the database. Tables listed in exclude (and the
// prompts table) are left out.
func DescribeSchema(ctx context.Context, db DBLike, d Dialect, exclude []string) (*Schema, error) {
	skip := map[string]bool{PromptsTable: true}
	for _, e := range exclude {
		skip[strings.ToLower(e)] = true
	}

	var (
		tables []TableSchema
		err    error
	)
	if d.ColumnsQuery == "" {
		tables, err = sqliteTables(ctx, db)
	} else {
		tables, err = informationSchemaTables(ctx, db, d.ColumnsQuery)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "describe %s schema", d.Name)
	}

	s := &Schema{Dialect: d}
	for _, t := range tables {
		if skip[strings.ToLower(t.Name)] {
			continue
		}
		s.Tables = append(s.Tables, t)
	}

	hints, err := LoadHints(ctx, db)
	if err != nil {
		log.Debug().Err(err).Msg("no schema hints table")
	}
	s.Hints = hints

	return s, nil
}

func sqliteTables(ctx context.Context, db DBLike) ([]TableSchema, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, sql FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to close rows")
		}
	}()

	var ret []TableSchema
	for rows.Next() {
		var name, ddl string
		if err := rows.Scan(&name, &ddl); err != nil {
			return nil, err
		}
		ret = append(ret, TableSchema{Name: name, DDL: ddl})
	}
	return ret, rows.Err()
}

func informationSchemaTables(ctx context.Context, db DBLike, query string) ([]TableSchema, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to close rows")
		}
	}()

	var ret []TableSchema
	for rows.Next() {
		var table, column, typ string
		if err := rows.Scan(&table, &column, &typ); err != nil {
			return nil, err
		}
		if len(ret) == 0 || ret[len(ret)-1].Name != table {
			ret = append(ret, TableSchema{Name: table})
		}
		last := &ret[len(ret)-1]
		last.Columns = append(last.Columns, Column{Name: column, Type: typ})
	}
	return ret, rows.Err()
}

// LoadHints reads the optional prompts table with a single text column.
func LoadHints(ctx context.Context, db DBLike) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT prompt FROM `+PromptsTable)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to close rows")
		}
	}()
	var hints []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		if p = strings.TrimSpace(p); p != "" {
			hints = append(hints, p)
		}
	}
	return hints, rows.Err()
}
