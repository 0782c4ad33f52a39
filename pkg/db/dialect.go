package db

import (
	"sort"

	"github.com/pkg/errors"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
	DriverMySQL    = "mysql"
	DriverDuckDB   = "duckdb"
)

// Dialect describes what the model needs to know about a driver's SQL and how
// its schema is introspected.
type Dialect struct {
	Driver string
	Name   string
	Notes  string
	// SingleConnection limits the pool to one connection, which keeps
	// in-memory databases alive across queries.
	SingleConnection bool
	// ColumnsQuery lists (table, column, type) rows ordered by table and
	// column position. Empty for dialects that introspect per table.
	ColumnsQuery string
}

var dialects = map[string]Dialect{
	DriverSQLite: {
		Driver:           DriverSQLite,
		Name:             "SQLite",
		Notes:            "Use SQLite functions only; there is no RIGHT JOIN and dates are stored as text.",
		SingleConnection: true,
	},
	DriverPostgres: {
		Driver: DriverPostgres,
		Name:   "PostgreSQL",
		Notes:  "Quote mixed-case identifiers with double quotes.",
		ColumnsQuery: `SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
ORDER BY table_name, ordinal_position`,
	},
	DriverMySQL: {
		Driver: DriverMySQL,
		Name:   "MySQL",
		Notes:  "Quote identifiers with backticks.",
		ColumnsQuery: `SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = DATABASE()
ORDER BY table_name, ordinal_position`,
	},
	DriverDuckDB: {
		Driver:           DriverDuckDB,
		Name:             "DuckDB",
		Notes:            "DuckDB uses PostgreSQL-like SQL syntax.",
		SingleConnection: true,
		ColumnsQuery: `SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema NOT IN ('information_schema', 'pg_catalog')
ORDER BY table_name, ordinal_position`,
	},
}

var driverAliases = map[string]string{
	"sqlite":     DriverSQLite,
	"postgres":   DriverPostgres,
	"postgresql": DriverPostgres,
}

func LookupDialect(driver string) (Dialect, error) {
	if a, ok := driverAliases[driver]; ok {
		driver = a
	}
	d, ok := dialects[driver]
	if !ok {
		return Dialect{}, errors.Errorf("unsupported database driver %q (supported: %v)", driver, Drivers())
	}
	return d, nil
}

func Drivers() []string {
	ret := make([]string, 0, len(dialects))
	for k := range dialects {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}
