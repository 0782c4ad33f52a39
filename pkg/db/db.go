// Package db is the database side of datachat: it opens a connection for one
// of the supported drivers, describes the schema for the model, and runs the
// synthesized SQL.
package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/mattn/go-sqlite3"
)

// DBLike abstracts *sql.DB (and compatible types).
type DBLike interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Config struct {
	Driver        string        `yaml:"driver"`
	DSN           string        `yaml:"dsn"`
	MaxRows       int           `yaml:"max_rows"`
	Timeout       time.Duration `yaml:"timeout"`
	ReadOnly      bool          `yaml:"read_only"`
	ExcludeTables []string      `yaml:"exclude_tables,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Driver:   DriverSQLite,
		MaxRows:  1000,
		Timeout:  30 * time.Second,
		ReadOnly: true,
	}
}

// Open connects to the configured database and pings it.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	d, err := LookupDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("database dsn is required")
	}

	db, err := sql.Open(d.Driver, cfg.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", d.Driver)
	}
	if d.SingleConnection {
		db.SetMaxOpenConns(1)
	}

	pingCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "connect to %s database", d.Driver)
	}

	log.Debug().Str("driver", d.Driver).Msg("database connected")
	return db, nil
}
