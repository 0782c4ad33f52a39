package session

import (
	"context"

	"github.com/go-go-golems/datachat/pkg/db"
	"github.com/go-go-golems/datachat/pkg/llm"
	"github.com/go-go-golems/datachat/pkg/metrics"
	"github.com/go-go-golems/datachat/pkg/prompts"
	"github.com/go-go-golems/datachat/pkg/retry"
	"github.com/go-go-golems/datachat/pkg/router"
	"github.com/go-go-golems/datachat/pkg/sandbox"
	"github.com/go-go-golems/datachat/pkg/synth"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SetupErrorMessage is shown when the database cannot be reached at startup.
const SetupErrorMessage = "Connection to DB failed. Check you have permission and correct DB credentials"

var ErrSetup = errors.New("session setup failed")

type Config struct {
	DB                 db.Config
	Retry              retry.Config
	Sandbox            sandbox.Config
	NarrativeThreshold int
	ChartHeight        int
	// Model is used to count schema tokens; SchemaTokenBudget of 0 disables
	// the check.
	Model             string
	SchemaTokenBudget int
}

func DefaultConfig() Config {
	return Config{
		DB:                 db.DefaultConfig(),
		Retry:              retry.DefaultConfig(),
		Sandbox:            sandbox.DefaultConfig(),
		NarrativeThreshold: router.DefaultNarrativeThreshold,
		SchemaTokenBudget:  8000,
	}
}

func (c *Config) Clone() *Config {
	return clone.Clone(c).(*Config)
}

// Open connects to the database, reads its schema and wires the pipeline.
// Connection and schema failures are shown through SetupError.
func Open(ctx context.Context, config Config, completer llm.Completer, catalog *prompts.Catalog, p Presenter) (*Session, error) {
	cfg := config.Clone()
	if catalog == nil {
		catalog = prompts.Default()
	}

	dialect, err := db.LookupDialect(cfg.DB.Driver)
	if err != nil {
		return nil, setupFailed(p, err)
	}
	conn, err := db.Open(ctx, cfg.DB)
	if err != nil {
		return nil, setupFailed(p, err)
	}
	schema, err := db.DescribeSchema(ctx, conn, dialect, cfg.DB.ExcludeTables)
	if err != nil {
		_ = conn.Close()
		return nil, setupFailed(p, err)
	}
	log.Info().
		Str("driver", dialect.Driver).
		Strs("tables", schema.TableNames()).
		Msg("schema loaded")

	observer := metrics.LoopObserver{}
	queries := synth.NewQuerySynthesizer(
		retry.New("sql", completer, retry.WithConfig(cfg.Retry), retry.WithObserver(observer)),
		synth.WithDialect(dialect),
		synth.WithQueryTemplate(catalog.SQL),
	)
	vizOpts := []synth.VizOption{synth.WithChartTemplate(catalog.Chart)}
	if cfg.ChartHeight > 0 {
		vizOpts = append(vizOpts, synth.WithChartHeight(cfg.ChartHeight))
	}
	charts := synth.NewVizSynthesizer(
		retry.New("chart", completer, retry.WithConfig(cfg.Retry), retry.WithObserver(observer)),
		sandbox.New(sandbox.WithConfig(cfg.Sandbox)),
		vizOpts...,
	)
	narrator := synth.NewNarrator(completer, &catalog.Narrative)
	r := router.New(narrator, charts, p, router.WithThreshold(cfg.NarrativeThreshold))

	s := New(schema, db.NewExecutorFromConfig(conn, cfg.DB), queries, r, p)
	s.closers = append(s.closers, conn.Close)
	s.config = cfg

	s.checkSchemaBudget(cfg.Model, cfg.SchemaTokenBudget)
	return s, nil
}

// Config returns a copy of the configuration the session was opened with.
func (s *Session) Config() Config {
	if s.config == nil {
		return Config{}
	}
	return *s.config.Clone()
}

func setupFailed(p Presenter, err error) error {
	log.Error().Err(err).Msg("session setup failed")
	if p != nil {
		if perr := p.SetupError(SetupErrorMessage); perr != nil {
			log.Warn().Err(perr).Msg("could not show setup error")
		}
	}
	return errors.Wrapf(ErrSetup, "%v", err)
}

// SchemaTokens counts the tokens of the schema description for model.
func (s *Session) SchemaTokens(model string) (int, error) {
	return llm.CountTokens(model, s.schemaText)
}

func (s *Session) checkSchemaBudget(model string, budget int) {
	if budget <= 0 {
		return
	}
	n, err := s.SchemaTokens(model)
	if err != nil {
		log.Debug().Err(err).Msg("could not count schema tokens")
		return
	}
	if n <= budget {
		return
	}
	log.Warn().Int("tokens", n).Int("budget", budget).Msg("schema description exceeds token budget")
	msg := "The schema description is large and may not fit the model context; consider --db-exclude-tables."
	if err := s.presenter.Notice(msg); err != nil {
		log.Warn().Err(err).Msg("could not show notice")
	}
}
