package cmds

import (
	"context"
	"os"
	"time"

	"github.com/go-go-golems/datachat/pkg/db"
	"github.com/go-go-golems/datachat/pkg/llm"
	"github.com/go-go-golems/datachat/pkg/prompts"
	"github.com/go-go-golems/datachat/pkg/retry"
	"github.com/go-go-golems/datachat/pkg/router"
	"github.com/go-go-golems/datachat/pkg/sandbox"
	"github.com/go-go-golems/datachat/pkg/secrets"
	"github.com/go-go-golems/datachat/pkg/session"
	"github.com/go-go-golems/datachat/pkg/ui"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AddFlags registers the persistent flags shared by all commands. They are
// bound to viper, so every flag can also come from the config file or a
// DATACHAT_ environment variable.
func AddFlags(fs *pflag.FlagSet) {
	dbDefaults := db.DefaultConfig()
	retryDefaults := retry.DefaultConfig()
	sandboxDefaults := sandbox.DefaultConfig()

	fs.String("db-driver", dbDefaults.Driver, "Database driver (sqlite3, pgx, mysql, duckdb)")
	fs.String("db-dsn", "", "Database DSN (default: value stored with 'datachat connect')")
	fs.Int("db-max-rows", dbDefaults.MaxRows, "Maximum number of rows fetched per query")
	fs.Duration("db-timeout", dbDefaults.Timeout, "Query timeout")
	fs.Bool("db-read-only", dbDefaults.ReadOnly, "Only run read-only statements")
	fs.StringSlice("db-exclude-tables", nil, "Tables left out of the schema description")

	fs.String("ai-api-type", string(llm.ApiTypeOpenAI), "API type (openai, azure)")
	fs.String("ai-engine", llm.DefaultEngine, "Model or Azure deployment name")
	fs.String("ai-base-url", "", "API base URL (required for azure)")
	fs.Bool("ai-allow-local", false, "Allow http and local network base URLs (self-hosted servers)")
	fs.String("openai-api-key", "", "API key (default: value stored with 'datachat connect')")
	fs.Float64("ai-temperature", -1, "Sampling temperature (negative: provider default)")
	fs.Int("ai-max-response-tokens", 0, "Maximum response tokens (0: provider default)")
	fs.Duration("ai-timeout", 60*time.Second, "Timeout of a single model call")

	fs.Int("retry-max-attempts", retryDefaults.MaxAttempts, "Maximum model calls per query or chart")
	fs.Duration("retry-initial-interval", retryDefaults.InitialInterval, "First wait between attempts")
	fs.Duration("retry-max-interval", retryDefaults.MaxInterval, "Largest wait between attempts")

	fs.Int("narrative-threshold", router.DefaultNarrativeThreshold, "Results with fewer rows are summarized in words, others are charted")
	fs.Duration("sandbox-timeout", sandboxDefaults.Timeout, "Time limit for running chart code")
	fs.Int("sandbox-max-call-stack", sandboxDefaults.MaxCallStackSize, "Call stack limit for chart code")

	fs.String("chart-dir", "", "Also write charts as JSON and HTML into this directory")
	fs.Bool("show-sql", true, "Print the generated SQL")
	fs.Bool("show-code", false, "Print the generated chart code")
	fs.String("prompts-file", "", "YAML file overriding the built-in prompts")
	fs.String("metrics-addr", "", "Serve prometheus metrics on this address (e.g. :9090)")
	fs.Int("schema-token-budget", 8000, "Warn when the schema description exceeds this many tokens (0: off)")
	fs.Bool("no-keychain", false, "Do not read or write the OS keychain")
}

func openKeychain() *secrets.Store {
	if viper.GetBool("no-keychain") {
		return nil
	}
	s, err := secrets.Open()
	if err != nil {
		log.Debug().Err(err).Msg("keychain not available")
		return nil
	}
	return s
}

func loadDBConfig(store *secrets.Store) (db.Config, error) {
	cfg := db.DefaultConfig()
	cfg.Driver = viper.GetString("db-driver")
	cfg.MaxRows = viper.GetInt("db-max-rows")
	cfg.Timeout = viper.GetDuration("db-timeout")
	cfg.ReadOnly = viper.GetBool("db-read-only")
	cfg.ExcludeTables = viper.GetStringSlice("db-exclude-tables")

	dsn, err := store.Fallback(secrets.KeyDBDSN, viper.GetString("db-dsn"))
	if err != nil {
		return cfg, err
	}
	if dsn == "" {
		return cfg, errors.New("no database configured: pass --db-dsn or run 'datachat connect'")
	}
	cfg.DSN = dsn
	return cfg, nil
}

func loadLLMSettings(store *secrets.Store) (*llm.Settings, error) {
	s := llm.NewSettings()
	s.ApiType = llm.ApiType(viper.GetString("ai-api-type"))
	s.Engine = viper.GetString("ai-engine")
	s.BaseURL = viper.GetString("ai-base-url")
	s.AllowLocalBaseURL = viper.GetBool("ai-allow-local")
	if s.BaseURL == "" && s.ApiType == llm.ApiTypeOpenAI {
		s.BaseURL = llm.DefaultBaseURL
	}
	s.Timeout = viper.GetDuration("ai-timeout")
	if t := viper.GetFloat64("ai-temperature"); t >= 0 {
		s.Temperature = &t
	}
	if n := viper.GetInt("ai-max-response-tokens"); n > 0 {
		s.MaxResponseTokens = &n
	}

	key, err := store.Fallback(secrets.KeyAPIKey, viper.GetString("openai-api-key"))
	if err != nil {
		return nil, err
	}
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	s.APIKey = key

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func loadSessionConfig(store *secrets.Store) (session.Config, error) {
	cfg := session.DefaultConfig()
	dbCfg, err := loadDBConfig(store)
	if err != nil {
		return cfg, err
	}
	cfg.DB = dbCfg
	cfg.Retry = retry.DefaultConfig().
		WithMaxAttempts(viper.GetInt("retry-max-attempts")).
		WithIntervals(viper.GetDuration("retry-initial-interval"), viper.GetDuration("retry-max-interval"))
	cfg.Sandbox.Timeout = viper.GetDuration("sandbox-timeout")
	cfg.Sandbox.MaxCallStackSize = viper.GetInt("sandbox-max-call-stack")
	cfg.NarrativeThreshold = viper.GetInt("narrative-threshold")
	cfg.Model = viper.GetString("ai-engine")
	cfg.SchemaTokenBudget = viper.GetInt("schema-token-budget")
	return cfg, nil
}

func newTerminal() *ui.Terminal {
	return ui.NewTerminal(
		ui.WithMarkdown(isatty.IsTerminal(os.Stdout.Fd()), ""),
		ui.WithChartDir(viper.GetString("chart-dir")),
		ui.WithShowSQL(viper.GetBool("show-sql")),
		ui.WithShowCode(viper.GetBool("show-code")),
	)
}

// openSession reads the configuration and connects. Configuration errors
// that concern the database are reported as setup errors.
func openSession(ctx context.Context, term *ui.Terminal) (*session.Session, error) {
	store := openKeychain()

	cfg, err := loadSessionConfig(store)
	if err != nil {
		_ = term.SetupError(session.SetupErrorMessage)
		return nil, err
	}
	settings, err := loadLLMSettings(store)
	if err != nil {
		return nil, err
	}
	completer, err := llm.NewOpenAIEngine(settings)
	if err != nil {
		return nil, err
	}
	catalog, err := prompts.Load(viper.GetString("prompts-file"))
	if err != nil {
		return nil, err
	}

	return session.Open(ctx, cfg, completer, catalog, term)
}
