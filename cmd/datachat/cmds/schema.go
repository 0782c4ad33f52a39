package cmds

import (
	"context"

	"github.com/go-go-golems/datachat/pkg/db"
	"github.com/go-go-golems/datachat/pkg/llm"
	"github.com/go-go-golems/datachat/pkg/session"
	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	cmd_middlewares "github.com/go-go-golems/glazed/pkg/cmds/middlewares"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type SchemaCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = &SchemaCommand{}

type SchemaSettings struct {
	Tables bool `glazed.parameter:"tables"`
	Prompt bool `glazed.parameter:"prompt"`
}

func NewSchemaCommand() (*SchemaCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, err
	}

	return &SchemaCommand{
		CommandDescription: cmds.NewCommandDescription(
			"schema",
			cmds.WithShort("Describe the schema sent to the model"),
			cmds.WithLong("List the columns of every table the model gets to see. "+
				"Excluded tables are left out."),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"tables",
					parameters.ParameterTypeBool,
					parameters.WithHelp("One row per table with its column count"),
					parameters.WithDefault(false),
				),
				parameters.NewParameterDefinition(
					"prompt",
					parameters.ParameterTypeBool,
					parameters.WithHelp("A single row holding the schema text and its token count"),
					parameters.WithDefault(false),
				),
			),
			cmds.WithLayersList(glazedParameterLayer),
		),
	}, nil
}

func (c *SchemaCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *layers.ParsedLayers,
	gp middlewares.Processor,
) error {
	s := &SchemaSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return err
	}

	cfg, err := loadDBConfig(openKeychain())
	if err != nil {
		_ = newTerminal().SetupError(session.SetupErrorMessage)
		return err
	}
	dialect, err := db.LookupDialect(cfg.Driver)
	if err != nil {
		return err
	}
	conn, err := db.Open(ctx, cfg)
	if err != nil {
		_ = newTerminal().SetupError(session.SetupErrorMessage)
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to close database")
		}
	}()

	schema, err := db.DescribeSchema(ctx, conn, dialect, cfg.ExcludeTables)
	if err != nil {
		return err
	}

	switch {
	case s.Prompt:
		tokens, err := llm.CountTokens(viper.GetString("ai-engine"), schema.Text())
		if err != nil {
			log.Debug().Err(err).Msg("could not count schema tokens")
		}
		return gp.AddRow(ctx, promptRow(schema, tokens))
	case s.Tables:
		return addRows(ctx, gp, tableRows(schema))
	default:
		return addRows(ctx, gp, columnRows(schema))
	}
}

type rowSink interface {
	AddRow(ctx context.Context, row types.Row) error
}

func addRows(ctx context.Context, gp rowSink, rows []types.Row) error {
	for _, row := range rows {
		if err := gp.AddRow(ctx, row); err != nil {
			return errors.Wrap(err, "failed to add schema row")
		}
	}
	return nil
}

func columnRows(s *db.Schema) []types.Row {
	var rows []types.Row
	for _, t := range s.Tables {
		for _, c := range t.Columns {
			rows = append(rows, types.NewRow(
				types.MRP("table", t.Name),
				types.MRP("column", c.Name),
				types.MRP("type", c.Type),
			))
		}
	}
	return rows
}

func tableRows(s *db.Schema) []types.Row {
	rows := make([]types.Row, 0, len(s.Tables))
	for _, t := range s.Tables {
		rows = append(rows, types.NewRow(
			types.MRP("table", t.Name),
			types.MRP("columns", len(t.Columns)),
			types.MRP("ddl", t.DDL != ""),
		))
	}
	return rows
}

func promptRow(s *db.Schema, tokens int) types.Row {
	return types.NewRow(
		types.MRP("dialect", s.Dialect.Name),
		types.MRP("tables", len(s.Tables)),
		types.MRP("tokens", tokens),
		types.MRP("text", s.Text()),
	)
}

func BuildSchemaCommand() (*cobra.Command, error) {
	schemaCmd, err := NewSchemaCommand()
	if err != nil {
		return nil, err
	}
	return cli.BuildCobraCommandFromGlazeCommand(schemaCmd,
		cli.WithCobraMiddlewaresFunc(getSchemaMiddlewares),
	)
}

func getSchemaMiddlewares(
	_ *cli.GlazedCommandSettings,
	cmd *cobra.Command,
	args []string,
) ([]cmd_middlewares.Middleware, error) {
	return []cmd_middlewares.Middleware{
		cmd_middlewares.ParseFromCobraCommand(cmd),
		cmd_middlewares.GatherArguments(args),
		cmd_middlewares.SetFromDefaults(),
	}, nil
}
