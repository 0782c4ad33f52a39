package cmds

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/go-go-golems/datachat/pkg/llm"
	"github.com/go-go-golems/datachat/pkg/metrics"
	"github.com/go-go-golems/datachat/pkg/session"
	"github.com/go-go-golems/datachat/pkg/ui"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const chatHelp = `Commands:
  /retry    ask the model to correct its last unusable answer
  /history  show the conversation so far
  /schema   show the schema description
  /help     show this help
  /quit     leave the chat`

var ChatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions about your database interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		term := newTerminal()
		s, err := openSession(ctx, term)
		if err != nil {
			return err
		}
		defer func() {
			if err := s.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close session")
			}
		}()

		eg, ctx := errgroup.WithContext(ctx)
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		if addr := viper.GetString("metrics-addr"); addr != "" {
			eg.Go(func() error {
				return metrics.Serve(ctx, addr)
			})
		}
		eg.Go(func() error {
			defer cancel()
			return chatLoop(ctx, s, term, newAsker(ctx))
		})

		return eg.Wait()
	},
}

func chatLoop(ctx context.Context, s *session.Session, term *ui.Terminal, prompter ui.Asker) error {
	var last *session.TurnResult
	for ctx.Err() == nil {
		question, err := prompter.Ask()
		if errors.Is(err, ui.ErrQuit) {
			return nil
		}
		if err != nil {
			return err
		}

		switch strings.ToLower(question) {
		case "/quit", "/exit":
			return nil
		case "/history":
			term.History(s.History().Turns())
			continue
		case "/schema":
			showSchema(term, s)
			continue
		case "/help":
			fmt.Println(chatHelp)
			continue
		case "/retry":
			if last == nil || last.Rejected == nil {
				_ = term.Notice("Nothing to retry.")
				continue
			}
			res, err := s.RunTurn(ctx, last.Question, session.WithPreviousResponse(last.Rejected))
			if err != nil {
				log.Debug().Err(err).Msg("turn failed")
			}
			last = res
			continue
		}

		res, err := s.RunTurn(ctx, question)
		if err != nil {
			log.Debug().Err(err).Msg("turn failed")
		}
		last = res
		if res != nil && res.Rejected != nil {
			_ = term.Notice("Type /retry to ask the model to correct its answer.")
		}
	}
	return nil
}

func newAsker(ctx context.Context) ui.Asker {
	if isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd()) {
		return ui.NewInputPrompter(ctx, os.Stdin, os.Stdout)
	}
	return ui.NewPrompter(os.Stdin, os.Stdout)
}

func showSchema(term *ui.Terminal, s *session.Session) {
	tokens, err := llm.CountTokens(viper.GetString("ai-engine"), s.SchemaText())
	if err != nil {
		log.Debug().Err(err).Msg("could not count schema tokens")
	}
	term.Schema(s.Schema(), tokens)
}
