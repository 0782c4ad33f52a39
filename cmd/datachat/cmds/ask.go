package cmds

import (
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var AskCmd = &cobra.Command{
	Use:   "ask QUESTION",
	Short: "Answer a single question and exit",
	Args:  cobra.MinimumNArgs(1),
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

		res, err := s.RunTurn(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		log.Debug().Str("outcome", string(res.Outcome)).Msg("question answered")
		return nil
	},
}
