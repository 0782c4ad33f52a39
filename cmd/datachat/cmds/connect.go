package cmds

import (
	"github.com/go-go-golems/datachat/pkg/db"
	"github.com/go-go-golems/datachat/pkg/secrets"
	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var ConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Check a database connection and store its DSN (and an API key) in the OS keychain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, _ := cmd.Flags().GetString("dsn")
		apiKey, _ := cmd.Flags().GetString("api-key")
		driver, _ := cmd.Flags().GetString("driver")
		if driver == "" {
			driver = viper.GetString("db-driver")
		}
		if dsn == "" && apiKey == "" {
			return errors.New("nothing to store: pass --dsn and/or --api-key")
		}

		store, err := secrets.Open()
		if err != nil {
			return err
		}

		if dsn != "" {
			cfg := db.DefaultConfig()
			cfg.Driver = driver
			cfg.DSN = dsn
			conn, err := db.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			_ = conn.Close()
			if err := store.Set(secrets.KeyDBDSN, dsn); err != nil {
				return err
			}
			pterm.Success.Printfln("Connected with %s and stored the DSN in the keychain.", driver)
		}
		if apiKey != "" {
			if err := store.Set(secrets.KeyAPIKey, apiKey); err != nil {
				return err
			}
			pterm.Success.Println("Stored the API key in the keychain.")
		}
		return nil
	},
}

func init() {
	ConnectCmd.Flags().String("driver", "", "Database driver (default: --db-driver)")
	ConnectCmd.Flags().String("dsn", "", "Database DSN to store")
	ConnectCmd.Flags().String("api-key", "", "API key to store")
}
