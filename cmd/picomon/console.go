package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sipeed/picomon/pkg/api"
	"github.com/sipeed/picomon/pkg/app"
	"github.com/sipeed/picomon/pkg/commands"
	"github.com/sipeed/picomon/pkg/console"
	"github.com/sipeed/picomon/pkg/infrastructure/persistence"
)

// ConsoleCmd runs the command surface and reconciler against the terminal.
func ConsoleCmd() *cobra.Command {
	var history string

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Try commands and monitors locally without Discord",
		Long: `Starts an interactive prompt that behaves like a Discord channel owned by
you. Monitor cards are printed whenever the reconciler refreshes them;
/delete <id> removes a message so its monitor is retired on the next cycle.
Monitors live in memory and end with the session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			// The console channel is not Discord: sharing the bot's store would
			// retire every Discord monitor on the first cycle.
			store, err := persistence.OpenSQLite(":memory:")
			if err != nil {
				return err
			}
			defer store.Close()

			con := console.New(os.Stdout)
			c, err := app.NewContainer(rt.cfg, rt.bus, store, con, rt.games, rt.prober)
			if err != nil {
				return err
			}

			if rt.cfg.Gateway.Addr != "" {
				server := api.NewServer(rt.cfg.Gateway, c.Monitoring, c.Reconciler, rt.bus)
				if err := server.Start(ctx); err != nil {
					return err
				}
				defer server.Stop()
			}

			go c.Reconciler.Run(ctx)

			router := commands.NewRouter(rt.cfg.Discord.Prefix, c.Monitoring)
			return con.Run(ctx, router, history)
		},
	}

	cmd.Flags().StringVar(&history, "history", filepath.Join(os.TempDir(), "picomon_history"), "Readline history file")
	return cmd
}
