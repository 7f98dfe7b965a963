package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "picomon",
		Short: "picomon - live game-server status cards for Discord",
		Long: `picomon posts game-server status cards in Discord channels and keeps
them up to date until the message or channel goes away.

Configuration is read from the environment (DISCORD_TOKEN, MONITOR_LIMIT,
MONITOR_POLLING_INTERVAL, STORE_DRIVER, ...).`,
		SilenceUsage: true,
	}

	bot := BotCmd()
	rootCmd.AddCommand(bot)
	rootCmd.AddCommand(QueryCmd())
	rootCmd.AddCommand(ConsoleCmd())
	rootCmd.AddCommand(GamesCmd())

	// Running without a subcommand starts the bot.
	rootCmd.RunE = bot.RunE

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
