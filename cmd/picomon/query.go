package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sipeed/picomon/pkg/console"
	"github.com/sipeed/picomon/pkg/domain"
	"github.com/sipeed/picomon/pkg/domain/monitor"
	"github.com/sipeed/picomon/pkg/probe"
	"github.com/sipeed/picomon/pkg/render"
)

// QueryCmd probes one server from the command line.
func QueryCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "query <game> <host>",
		Short: "Query a game server once and print its status card",
		Example: `  picomon query minecraft play.example.com
  picomon query arma3 203.0.113.7:2302 --raw`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			gameType, host := args[0], args[1]
			if !rt.games.Known(gameType) {
				return fmt.Errorf("%w: %s", monitor.ErrInvalidGameType, gameType)
			}

			ctx, cancel := context.WithTimeout(context.Background(), rt.cfg.Monitor.TaskTimeout()+time.Second)
			defer cancel()
			res := rt.prober.Probe(ctx, gameType, host)

			if raw {
				if !res.Online() {
					return fmt.Errorf("server unreachable: %s", host)
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res.Snapshot)
			}

			renderer := render.NewRenderer(rt.games, domain.SystemClock)
			card := renderer.Offline(gameType, host)
			if res.Kind == probe.KindOnline {
				card = renderer.Online(gameType, host, res.Snapshot)
			}
			fmt.Println(console.FormatCard(card))
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the raw query result as JSON")
	return cmd
}

// GamesCmd lists the registered game types.
func GamesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "games",
		Short: "List the game types accepted by monitor and query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			for _, key := range rt.games.Keys() {
				g, _ := rt.games.Lookup(key)
				fmt.Printf("%-12s %-20s %s\n", key, g.Name, g.Protocol)
			}
			return nil
		},
	}
}
