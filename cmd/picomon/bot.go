package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sipeed/picomon/pkg/api"
	"github.com/sipeed/picomon/pkg/app"
	"github.com/sipeed/picomon/pkg/commands"
	"github.com/sipeed/picomon/pkg/discord"
	"github.com/sipeed/picomon/pkg/domain"
	"github.com/sipeed/picomon/pkg/logger"
)

// BotCmd runs the Discord bot with its reconciliation loop.
func BotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Connect to Discord and keep monitors up to date",
		Long: `Connects to the Discord gateway, answers prefix commands from guild
owners and refreshes every monitor on the configured schedule.

When HTTP_ADDR is set the ops API is served on that address as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			return runBot(rt)
		},
	}
}

func runBot(rt *runtime) error {
	ctx, stop := signalContext()
	defer stop()

	store, err := rt.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	session, err := discord.NewSession(rt.cfg.Discord.Token)
	if err != nil {
		return err
	}

	c, err := app.NewContainer(rt.cfg, rt.bus, store, discord.NewSurface(session), rt.games, rt.prober)
	if err != nil {
		return err
	}
	router := commands.NewRouter(rt.cfg.Discord.Prefix, c.Monitoring)
	bot := discord.NewBot(session, router, rt.bus, rt.cfg.Discord)

	if err := bot.Start(ctx); err != nil {
		return err
	}
	defer bot.Stop()

	var server *api.Server
	if rt.cfg.Gateway.Addr != "" {
		server = api.NewServer(rt.cfg.Gateway, c.Monitoring, c.Reconciler, rt.bus)
		if err := server.Start(ctx); err != nil {
			return err
		}
		defer server.Stop()
	}

	rt.bus.Publish(domain.NewEvent(domain.EventSystemStartup, "", nil))
	defer rt.bus.Publish(domain.NewEvent(domain.EventSystemShutdown, "", nil))

	// Cycles start once the gateway is ready so edits have a session to use.
	select {
	case <-bot.Ready():
	case <-ctx.Done():
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Reconciler.Run(gctx) })

	err = g.Wait()
	logger.InfoC("main", "Shutting down")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
