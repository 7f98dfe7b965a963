package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sipeed/picomon/pkg/config"
	"github.com/sipeed/picomon/pkg/domain/game"
	"github.com/sipeed/picomon/pkg/infrastructure/eventbus"
	"github.com/sipeed/picomon/pkg/infrastructure/persistence"
	"github.com/sipeed/picomon/pkg/logger"
	"github.com/sipeed/picomon/pkg/probe"
)

// runtime holds the pieces every subcommand shares.
type runtime struct {
	cfg    *config.Config
	games  *game.Registry
	prober *probe.Service
	bus    *eventbus.InProcessEventBus
}

func loadRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Configure(os.Stderr, cfg.Log.Format, cfg.Log.Level)

	games := game.Builtin()
	if cfg.GamesFile != "" {
		if err := games.LoadFile(cfg.GamesFile); err != nil {
			return nil, fmt.Errorf("load games file: %w", err)
		}
		logger.InfoCF("main", "Game registry extended", map[string]interface{}{
			"file":  cfg.GamesFile,
			"games": games.Keys(),
		})
	}

	return &runtime{
		cfg:    cfg,
		games:  games,
		prober: probe.NewService(games, cfg.Monitor.ProbeTimeout()),
		bus:    eventbus.New(),
	}, nil
}

func (rt *runtime) openStore() (persistence.MonitorStore, error) {
	store, err := persistence.Open(rt.cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open monitor store: %w", err)
	}
	logger.InfoCF("main", "Monitor store opened", map[string]interface{}{
		"driver": string(rt.cfg.Store.Driver),
	})
	return store, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
