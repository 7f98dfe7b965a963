// Package app provides application services that orchestrate domain operations.
// These services sit between the chat/API layer and the domain layer.
package app

import (
	"fmt"

	"github.com/sipeed/picomon/pkg/config"
	"github.com/sipeed/picomon/pkg/domain"
	"github.com/sipeed/picomon/pkg/domain/game"
	"github.com/sipeed/picomon/pkg/domain/monitor"
	"github.com/sipeed/picomon/pkg/probe"
	"github.com/sipeed/picomon/pkg/render"
	"github.com/sipeed/picomon/pkg/schedule"
)

// ---------------------------------------------------------------------------
// Application container: dependency injection root
// ---------------------------------------------------------------------------

// Container holds all application services and their dependencies.
type Container struct {
	// Domain event bus
	EventBus domain.EventBus

	// Ports
	Monitors monitor.Repository
	Surface  monitor.Surface

	// Domain services
	Games    *game.Registry
	Prober   probe.Prober
	Renderer *render.Renderer

	// Use cases
	Monitoring *MonitorService
	Reconciler *Reconciler
}

// NewContainer creates a fully wired application container.
func NewContainer(
	cfg *config.Config,
	eventBus domain.EventBus,
	monitors monitor.Repository,
	surface monitor.Surface,
	games *game.Registry,
	prober probe.Prober,
) (*Container, error) {
	if eventBus == nil {
		eventBus = domain.NopEventBus{}
	}

	sched, err := schedule.FromConfig(cfg.Monitor.Schedule, cfg.Monitor.Interval())
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}

	renderer := render.NewRenderer(games, domain.SystemClock)
	return &Container{
		EventBus:   eventBus,
		Monitors:   monitors,
		Surface:    surface,
		Games:      games,
		Prober:     prober,
		Renderer:   renderer,
		Monitoring: NewMonitorService(monitors, games, prober, renderer, surface, eventBus, cfg.Monitor.Limit),
		Reconciler: NewReconciler(monitors, prober, renderer, surface, eventBus, ReconcilerOptions{
			Concurrency: cfg.Monitor.Concurrency,
			TaskTimeout: cfg.Monitor.TaskTimeout(),
			Schedule:    sched,
		}),
	}, nil
}
