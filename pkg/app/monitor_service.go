package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/sipeed/picomon/pkg/domain"
	"github.com/sipeed/picomon/pkg/domain/game"
	"github.com/sipeed/picomon/pkg/domain/monitor"
	"github.com/sipeed/picomon/pkg/logger"
	"github.com/sipeed/picomon/pkg/probe"
	"github.com/sipeed/picomon/pkg/render"
)

// ---------------------------------------------------------------------------
// Monitor application service
// ---------------------------------------------------------------------------

// CreateRequest describes a monitor to admit. The message at
// (ChannelID, MessageID) must already exist; admission edits it into the
// first status card.
type CreateRequest struct {
	ScopeID   string
	ChannelID string
	MessageID string
	GameType  string
	Host      string
}

// MonitorService orchestrates monitor use cases: admission, listing,
// removal and one-off queries.
type MonitorService struct {
	store    monitor.Repository
	games    *game.Registry
	prober   probe.Prober
	renderer *render.Renderer
	surface  monitor.Surface
	eventBus domain.EventBus
	limit    int

	mu         sync.Mutex
	scopeLocks map[string]*sync.Mutex
}

// NewMonitorService creates the service. limit is the per-scope quota and
// is fixed for the lifetime of the service.
func NewMonitorService(
	store monitor.Repository,
	games *game.Registry,
	prober probe.Prober,
	renderer *render.Renderer,
	surface monitor.Surface,
	eventBus domain.EventBus,
	limit int,
) *MonitorService {
	if eventBus == nil {
		eventBus = domain.NopEventBus{}
	}
	return &MonitorService{
		store:      store,
		games:      games,
		prober:     prober,
		renderer:   renderer,
		surface:    surface,
		eventBus:   eventBus,
		limit:      limit,
		scopeLocks: make(map[string]*sync.Mutex),
	}
}

// Limit returns the per-scope quota.
func (s *MonitorService) Limit() int { return s.limit }

// lockScope serializes admissions within one scope so two concurrent
// creations cannot both pass the quota check.
func (s *MonitorService) lockScope(scopeID string) func() {
	s.mu.Lock()
	l, ok := s.scopeLocks[scopeID]
	if !ok {
		l = &sync.Mutex{}
		s.scopeLocks[scopeID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// TryCreate admits a new monitor: quota, game type, initial probe, initial
// push, then persistence. If any step fails nothing is stored. The returned
// card is what was pushed.
func (s *MonitorService) TryCreate(ctx context.Context, req CreateRequest) (*monitor.Task, render.Card, error) {
	unlock := s.lockScope(req.ScopeID)
	defer unlock()

	count, err := s.store.CountByScope(ctx, req.ScopeID)
	if err != nil {
		return nil, render.Card{}, fmt.Errorf("count monitors: %w", err)
	}
	if err := monitor.CanAdmit(req.ScopeID, count, s.limit); err != nil {
		return nil, render.Card{}, err
	}

	if !s.games.Known(req.GameType) {
		return nil, render.Card{}, fmt.Errorf("%w: %s", monitor.ErrInvalidGameType, req.GameType)
	}

	res := probeSafely(ctx, s.prober, req.GameType, req.Host)
	if res.Kind == probe.KindInvalidGame {
		return nil, render.Card{}, fmt.Errorf("%w: %s", monitor.ErrInvalidGameType, req.GameType)
	}
	card := s.cardFor(req.GameType, req.Host, res)

	if err := s.surface.Push(ctx, req.ChannelID, req.MessageID, card); err != nil {
		return nil, render.Card{}, fmt.Errorf("initial update: %w", err)
	}

	task := monitor.NewTask(req.ScopeID, req.ChannelID, req.MessageID, req.GameType, req.Host)
	if _, err := s.store.Insert(ctx, task); err != nil {
		return nil, render.Card{}, fmt.Errorf("save monitor: %w", err)
	}

	logger.InfoCF("monitor", "Monitor created", map[string]interface{}{
		"monitor": task.ID.String(),
		"scope":   task.ScopeID,
		"game":    task.GameType,
		"host":    task.Host,
		"status":  string(card.Status),
	})
	s.eventBus.Publish(domain.NewEvent(domain.EventMonitorCreated, task.ID, *task))
	return task, card, nil
}

// ListScope returns the monitors owned by one scope.
func (s *MonitorService) ListScope(ctx context.Context, scopeID string) ([]*monitor.Task, error) {
	return s.store.ListByScope(ctx, scopeID)
}

// ListAll returns every monitor.
func (s *MonitorService) ListAll(ctx context.Context) ([]*monitor.Task, error) {
	return s.store.ListAll(ctx)
}

// Remove deletes the scope's monitor bound to messageID. A monitor owned by
// another scope is reported as not found.
func (s *MonitorService) Remove(ctx context.Context, scopeID, messageID string) (*monitor.Task, error) {
	tasks, err := s.store.ListByScope(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("list monitors: %w", err)
	}
	for _, t := range tasks {
		if t.MessageID != messageID {
			continue
		}
		if err := s.store.DeleteByID(ctx, t.ID); err != nil {
			return nil, fmt.Errorf("delete monitor: %w", err)
		}
		logger.InfoCF("monitor", "Monitor removed", map[string]interface{}{
			"monitor": t.ID.String(),
			"scope":   scopeID,
		})
		s.eventBus.Publish(domain.NewEvent(domain.EventMonitorRemoved, t.ID, *t))
		return t, nil
	}
	return nil, monitor.ErrNotFound
}

// Query probes a server once and renders the result. Nothing is stored.
func (s *MonitorService) Query(ctx context.Context, gameType, host string) (probe.Result, render.Card, error) {
	if !s.games.Known(gameType) {
		return probe.Result{}, render.Card{}, fmt.Errorf("%w: %s", monitor.ErrInvalidGameType, gameType)
	}
	res := probeSafely(ctx, s.prober, gameType, host)
	if res.Kind == probe.KindInvalidGame {
		return res, render.Card{}, fmt.Errorf("%w: %s", monitor.ErrInvalidGameType, gameType)
	}
	return res, s.cardFor(gameType, host, res), nil
}

// probeSafely turns a prober panic into an offline result.
func probeSafely(ctx context.Context, prober probe.Prober, gameType, host string) (res probe.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorCF("monitor", "Probe panicked", map[string]interface{}{
				"game":  gameType,
				"host":  host,
				"panic": fmt.Sprint(rec),
			})
			res = probe.Offline(fmt.Errorf("probe panicked: %v", rec))
		}
	}()
	return prober.Probe(ctx, gameType, host)
}

func (s *MonitorService) cardFor(gameType, host string, res probe.Result) render.Card {
	if res.Online() {
		return s.renderer.Online(gameType, host, res.Snapshot)
	}
	return s.renderer.Offline(gameType, host)
}
