package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sipeed/picomon/pkg/domain"
	"github.com/sipeed/picomon/pkg/domain/monitor"
	"github.com/sipeed/picomon/pkg/logger"
	"github.com/sipeed/picomon/pkg/probe"
	"github.com/sipeed/picomon/pkg/render"
	"github.com/sipeed/picomon/pkg/schedule"
)

// AppError is a typed error for application-level failures.
type AppError string

func (e AppError) Error() string { return string(e) }

const (
	ErrCycleInFlight AppError = "reconciliation cycle already in flight"
)

// ---------------------------------------------------------------------------
// Reconciler: keeps every monitored message in step with its server
// ---------------------------------------------------------------------------

// ReconcilerOptions tunes a Reconciler. Zero values get defaults.
type ReconcilerOptions struct {
	Concurrency int
	TaskTimeout time.Duration
	Schedule    schedule.Schedule
	Clock       domain.Clock
}

// CycleReport summarizes one reconciliation cycle.
type CycleReport struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Total     int           `json:"total"`
	Online    int           `json:"online"`
	Offline   int           `json:"offline"`
	Updated   int           `json:"updated"`
	Retired   int           `json:"retired"`
	Failed    int           `json:"failed"`
}

// outcome is the tagged result of reconciling a single task.
type outcome struct {
	online  bool
	offline bool
	updated bool
	retired bool
	failed  bool
}

// Reconciler runs the periodic update loop. At most one cycle runs at a time.
type Reconciler struct {
	store    monitor.Repository
	prober   probe.Prober
	renderer *render.Renderer
	surface  monitor.Surface
	eventBus domain.EventBus

	concurrency int
	taskTimeout time.Duration
	schedule    schedule.Schedule
	clock       domain.Clock

	running atomic.Bool
	last    atomic.Pointer[CycleReport]
}

// NewReconciler wires a reconciler. A nil event bus discards events.
func NewReconciler(
	store monitor.Repository,
	prober probe.Prober,
	renderer *render.Renderer,
	surface monitor.Surface,
	eventBus domain.EventBus,
	opts ReconcilerOptions,
) *Reconciler {
	if eventBus == nil {
		eventBus = domain.NopEventBus{}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 20 * time.Second
	}
	if opts.Schedule == nil {
		opts.Schedule = schedule.Every(time.Minute)
	}
	return &Reconciler{
		store:       store,
		prober:      prober,
		renderer:    renderer,
		surface:     surface,
		eventBus:    eventBus,
		concurrency: opts.Concurrency,
		taskTimeout: opts.TaskTimeout,
		schedule:    opts.Schedule,
		clock:       opts.Clock,
	}
}

// Run executes a cycle immediately and then one per schedule tick until ctx
// ends. Cycles run on this goroutine, so a tick that comes due while a cycle
// is still running is skipped rather than queued.
func (r *Reconciler) Run(ctx context.Context) error {
	logger.InfoCF("reconciler", "Reconciler started", map[string]interface{}{
		"schedule":    r.schedule.String(),
		"concurrency": r.concurrency,
	})

	for {
		if _, err := r.RunCycle(ctx); err != nil && !errors.Is(err, ErrCycleInFlight) && ctx.Err() == nil {
			logger.ErrorCF("reconciler", "Cycle failed", map[string]interface{}{"error": err})
		}

		timer := time.NewTimer(schedule.Delay(r.schedule, r.clock.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.InfoC("reconciler", "Reconciler stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Running reports whether a cycle is in flight.
func (r *Reconciler) Running() bool { return r.running.Load() }

// LastReport returns the report of the most recent completed cycle, or nil.
func (r *Reconciler) LastReport() *CycleReport { return r.last.Load() }

// RunCycle performs one full reconciliation pass over every stored task.
// It returns ErrCycleInFlight if another cycle has not finished yet, and
// the store error if the task list cannot be read.
func (r *Reconciler) RunCycle(ctx context.Context) (*CycleReport, error) {
	if !r.running.CompareAndSwap(false, true) {
		r.eventBus.Publish(domain.NewEvent(domain.EventCycleSkipped, "", nil))
		logger.WarnC("reconciler", "Previous cycle still running, skipping")
		return nil, ErrCycleInFlight
	}
	defer r.running.Store(false)

	report := &CycleReport{StartedAt: r.clock.Now()}
	r.eventBus.Publish(domain.NewEvent(domain.EventCycleStarted, "", nil))

	tasks, err := r.store.ListAll(ctx)
	if err != nil {
		r.eventBus.Publish(domain.NewEvent(domain.EventCycleFailed, "", map[string]string{"error": err.Error()}))
		return nil, fmt.Errorf("list monitors: %w", err)
	}
	report.Total = len(tasks)

	outcomes := make([]outcome, len(tasks))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, task := range tasks {
		g.Go(func() error {
			outcomes[i] = r.reconcileTask(ctx, task)
			return nil
		})
	}
	g.Wait()

	for _, o := range outcomes {
		if o.online {
			report.Online++
		}
		if o.offline {
			report.Offline++
		}
		if o.updated {
			report.Updated++
		}
		if o.retired {
			report.Retired++
		}
		if o.failed {
			report.Failed++
		}
	}
	report.Duration = r.clock.Now().Sub(report.StartedAt)
	r.last.Store(report)

	r.eventBus.Publish(domain.NewEvent(domain.EventCycleCompleted, "", *report))
	logger.InfoCF("reconciler", "Cycle completed", map[string]interface{}{
		"total":       report.Total,
		"updated":     report.Updated,
		"offline":     report.Offline,
		"retired":     report.Retired,
		"failed":      report.Failed,
		"duration_ms": report.Duration.Milliseconds(),
	})
	return report, nil
}

// reconcileTask probes, renders and pushes one task. Any failure stays
// inside this task.
func (r *Reconciler) reconcileTask(ctx context.Context, task *monitor.Task) (out outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorCF("reconciler", "Task panicked", map[string]interface{}{
				"monitor": task.ID.String(),
				"panic":   fmt.Sprint(rec),
			})
			out = outcome{failed: true}
		}
	}()

	res := r.probeWithin(ctx, task)
	var card render.Card
	switch res.Kind {
	case probe.KindOnline:
		out.online = true
		card = r.renderer.Online(task.GameType, task.Host, res.Snapshot)
	case probe.KindInvalidGame:
		// The registry no longer knows this game; keep the task and show it offline.
		logger.WarnCF("reconciler", "Monitor has an unknown game type", map[string]interface{}{
			"monitor": task.ID.String(),
			"game":    task.GameType,
		})
		out.offline = true
		card = r.renderer.Offline(task.GameType, task.Host)
	default:
		out.offline = true
		card = r.renderer.Offline(task.GameType, task.Host)
	}

	pushCtx, cancel := context.WithTimeout(ctx, r.taskTimeout)
	defer cancel()
	err := r.surface.Push(pushCtx, task.ChannelID, task.MessageID, card)

	switch {
	case err == nil:
		out.updated = true
		r.eventBus.Publish(domain.NewEvent(domain.EventMonitorUpdated, task.ID, map[string]interface{}{
			"status": string(card.Status),
			"host":   task.Host,
		}))

	case monitor.IsHandleInvalid(err):
		h := task.Handles()
		if derr := r.store.DeleteByHandles(ctx, h.ChannelID, h.MessageID); derr != nil {
			// Retried on the next cycle.
			logger.ErrorCF("reconciler", "Failed to retire monitor", map[string]interface{}{
				"monitor": task.ID.String(),
				"error":   derr,
			})
			out.failed = true
			return out
		}
		out.retired = true
		logger.InfoCF("reconciler", "Monitor retired", map[string]interface{}{
			"monitor": task.ID.String(),
			"channel": task.ChannelID,
			"message": task.MessageID,
			"reason":  err.Error(),
		})
		r.eventBus.Publish(domain.NewEvent(domain.EventMonitorRetired, task.ID, h))

	default:
		out.failed = true
		logger.WarnCF("reconciler", "Monitor update failed", map[string]interface{}{
			"monitor": task.ID.String(),
			"error":   err,
		})
		r.eventBus.Publish(domain.NewEvent(domain.EventMonitorUpdateFailed, task.ID, map[string]string{
			"error": err.Error(),
		}))
	}
	return out
}

// probeWithin bounds the probe by the task timeout even if the prober
// ignores its context. A probe that runs out of time counts as offline.
func (r *Reconciler) probeWithin(ctx context.Context, task *monitor.Task) probe.Result {
	pctx, cancel := context.WithTimeout(ctx, r.taskTimeout)
	defer cancel()

	done := make(chan probe.Result, 1)
	go func() {
		done <- probeSafely(pctx, r.prober, task.GameType, task.Host)
	}()

	select {
	case res := <-done:
		return res
	case <-pctx.Done():
		return probe.Offline(pctx.Err())
	}
}
