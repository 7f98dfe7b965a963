// Package probe queries game servers and classifies the outcome.
//
// A probe never returns a Go error: the result kind tells the caller what
// happened. Online carries a snapshot, Offline covers every transient
// failure (timeouts, refused connections, bad responses) and InvalidGame
// means the game type cannot be queried at all.
package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sipeed/picomon/pkg/domain/game"
	"github.com/sipeed/picomon/pkg/logger"
)

// Kind classifies a probe outcome.
type Kind int

const (
	KindOffline Kind = iota
	KindOnline
	KindInvalidGame
)

func (k Kind) String() string {
	switch k {
	case KindOnline:
		return "online"
	case KindInvalidGame:
		return "invalid_game"
	default:
		return "offline"
	}
}

// Result is the outcome of one probe.
type Result struct {
	Kind     Kind
	Snapshot *game.Snapshot // set only for KindOnline
	Err      error          // underlying cause for Offline/InvalidGame, for logging
}

// Online reports whether the server answered.
func (r Result) Online() bool { return r.Kind == KindOnline }

// Offline builds an offline result.
func Offline(err error) Result { return Result{Kind: KindOffline, Err: err} }

// Prober is the GameServerProbe contract.
type Prober interface {
	Probe(ctx context.Context, gameType, host string) Result
}

// Driver speaks one query protocol.
type Driver interface {
	Query(ctx context.Context, g game.Game, host string) (*game.Snapshot, error)
}

// ErrUnknownGame is the cause attached to InvalidGame results.
var ErrUnknownGame = errors.New("unknown game type")

// Service dispatches probes to the driver registered for the game's protocol.
type Service struct {
	games   *game.Registry
	drivers map[game.Protocol]Driver
	timeout time.Duration
}

// NewService creates a probe service with the built-in drivers. Each probe
// is bounded by timeout in addition to the caller's context.
func NewService(games *game.Registry, timeout time.Duration) *Service {
	return &Service{
		games: games,
		drivers: map[game.Protocol]Driver{
			game.ProtocolMinecraft: MinecraftDriver{},
			game.ProtocolA2S:       A2SDriver{},
		},
		timeout: timeout,
	}
}

// WithDriver replaces the driver for a protocol. Used to plug in fakes.
func (s *Service) WithDriver(p game.Protocol, d Driver) *Service {
	s.drivers[p] = d
	return s
}

// Probe queries host as gameType.
func (s *Service) Probe(ctx context.Context, gameType, host string) Result {
	g, ok := s.games.Lookup(gameType)
	if !ok {
		return Result{Kind: KindInvalidGame, Err: fmt.Errorf("%w: %q", ErrUnknownGame, gameType)}
	}
	driver, ok := s.drivers[g.Protocol]
	if !ok {
		return Result{Kind: KindInvalidGame, Err: fmt.Errorf("%w: no driver for protocol %q", ErrUnknownGame, g.Protocol)}
	}
	if host == "" {
		return Offline(errors.New("empty host"))
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	snap, err := queryDriver(ctx, driver, g, host)
	if err != nil {
		logger.DebugCF("probe", "Server did not answer", map[string]interface{}{
			"game":  gameType,
			"host":  host,
			"error": err,
		})
		return Offline(err)
	}
	return Result{Kind: KindOnline, Snapshot: snap}
}

// queryDriver runs one driver query. A driver panic, typically on a malformed
// reply, is returned as an error so the server is reported offline.
func queryDriver(ctx context.Context, d Driver, g game.Game, host string) (snap *game.Snapshot, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorCF("probe", "Driver panicked", map[string]interface{}{
				"game":  g.Key,
				"host":  host,
				"panic": fmt.Sprint(rec),
			})
			snap, err = nil, fmt.Errorf("driver panic: %v", rec)
		}
	}()
	return d.Query(ctx, g, host)
}
