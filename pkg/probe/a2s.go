package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rumblefrog/go-a2s"

	"github.com/sipeed/picomon/pkg/domain/game"
)

// defaultA2STimeout applies when the context carries no deadline.
const defaultA2STimeout = 5 * time.Second

// A2SDriver queries servers speaking the Steam/Source query protocol.
type A2SDriver struct{}

// a2sReply is what one A2S exchange produced.
type a2sReply struct {
	info    *a2s.ServerInfo
	players *a2s.PlayerInfo
	rtt     time.Duration
	err     error
}

// Query sends A2S_INFO and, best effort, A2S_PLAYER. The library is
// blocking, so the exchange runs in its own goroutine and is abandoned when
// ctx ends; the socket timeout guarantees the goroutine finishes.
func (A2SDriver) Query(ctx context.Context, g game.Game, host string) (*game.Snapshot, error) {
	ep := parseEndpoint(host, g.DefaultPort)
	addr := ep.withOffset(g.QueryPortOffset)

	timeout := defaultA2STimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}

	done := make(chan a2sReply, 1)
	go func() { done <- queryA2S(addr, timeout) }()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case reply := <-done:
		if reply.err != nil {
			return nil, reply.err
		}
		snap := snapshotFromA2S(reply.info, reply.players)
		snap.PingMs = game.Int(int(reply.rtt / time.Millisecond))
		snap.Connect = game.String(ep.String())
		return snap, nil
	}
}

func queryA2S(addr string, timeout time.Duration) a2sReply {
	client, err := a2s.NewClient(addr, a2s.TimeoutOption(timeout))
	if err != nil {
		return a2sReply{err: fmt.Errorf("a2s dial %s: %w", addr, err)}
	}
	defer client.Close()

	start := time.Now()
	info, err := client.QueryInfo()
	if err != nil {
		return a2sReply{err: fmt.Errorf("a2s info %s: %w", addr, err)}
	}
	if info == nil {
		return a2sReply{err: errors.New("a2s info: empty reply")}
	}
	rtt := time.Since(start)

	// Many servers disable the player query; the info reply alone is enough.
	players, err := client.QueryPlayer()
	if err != nil {
		players = nil
	}
	return a2sReply{info: info, players: players, rtt: rtt}
}

func snapshotFromA2S(info *a2s.ServerInfo, players *a2s.PlayerInfo) *game.Snapshot {
	snap := &game.Snapshot{
		Password: game.Bool(info.Visibility),
	}
	if info.Name != "" {
		snap.Name = game.String(info.Name)
	}
	if info.Map != "" {
		snap.Map = game.String(info.Map)
	}
	if info.MaxPlayers > 0 {
		snap.MaxPlayers = game.Int(int(info.MaxPlayers))
	}

	roster := make([]game.Player, 0, int(info.Players))
	if players != nil {
		for _, p := range players.Players {
			if p == nil {
				continue
			}
			roster = append(roster, game.Player{Name: p.Name})
		}
	} else {
		for i := 0; i < int(info.Players); i++ {
			roster = append(roster, game.Player{})
		}
	}
	snap.Players = roster
	return snap
}
