package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Tnze/go-mc/bot"

	"github.com/sipeed/picomon/pkg/domain/game"
)

// maxListedPlayers bounds the roster built from a status reply. The online
// count is server-controlled.
const maxListedPlayers = 256

// MinecraftDriver queries Java Edition servers with the Server List Ping
// handshake.
type MinecraftDriver struct{}

// Query pings the server and decodes its status JSON.
func (MinecraftDriver) Query(ctx context.Context, g game.Game, host string) (*game.Snapshot, error) {
	ep := parseEndpoint(host, g.DefaultPort)
	addr := ep.withOffset(g.QueryPortOffset)

	resp, delay, err := bot.PingAndListContext(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("minecraft ping %s: %w", addr, err)
	}

	snap, err := parseMinecraftStatus(resp)
	if err != nil {
		return nil, err
	}
	snap.PingMs = game.Int(int(delay / time.Millisecond))
	snap.Connect = game.String(ep.String())
	return snap, nil
}

// minecraftStatus is the subset of the status response we read.
type minecraftStatus struct {
	Version struct {
		Name string `json:"name"`
	} `json:"version"`
	Players struct {
		Max    int `json:"max"`
		Online int `json:"online"`
		Sample []struct {
			Name string `json:"name"`
		} `json:"sample"`
	} `json:"players"`
	Description json.RawMessage `json:"description"`
}

// chatComponent is a (possibly nested) Minecraft text component.
type chatComponent struct {
	Text  string          `json:"text"`
	Extra []chatComponent `json:"extra"`
}

func (c chatComponent) plain() string {
	var b strings.Builder
	b.WriteString(c.Text)
	for _, e := range c.Extra {
		b.WriteString(e.plain())
	}
	return b.String()
}

func parseMinecraftStatus(data []byte) (*game.Snapshot, error) {
	var st minecraftStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode minecraft status: %w", err)
	}

	snap := &game.Snapshot{}
	if name := stripFormatting(descriptionText(st.Description)); name != "" {
		snap.Name = game.String(name)
	}
	if st.Players.Max > 0 {
		snap.MaxPlayers = game.Int(st.Players.Max)
	}

	// The sample is a subset of who is online; pad with unnamed entries so
	// the roster length matches the online count, up to maxListedPlayers.
	online := st.Players.Online
	if online > maxListedPlayers {
		online = maxListedPlayers
	}
	if online < len(st.Players.Sample) {
		online = len(st.Players.Sample)
	}
	players := make([]game.Player, 0, online)
	for _, p := range st.Players.Sample {
		players = append(players, game.Player{Name: p.Name})
	}
	for len(players) < online {
		players = append(players, game.Player{})
	}
	snap.Players = players

	return snap, nil
}

func descriptionText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var c chatComponent
	if err := json.Unmarshal(raw, &c); err == nil {
		return c.plain()
	}
	return ""
}

// stripFormatting drops legacy "§x" colour/style codes and trims whitespace.
func stripFormatting(s string) string {
	var b strings.Builder
	skip := false
	for _, r := range s {
		if skip {
			skip = false
			continue
		}
		if r == '§' {
			skip = true
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
