// Package game defines the game registry and the status snapshot returned by
// a successful server probe.
package game

import (
	"fmt"
	"strconv"
	"strings"
)

// Protocol names the query mechanism used to probe a game's servers.
type Protocol string

const (
	ProtocolMinecraft Protocol = "minecraft"
	ProtocolA2S       Protocol = "a2s"
)

// Valid returns true if a probe driver exists for the protocol.
func (p Protocol) Valid() bool {
	return p == ProtocolMinecraft || p == ProtocolA2S
}

// Game is one registry entry: branding plus how to query it.
type Game struct {
	Key             string   `yaml:"-" json:"key"`
	Name            string   `yaml:"name" json:"name"`
	ColorHex        string   `yaml:"color" json:"color"`
	IconURL         string   `yaml:"icon_url,omitempty" json:"icon_url,omitempty"`
	URL             string   `yaml:"url,omitempty" json:"url,omitempty"`
	Protocol        Protocol `yaml:"protocol" json:"protocol"`
	DefaultPort     int      `yaml:"default_port" json:"default_port"`
	QueryPortOffset int      `yaml:"query_port_offset,omitempty" json:"query_port_offset,omitempty"`

	color int
}

// Color returns the accent colour as a 0xRRGGBB integer.
func (g Game) Color() int { return g.color }

// Branding is the display subset of a Game attached to rendered cards.
type Branding struct {
	Name     string `json:"name"`
	IconURL  string `json:"icon_url,omitempty"`
	Color    int    `json:"color"`
	ColorHex string `json:"color_hex"`
	URL      string `json:"url,omitempty"`
}

// Branding extracts the display fields.
func (g Game) Branding() Branding {
	return Branding{
		Name:     g.Name,
		IconURL:  g.IconURL,
		Color:    g.color,
		ColorHex: g.ColorHex,
		URL:      g.URL,
	}
}

// ParseColor converts "#rrggbb" (or "rrggbb") into 0xRRGGBB.
func ParseColor(hex string) (int, error) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(s) != 6 {
		return 0, fmt.Errorf("color %q: want #rrggbb", hex)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("color %q: %w", hex, err)
	}
	return int(v), nil
}

// ---------------------------------------------------------------------------
// Snapshot: a point-in-time status of a live server
// ---------------------------------------------------------------------------

// Snapshot is the best-effort status of an online server. Every field is
// optional: nil pointers mean the protocol did not report the value. A nil
// Players slice means the roster is unknown; an empty non-nil slice means
// the server reported nobody online.
type Snapshot struct {
	Name       *string  `json:"name,omitempty"`
	Password   *bool    `json:"password,omitempty"`
	PingMs     *int     `json:"ping,omitempty"` // round-trip latency in milliseconds
	Map        *string  `json:"map,omitempty"`
	Connect    *string  `json:"connect,omitempty"`
	Players    []Player `json:"players,omitempty"`
	MaxPlayers *int     `json:"maxplayers,omitempty"`
}

// Player is one roster entry. Name is empty when the server hides it.
type Player struct {
	Name string `json:"name,omitempty"`
}

// String, Bool and Int build optional snapshot fields.
func String(s string) *string { return &s }
func Bool(b bool) *bool       { return &b }
func Int(n int) *int          { return &n }
