package render

import (
	"fmt"

	"github.com/sipeed/picomon/pkg/domain"
	"github.com/sipeed/picomon/pkg/domain/game"
)

// Attribute labels, in display order.
const (
	LabelServerName = "Server Name"
	LabelPassworded = "Passworded"
	LabelPing       = "Ping"
	LabelMap        = "Map"
	LabelConnect    = "Connect"
)

// Renderer builds cards, attaching registry branding and the render time.
type Renderer struct {
	games *game.Registry
	clock domain.Clock
}

// NewRenderer creates a renderer. A nil clock uses the system clock.
func NewRenderer(games *game.Registry, clock domain.Clock) *Renderer {
	return &Renderer{games: games, clock: clock}
}

// Online renders the full status card for a live server.
func (r *Renderer) Online(gameType, host string, snap *game.Snapshot) Card {
	if snap == nil {
		snap = &game.Snapshot{}
	}
	card := r.base(gameType, host, StatusOnline)

	if snap.Name != nil && *snap.Name != "" {
		card.add(LabelServerName, *snap.Name)
	}
	if snap.Password != nil {
		card.add(LabelPassworded, yesNo(*snap.Password))
	}
	if snap.PingMs != nil && *snap.PingMs > 0 {
		card.add(LabelPing, fmt.Sprintf("%dms", *snap.PingMs))
	}
	if snap.Map != nil && *snap.Map != "" {
		card.add(LabelMap, *snap.Map)
	}
	if snap.Connect != nil && *snap.Connect != "" {
		card.add(LabelConnect, "`"+*snap.Connect+"`")
	}
	if snap.Players != nil {
		card.Roster = roster(snap.Players, snap.MaxPlayers)
	}
	return card
}

// Offline renders the card for an unreachable server, or for a game type
// the probe no longer recognises. It carries no live fields.
func (r *Renderer) Offline(gameType, host string) Card {
	return r.base(gameType, host, StatusOffline)
}

func (r *Renderer) base(gameType, host string, status Status) Card {
	card := Card{
		Title:      host,
		Status:     status,
		RenderedAt: r.clock.Now(),
	}
	if r.games != nil {
		if g, ok := r.games.Lookup(gameType); ok {
			b := g.Branding()
			card.Branding = &b
		}
	}
	return card
}

func (c *Card) add(label, value string) {
	c.Attributes = append(c.Attributes, Attribute{Label: label, Value: value, Inline: true})
}

func roster(players []game.Player, maxPlayers *int) *Roster {
	n := len(players)
	if n > MaxRosterEntries {
		n = MaxRosterEntries
	}
	names := make([]string, 0, n)
	for _, p := range players[:n] {
		if p.Name == "" {
			names = append(names, UnnamedPlayer)
			continue
		}
		names = append(names, p.Name)
	}
	return &Roster{Names: names, Max: maxPlayers}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
