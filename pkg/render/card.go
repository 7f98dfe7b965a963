// Package render turns a probe outcome into a Card: the platform-neutral
// status document that chat adapters translate into their own message format.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/sipeed/picomon/pkg/domain/game"
)

// Status is the headline state shown on a card.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

const (
	// MaxRosterEntries caps the player names shown on one card.
	MaxRosterEntries = 25
	// UnnamedPlayer replaces players whose name the server hides.
	UnnamedPlayer = "ConnectingPlayer"
)

// Card is the rendered status of one server.
type Card struct {
	Title      string         `json:"title"`
	Status     Status         `json:"status"`
	Attributes []Attribute    `json:"attributes,omitempty"`
	Roster     *Roster        `json:"roster,omitempty"`
	Branding   *game.Branding `json:"branding,omitempty"`
	RenderedAt time.Time      `json:"rendered_at"`
}

// Attribute is one labelled value, e.g. "Map: de_dust2".
type Attribute struct {
	Label  string `json:"label"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Roster is the displayed player list.
type Roster struct {
	Names []string `json:"names"`
	Max   *int     `json:"max,omitempty"`
}

// Header reads "Players (shown/max)", with "?" for an unknown max.
func (r Roster) Header() string {
	limit := "?"
	if r.Max != nil && *r.Max > 0 {
		limit = fmt.Sprintf("%d", *r.Max)
	}
	return fmt.Sprintf("Players (%d/%s)", len(r.Names), limit)
}

// Body joins the names, or says nobody is online.
func (r Roster) Body() string {
	if len(r.Names) == 0 {
		return "No players"
	}
	return strings.Join(r.Names, ", ")
}

// Attribute returns the value for label and whether it is present.
func (c Card) Attribute(label string) (string, bool) {
	for _, a := range c.Attributes {
		if a.Label == label {
			return a.Value, true
		}
	}
	return "", false
}

// Headline is the human sentence for the status line.
func (c Card) Headline() string {
	if c.Status == StatusOnline {
		return "Server is online! ✅"
	}
	return "Server is offline! ⛔"
}
