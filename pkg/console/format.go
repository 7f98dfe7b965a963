package console

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/sipeed/picomon/pkg/render"
)

// FormatCard renders a card as terminal text.
func FormatCard(card render.Card) string {
	var b strings.Builder

	status := color.New(color.FgRed).Sprint("● offline")
	if card.Status == render.StatusOnline {
		status = color.New(color.FgGreen).Sprint("● online")
	}
	title := color.New(color.Bold).Sprint(card.Title)
	if card.Branding != nil {
		title += " " + brandColor(card.Branding.Color).Sprintf("[%s]", card.Branding.Name)
	}
	fmt.Fprintf(&b, "%s %s", status, title)

	for _, a := range card.Attributes {
		fmt.Fprintf(&b, "\n  %s %s", color.New(color.FgHiBlack).Sprint(a.Label+":"), a.Value)
	}
	if card.Roster != nil {
		fmt.Fprintf(&b, "\n  %s %s", color.New(color.FgHiBlack).Sprint(card.Roster.Header()+":"), card.Roster.Body())
	}
	if !card.RenderedAt.IsZero() {
		fmt.Fprintf(&b, "\n  %s", color.New(color.FgHiBlack).Sprint(card.RenderedAt.Local().Format("15:04:05")))
	}
	return b.String()
}

// brandColor approximates a 24-bit accent colour with a 256-colour escape.
func brandColor(rgb int) *color.Color {
	r, g, bl := (rgb>>16)&0xff, (rgb>>8)&0xff, rgb&0xff
	code := 16 + 36*(r*5/255) + 6*(g*5/255) + bl*5/255
	return color.New(color.Attribute(38), color.Attribute(5), color.Attribute(code))
}
