package discord

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sipeed/picomon/pkg/render"
)

const (
	descriptionOnline  = "Server is online! ✅"
	descriptionOffline = "Server is offline! ⛔"

	wakeupColor = 0x33aaff

	// Discord rejects embed field values longer than this.
	maxFieldValue = 1024
)

// EmbedFromCard converts a rendered card into a Discord embed.
func EmbedFromCard(card render.Card) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       card.Title,
		Description: descriptionOffline,
	}
	if card.Status == render.StatusOnline {
		embed.Description = descriptionOnline
	}

	for _, a := range card.Attributes {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   a.Label,
			Value:  clip(a.Value),
			Inline: a.Inline,
		})
	}
	if card.Roster != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  card.Roster.Header(),
			Value: clip(card.Roster.Body()),
		})
	}

	if b := card.Branding; b != nil {
		embed.Author = &discordgo.MessageEmbedAuthor{
			Name:    b.Name,
			IconURL: b.IconURL,
			URL:     b.URL,
		}
		embed.Color = b.Color
	}
	if !card.RenderedAt.IsZero() {
		embed.Timestamp = card.RenderedAt.Format(time.RFC3339)
	}
	return embed
}

// WakeupEmbed is the startup report sent to the application owner.
func WakeupEmbed(initTime time.Duration, guilds int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "🌅 Wakeup Report",
		Color: wakeupColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Initialisation time", Value: fmt.Sprintf("%dms", initTime.Milliseconds())},
			{Name: "Guilds", Value: fmt.Sprintf("%d", guilds)},
		},
	}
}

func clip(s string) string {
	runes := []rune(s)
	if len(runes) <= maxFieldValue {
		return s
	}
	return string(runes[:maxFieldValue-1]) + "…"
}
