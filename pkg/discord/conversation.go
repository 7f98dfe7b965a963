package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/sipeed/picomon/pkg/commands"
	"github.com/sipeed/picomon/pkg/render"
)

// chatAPI is the part of *discordgo.Session a conversation needs.
type chatAPI interface {
	messageAPI
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// conversation answers one inbound message in its channel.
type conversation struct {
	session chatAPI
	trigger *discordgo.Message
}

func (c *conversation) Reply(ctx context.Context, text string) (string, error) {
	m, err := c.session.ChannelMessageSendReply(c.trigger.ChannelID, text, c.trigger.Reference(), discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

func (c *conversation) Send(ctx context.Context, text string) (string, error) {
	m, err := c.session.ChannelMessageSend(c.trigger.ChannelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

// Edit always sends the embed list, so a nil card removes any card a
// previous edit left on the message.
func (c *conversation) Edit(ctx context.Context, messageID, text string, card *render.Card) error {
	embeds := []*discordgo.MessageEmbed{}
	if card != nil {
		embeds = append(embeds, EmbedFromCard(*card))
	}
	edit := discordgo.NewMessageEdit(c.trigger.ChannelID, messageID).
		SetContent(text).
		SetEmbeds(embeds)
	_, err := c.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return err
}

func (c *conversation) React(ctx context.Context, emoji string) error {
	return c.session.MessageReactionAdd(c.trigger.ChannelID, c.trigger.ID, emoji, discordgo.WithContext(ctx))
}

func (c *conversation) Delete(ctx context.Context, messageID string) error {
	return c.session.ChannelMessageDelete(c.trigger.ChannelID, messageID, discordgo.WithContext(ctx))
}

var _ commands.Conversation = (*conversation)(nil)
