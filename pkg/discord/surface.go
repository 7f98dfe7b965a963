package discord

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/sipeed/picomon/pkg/domain/monitor"
	"github.com/sipeed/picomon/pkg/render"
)

// Discord JSON error codes that mean a message can no longer be edited.
const (
	codeUnknownChannel     = 10003
	codeUnknownMessage     = 10008
	codeMissingAccess      = 50001
	codeCannotEditOthers   = 50005
	codeMissingPermissions = 50013
)

// messageAPI is the part of *discordgo.Session the surface needs.
type messageAPI interface {
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Surface edits monitor messages in place.
type Surface struct {
	api messageAPI
}

// NewSurface wraps a session (or anything with the same message calls).
func NewSurface(api messageAPI) *Surface {
	return &Surface{api: api}
}

// Push resolves the message, then replaces its content with the card.
// Errors meaning the channel or message is gone match monitor.ErrHandleInvalid.
func (s *Surface) Push(ctx context.Context, channelID, messageID string, card render.Card) error {
	if _, err := s.api.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return classify(err)
	}

	edit := discordgo.NewMessageEdit(channelID, messageID).
		SetContent("").
		SetEmbeds([]*discordgo.MessageEmbed{EmbedFromCard(card)})
	if _, err := s.api.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return classify(err)
	}
	return nil
}

// classify maps REST failures that will never succeed on retry to
// monitor.ErrHandleInvalid. Everything else is returned unchanged and
// treated as transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return err
	}
	if rest.Message != nil {
		switch rest.Message.Code {
		case codeUnknownChannel, codeUnknownMessage, codeMissingAccess, codeCannotEditOthers, codeMissingPermissions:
			return monitor.InvalidHandle(err)
		}
	}
	if rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusNotFound, http.StatusForbidden:
			return monitor.InvalidHandle(err)
		}
	}
	return err
}

var _ monitor.Surface = (*Surface)(nil)
