// Package discord connects picomon to Discord: the gateway session, the
// command handler, monitor message editing and the bot's presence.
package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sipeed/picomon/pkg/commands"
	"github.com/sipeed/picomon/pkg/config"
	"github.com/sipeed/picomon/pkg/domain"
	"github.com/sipeed/picomon/pkg/logger"
)

const commandTimeout = time.Minute

// NewSession creates an unopened gateway session with the intents the bot
// needs to read guild commands.
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("discord token is empty")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentGuilds | discordgo.IntentGuildMessages | discordgo.IntentMessageContent
	return s, nil
}

// Bot owns the gateway connection and routes messages to the command router.
type Bot struct {
	session  *discordgo.Session
	router   *commands.Router
	eventBus domain.EventBus
	cfg      config.DiscordConfig

	startedAt time.Time
	ready     chan struct{}
	readyOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc
}

// NewBot wires a bot. The session must not be open yet.
func NewBot(session *discordgo.Session, router *commands.Router, eventBus domain.EventBus, cfg config.DiscordConfig) *Bot {
	if eventBus == nil {
		eventBus = domain.NopEventBus{}
	}
	return &Bot{
		session:   session,
		router:    router,
		eventBus:  eventBus,
		cfg:       cfg,
		startedAt: time.Now(),
		ready:     make(chan struct{}),
	}
}

// Ready is closed once the gateway has delivered its first Ready event.
func (b *Bot) Ready() <-chan struct{} { return b.ready }

// Start registers the handlers and opens the gateway.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(func(s *discordgo.Session, _ *discordgo.GuildCreate) { b.updatePresence() })
	b.session.AddHandler(func(s *discordgo.Session, _ *discordgo.GuildDelete) { b.updatePresence() })
	b.eventBus.Subscribe(domain.EventCycleCompleted, func(domain.Event) { b.updatePresence() })

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	if b.cancel != nil {
		b.cancel()
	}
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	first := false
	b.readyOnce.Do(func() {
		first = true
		close(b.ready)
	})

	logger.InfoCF("discord", "Logged in", map[string]interface{}{
		"user":   r.User.String(),
		"guilds": len(r.Guilds),
	})
	b.updatePresence()

	if first && !b.cfg.SuppressWakeup {
		go b.sendWakeupReport(time.Since(b.startedAt), len(r.Guilds))
	}
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	if _, _, ok := b.router.Parse(m.Content); !ok {
		return
	}

	msg := commands.Message{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		AuthorID:  m.Author.ID,
		AuthorBot: m.Author.Bot,
		Content:   m.Content,
	}
	if m.GuildID != "" {
		msg.GuildOwnerID = b.guildOwner(m.GuildID)
	}

	ctx, cancel := context.WithTimeout(b.context(), commandTimeout)
	defer cancel()
	b.router.Handle(ctx, msg, &conversation{session: s, trigger: m.Message})
}

func (b *Bot) context() context.Context {
	if b.ctx == nil {
		return context.Background()
	}
	return b.ctx
}

// guildOwner looks the guild up in the state cache before asking the API.
func (b *Bot) guildOwner(guildID string) string {
	if g, err := b.session.State.Guild(guildID); err == nil && g.OwnerID != "" {
		return g.OwnerID
	}
	g, err := b.session.Guild(guildID)
	if err != nil {
		logger.WarnCF("discord", "Guild lookup failed", map[string]interface{}{
			"guild": guildID,
			"error": err,
		})
		return ""
	}
	return g.OwnerID
}

func (b *Bot) guildCount() int {
	if b.session.State == nil {
		return 0
	}
	b.session.State.RLock()
	defer b.session.State.RUnlock()
	return len(b.session.State.Guilds)
}

func (b *Bot) updatePresence() {
	err := b.session.UpdateStatusComplex(discordgo.UpdateStatusData{
		Status: string(discordgo.StatusOnline),
		Activities: []*discordgo.Activity{{
			Name: PresenceText(b.guildCount()),
			Type: discordgo.ActivityTypeWatching,
		}},
	})
	if err != nil {
		logger.DebugCF("discord", "Presence update failed", map[string]interface{}{"error": err})
	}
}

// PresenceText is the "Watching ..." activity line.
func PresenceText(guilds int) string {
	return fmt.Sprintf("over %d servers.", guilds)
}

func (b *Bot) sendWakeupReport(initTime time.Duration, guilds int) {
	ctx, cancel := context.WithTimeout(b.context(), 30*time.Second)
	defer cancel()

	app, err := b.session.Application("@me", discordgo.WithContext(ctx))
	if err != nil || app.Owner == nil {
		logger.WarnCF("discord", "Wakeup report skipped: application owner unknown", map[string]interface{}{"error": err})
		return
	}
	dm, err := b.session.UserChannelCreate(app.Owner.ID, discordgo.WithContext(ctx))
	if err != nil {
		logger.WarnCF("discord", "Wakeup report skipped: cannot open DM", map[string]interface{}{"error": err})
		return
	}
	if _, err := b.session.ChannelMessageSendEmbed(dm.ID, WakeupEmbed(initTime, guilds), discordgo.WithContext(ctx)); err != nil {
		logger.WarnCF("discord", "Wakeup report failed", map[string]interface{}{"error": err})
		return
	}
	logger.InfoCF("discord", "Wakeup report sent", map[string]interface{}{"owner": app.Owner.ID})
}
