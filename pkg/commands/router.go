// Package commands implements the prefix-command surface shared by the
// Discord bot and the local console.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sipeed/picomon/pkg/app"
	"github.com/sipeed/picomon/pkg/domain/monitor"
	"github.com/sipeed/picomon/pkg/logger"
	"github.com/sipeed/picomon/pkg/probe"
	"github.com/sipeed/picomon/pkg/render"
)

const (
	rawQueryLimit = 1500

	msgSettingUp   = "_Setting up monitor..._"
	msgQuerying    = "_Querying..._"
	msgQueryResult = "**Query results:**"
	msgNotInDM     = "Commands don't work in DMs!"
	msgNotOwner    = "You need to be the server owner!"
	msgUnknown     = "Command not recognised."
	msgFailed      = "Something went wrong, try again later."
)

// Message is an inbound chat message.
type Message struct {
	GuildID      string // empty for direct messages
	GuildOwnerID string
	ChannelID    string
	MessageID    string
	AuthorID     string
	AuthorBot    bool
	Content      string
}

// Conversation is how a command answers in the channel it came from.
type Conversation interface {
	// Reply answers the triggering message and returns the reply's ID.
	Reply(ctx context.Context, text string) (string, error)
	// Send posts a new message in the channel and returns its ID.
	Send(ctx context.Context, text string) (string, error)
	// Edit replaces a posted message's text and card. A nil card leaves the
	// message with text only.
	Edit(ctx context.Context, messageID, text string, card *render.Card) error
	// React adds an emoji reaction to the triggering message.
	React(ctx context.Context, emoji string) error
	// Delete removes a message from the channel.
	Delete(ctx context.Context, messageID string) error
}

// Monitors is the application surface the commands drive.
type Monitors interface {
	TryCreate(ctx context.Context, req app.CreateRequest) (*monitor.Task, render.Card, error)
	ListScope(ctx context.Context, scopeID string) ([]*monitor.Task, error)
	Remove(ctx context.Context, scopeID, messageID string) (*monitor.Task, error)
	Query(ctx context.Context, gameType, host string) (probe.Result, render.Card, error)
	Limit() int
}

type handler func(ctx context.Context, msg Message, args []string, conv Conversation) error

type command struct {
	usage   string
	summary string
	run     handler
}

// Router parses prefix commands and dispatches them.
type Router struct {
	prefix   string
	monitors Monitors
	commands map[string]command
	order    []string
}

// NewRouter creates a router for the given prefix.
func NewRouter(prefix string, monitors Monitors) *Router {
	if prefix == "" {
		prefix = "!"
	}
	r := &Router{prefix: prefix, monitors: monitors, commands: make(map[string]command)}
	r.register("monitor", "<game> <host>", "Post a status card that keeps itself up to date", r.monitor)
	r.register("monitors", "", "List the monitors in this server", r.list)
	r.register("unmonitor", "<messageID>", "Stop updating a status card", r.unmonitor)
	r.register("query-raw", "<game> <host>", "Query a server and show the raw result", r.queryRaw)
	r.register("query-pretty", "<game> <host>", "Query a server and show a status card", r.queryPretty)
	r.register("ping", "", "Check the bot is alive", r.ping)
	r.register("help", "", "Show this list", r.help)
	return r
}

func (r *Router) register(name, usage, summary string, run handler) {
	r.commands[name] = command{usage: usage, summary: summary, run: run}
	r.order = append(r.order, name)
}

// Parse splits content into a command name and arguments. ok is false when
// content is not a command: no prefix, or the prefix followed by a space.
func (r *Router) Parse(content string) (name string, args []string, ok bool) {
	if !strings.HasPrefix(content, r.prefix) || strings.HasPrefix(content, r.prefix+" ") {
		return "", nil, false
	}
	fields := strings.Fields(content[len(r.prefix):])
	if len(fields) == 0 {
		return "", nil, false
	}
	return fields[0], fields[1:], true
}

// Handle processes one inbound message. It reports whether the message was
// a command addressed to the bot.
func (r *Router) Handle(ctx context.Context, msg Message, conv Conversation) bool {
	if msg.AuthorBot {
		return false
	}
	name, args, ok := r.Parse(msg.Content)
	if !ok {
		return false
	}

	if msg.GuildID == "" {
		r.reply(ctx, conv, msgNotInDM)
		return true
	}
	if msg.AuthorID != msg.GuildOwnerID {
		r.reply(ctx, conv, msgNotOwner)
		return true
	}

	cmd, known := r.commands[name]
	if !known {
		if err := conv.React(ctx, "❓"); err != nil {
			logger.DebugCF("commands", "React failed", map[string]interface{}{"error": err})
		}
		r.reply(ctx, conv, msgUnknown)
		return true
	}

	logger.DebugCF("commands", "Command received", map[string]interface{}{
		"command": name,
		"guild":   msg.GuildID,
		"channel": msg.ChannelID,
	})
	if err := cmd.run(ctx, msg, args, conv); err != nil {
		logger.ErrorCF("commands", "Command failed", map[string]interface{}{
			"command": name,
			"guild":   msg.GuildID,
			"error":   err,
		})
	}
	return true
}

func (r *Router) reply(ctx context.Context, conv Conversation, text string) {
	if _, err := conv.Reply(ctx, text); err != nil {
		logger.WarnCF("commands", "Reply failed", map[string]interface{}{"error": err})
	}
}

func (r *Router) usage(name string) string {
	cmd := r.commands[name]
	return strings.TrimSpace(fmt.Sprintf("Usage: `%s%s %s`", r.prefix, name, cmd.usage))
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (r *Router) monitor(ctx context.Context, msg Message, args []string, conv Conversation) error {
	if len(args) < 2 {
		_, err := conv.Reply(ctx, r.usage("monitor"))
		return err
	}
	gameType, host := args[0], args[1]

	placeholder, err := conv.Send(ctx, msgSettingUp)
	if err != nil {
		return fmt.Errorf("post placeholder: %w", err)
	}

	_, _, err = r.monitors.TryCreate(ctx, app.CreateRequest{
		ScopeID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		MessageID: placeholder,
		GameType:  gameType,
		Host:      host,
	})
	if err != nil {
		if editErr := conv.Edit(ctx, placeholder, r.describe(err, gameType), nil); editErr != nil {
			return errors.Join(err, editErr)
		}
		if isUserError(err) {
			return nil
		}
		return err
	}

	return conv.Delete(ctx, msg.MessageID)
}

func (r *Router) list(ctx context.Context, msg Message, args []string, conv Conversation) error {
	tasks, err := r.monitors.ListScope(ctx, msg.GuildID)
	if err != nil {
		r.reply(ctx, conv, msgFailed)
		return err
	}
	_, err = conv.Reply(ctx, formatList(tasks, r.monitors.Limit()))
	return err
}

func (r *Router) unmonitor(ctx context.Context, msg Message, args []string, conv Conversation) error {
	if len(args) < 1 {
		_, err := conv.Reply(ctx, r.usage("unmonitor"))
		return err
	}
	task, err := r.monitors.Remove(ctx, msg.GuildID, args[0])
	switch {
	case errors.Is(err, monitor.ErrNotFound):
		_, err = conv.Reply(ctx, fmt.Sprintf("No monitor found for message %s.", args[0]))
		return err
	case err != nil:
		r.reply(ctx, conv, msgFailed)
		return err
	}
	_, err = conv.Reply(ctx, fmt.Sprintf("Stopped monitoring %s (%s).", task.Host, task.GameType))
	return err
}

func (r *Router) queryRaw(ctx context.Context, msg Message, args []string, conv Conversation) error {
	if len(args) < 2 {
		_, err := conv.Reply(ctx, r.usage("query-raw"))
		return err
	}
	wait, err := conv.Reply(ctx, msgQuerying)
	if err != nil {
		return err
	}

	res, _, err := r.monitors.Query(ctx, args[0], args[1])
	if err != nil {
		return conv.Edit(ctx, wait, r.describe(err, args[0]), nil)
	}
	if !res.Online() {
		return conv.Edit(ctx, wait, "Server unreachable: "+args[1], nil)
	}

	data, err := json.MarshalIndent(res.Snapshot, "", "  ")
	if err != nil {
		return err
	}
	return conv.Edit(ctx, wait, "```json\n"+truncate(string(data), rawQueryLimit)+"\n```", nil)
}

func (r *Router) queryPretty(ctx context.Context, msg Message, args []string, conv Conversation) error {
	if len(args) < 2 {
		_, err := conv.Reply(ctx, r.usage("query-pretty"))
		return err
	}
	wait, err := conv.Reply(ctx, msgQuerying)
	if err != nil {
		return err
	}

	_, card, err := r.monitors.Query(ctx, args[0], args[1])
	if err != nil {
		return conv.Edit(ctx, wait, r.describe(err, args[0]), nil)
	}
	return conv.Edit(ctx, wait, msgQueryResult, &card)
}

func (r *Router) ping(ctx context.Context, msg Message, args []string, conv Conversation) error {
	if err := conv.React(ctx, "🏓"); err != nil {
		logger.DebugCF("commands", "React failed", map[string]interface{}{"error": err})
	}
	_, err := conv.Reply(ctx, "Pong!")
	return err
}

func (r *Router) help(ctx context.Context, msg Message, args []string, conv Conversation) error {
	var b strings.Builder
	b.WriteString("**Commands**\n")
	for _, name := range r.order {
		cmd := r.commands[name]
		line := strings.TrimSpace(r.prefix + name + " " + cmd.usage)
		fmt.Fprintf(&b, "`%s` %s\n", line, cmd.summary)
	}
	_, err := conv.Reply(ctx, strings.TrimRight(b.String(), "\n"))
	return err
}

// describe turns an admission or query error into the user-facing text.
func (r *Router) describe(err error, gameType string) string {
	var qe *monitor.QuotaError
	switch {
	case errors.As(err, &qe):
		return fmt.Sprintf("Monitor limit reached (%d/%d)", qe.Count, qe.Limit)
	case errors.Is(err, monitor.ErrInvalidGameType):
		return "Invalid game: " + gameType
	case errors.Is(err, monitor.ErrDuplicateHandle):
		return "That message is already being monitored."
	default:
		return msgFailed
	}
}

func isUserError(err error) bool {
	return errors.Is(err, monitor.ErrQuotaExceeded) || errors.Is(err, monitor.ErrInvalidGameType)
}

func formatList(tasks []*monitor.Task, limit int) string {
	if len(tasks) == 0 {
		return fmt.Sprintf("No monitors in this server (0/%d).", limit)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Monitors (%d/%d)**", len(tasks), limit)
	for _, t := range tasks {
		fmt.Fprintf(&b, "\n`%s` %s %s", t.MessageID, t.GameType, t.Host)
	}
	return b.String()
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
