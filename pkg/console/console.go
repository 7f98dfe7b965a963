// Package console runs the bot against a local terminal instead of Discord.
// Messages live in memory; the reconciler edits them by printing the new
// card, and deleting one with /delete retires its monitor on the next cycle.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/sipeed/picomon/pkg/commands"
	"github.com/sipeed/picomon/pkg/domain/monitor"
	"github.com/sipeed/picomon/pkg/render"
)

const (
	// ScopeID is the guild every console command runs in.
	ScopeID   = "console"
	ChannelID = "console"
	userID    = "console-user"
)

// Console is an in-memory chat channel printed to a terminal.
type Console struct {
	out io.Writer

	mu       sync.Mutex
	messages map[string]string
	seq      int
}

// New creates a console writing to out.
func New(out io.Writer) *Console {
	return &Console{out: out, messages: make(map[string]string)}
}

// Push implements monitor.Surface. Unknown messages are invalid handles.
func (c *Console) Push(ctx context.Context, channelID, messageID string, card render.Card) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if channelID != ChannelID {
		return monitor.InvalidHandle(fmt.Errorf("unknown channel %s", channelID))
	}
	if _, ok := c.messages[messageID]; !ok {
		return monitor.InvalidHandle(fmt.Errorf("unknown message %s", messageID))
	}
	text := FormatCard(card)
	c.messages[messageID] = text
	fmt.Fprintf(c.out, "%s\n%s\n", color.New(color.FgHiBlack).Sprintf("[%s edited]", messageID), text)
	return nil
}

// post stores a new message and prints it.
func (c *Console) post(text string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	id := fmt.Sprintf("msg-%d", c.seq)
	c.messages[id] = text
	if text != "" {
		fmt.Fprintf(c.out, "%s %s\n", color.New(color.FgHiBlack).Sprintf("[%s]", id), text)
	}
	return id
}

func (c *Console) edit(id, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.messages[id]; !ok {
		return fmt.Errorf("unknown message %s", id)
	}
	c.messages[id] = text
	fmt.Fprintf(c.out, "%s %s\n", color.New(color.FgHiBlack).Sprintf("[%s edited]", id), text)
	return nil
}

// Delete removes a message. It reports whether the message existed.
func (c *Console) Delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.messages[id]
	delete(c.messages, id)
	return ok
}

// Messages returns the IDs of the messages still in the channel.
func (c *Console) Messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.messages))
	for id := range c.messages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Submit posts a user line and hands it to the router.
func (c *Console) Submit(ctx context.Context, router *commands.Router, line string) bool {
	trigger := c.post("")
	msg := commands.Message{
		GuildID:      ScopeID,
		GuildOwnerID: userID,
		ChannelID:    ChannelID,
		MessageID:    trigger,
		AuthorID:     userID,
		Content:      line,
	}
	handled := router.Handle(ctx, msg, &conversation{console: c, trigger: trigger})
	if !handled {
		c.Delete(trigger)
	}
	return handled
}

// Run reads lines until EOF, interrupt or ctx cancellation. Lines starting
// with "/" are console controls; everything else goes to the router.
func (c *Console) Run(ctx context.Context, router *commands.Router, historyFile string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          color.New(color.FgCyan).Sprint("picomon> "),
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	fmt.Fprintln(c.out, "Type !help for commands, /messages, /delete <id>, /quit.")
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := c.control(line); quit {
				return nil
			}
			continue
		}
		if !c.Submit(ctx, router, line) {
			fmt.Fprintln(c.out, color.New(color.FgHiBlack).Sprint("(not a command)"))
		}
	}
}

func (c *Console) control(line string) (quit bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/messages":
		fmt.Fprintln(c.out, strings.Join(c.Messages(), " "))
	case "/delete":
		if len(fields) < 2 {
			fmt.Fprintln(c.out, "usage: /delete <id>")
			return false
		}
		if c.Delete(fields[1]) {
			fmt.Fprintf(c.out, "deleted %s\n", fields[1])
		} else {
			fmt.Fprintf(c.out, "no message %s\n", fields[1])
		}
	default:
		fmt.Fprintf(c.out, "unknown control %s\n", fields[0])
	}
	return false
}

// ---------------------------------------------------------------------------
// Conversation
// ---------------------------------------------------------------------------

type conversation struct {
	console *Console
	trigger string
}

func (v *conversation) Reply(ctx context.Context, text string) (string, error) {
	return v.console.post(text), nil
}

func (v *conversation) Send(ctx context.Context, text string) (string, error) {
	return v.console.post(text), nil
}

func (v *conversation) Edit(ctx context.Context, messageID, text string, card *render.Card) error {
	if card != nil {
		text = strings.TrimSpace(text + "\n" + FormatCard(*card))
	}
	return v.console.edit(messageID, text)
}

func (v *conversation) React(ctx context.Context, emoji string) error {
	fmt.Fprintf(v.console.out, "%s %s\n", color.New(color.FgHiBlack).Sprintf("[%s reacted]", v.trigger), emoji)
	return nil
}

func (v *conversation) Delete(ctx context.Context, messageID string) error {
	v.console.Delete(messageID)
	return nil
}

var (
	_ monitor.Surface       = (*Console)(nil)
	_ commands.Conversation = (*conversation)(nil)
)
