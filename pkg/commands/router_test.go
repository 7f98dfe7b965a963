package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sipeed/picomon/pkg/app"
	"github.com/sipeed/picomon/pkg/domain/game"
	"github.com/sipeed/picomon/pkg/domain/monitor"
	"github.com/sipeed/picomon/pkg/probe"
	"github.com/sipeed/picomon/pkg/render"
)

type edit struct {
	messageID string
	text      string
	card      *render.Card
}

type fakeConv struct {
	replies   []string
	sent      []string
	edits     []edit
	reactions []string
	deleted   []string
	cards     map[string]*render.Card
}

func (c *fakeConv) Reply(ctx context.Context, text string) (string, error) {
	c.replies = append(c.replies, text)
	return fmt.Sprintf("reply-%d", len(c.replies)), nil
}

func (c *fakeConv) Send(ctx context.Context, text string) (string, error) {
	c.sent = append(c.sent, text)
	return fmt.Sprintf("sent-%d", len(c.sent)), nil
}

func (c *fakeConv) Edit(ctx context.Context, messageID, text string, card *render.Card) error {
	c.edits = append(c.edits, edit{messageID, text, card})
	c.setCard(messageID, card)
	return nil
}

// setCard records the card a message currently shows; nil means none.
func (c *fakeConv) setCard(messageID string, card *render.Card) {
	if c.cards == nil {
		c.cards = make(map[string]*render.Card)
	}
	c.cards[messageID] = card
}

func (c *fakeConv) React(ctx context.Context, emoji string) error {
	c.reactions = append(c.reactions, emoji)
	return nil
}

func (c *fakeConv) Delete(ctx context.Context, messageID string) error {
	c.deleted = append(c.deleted, messageID)
	return nil
}

type fakeMonitors struct {
	// pushTo receives the admission card before createErr is returned,
	// as when the store fails after the initial push.
	pushTo    *fakeConv
	createErr error
	created   []app.CreateRequest
	tasks     []*monitor.Task
	result    probe.Result
	queryErr  error
}

func (m *fakeMonitors) TryCreate(ctx context.Context, req app.CreateRequest) (*monitor.Task, render.Card, error) {
	if m.pushTo != nil {
		m.pushTo.setCard(req.MessageID, &render.Card{Title: req.Host, Status: render.StatusOnline})
	}
	if m.createErr != nil {
		return nil, render.Card{}, m.createErr
	}
	m.created = append(m.created, req)
	return monitor.NewTask(req.ScopeID, req.ChannelID, req.MessageID, req.GameType, req.Host), render.Card{}, nil
}

func (m *fakeMonitors) ListScope(ctx context.Context, scopeID string) ([]*monitor.Task, error) {
	return m.tasks, nil
}

func (m *fakeMonitors) Remove(ctx context.Context, scopeID, messageID string) (*monitor.Task, error) {
	for _, t := range m.tasks {
		if t.MessageID == messageID && t.ScopeID == scopeID {
			return t, nil
		}
	}
	return nil, monitor.ErrNotFound
}

func (m *fakeMonitors) Query(ctx context.Context, gameType, host string) (probe.Result, render.Card, error) {
	if m.queryErr != nil {
		return probe.Result{}, render.Card{}, m.queryErr
	}
	status := render.StatusOffline
	if m.result.Online() {
		status = render.StatusOnline
	}
	return m.result, render.Card{Title: host, Status: status}, nil
}

func (m *fakeMonitors) Limit() int { return 3 }

func ownerMessage(content string) Message {
	return Message{
		GuildID:      "g1",
		GuildOwnerID: "owner",
		ChannelID:    "c1",
		MessageID:    "trigger",
		AuthorID:     "owner",
		Content:      content,
	}
}

func TestParse(t *testing.T) {
	r := NewRouter("!", &fakeMonitors{})
	tests := []struct {
		content string
		name    string
		nargs   int
		ok      bool
	}{
		{"!ping", "ping", 0, true},
		{"!monitor minecraft play.example.com", "monitor", 2, true},
		{"! ping", "", 0, false},
		{"hello !ping", "", 0, false},
		{"!", "", 0, false},
		{"?ping", "", 0, false},
	}
	for _, tt := range tests {
		name, args, ok := r.Parse(tt.content)
		if ok != tt.ok || name != tt.name || len(args) != tt.nargs {
			t.Errorf("Parse(%q) = %q, %v, %v", tt.content, name, args, ok)
		}
	}
}

func TestHandleGuards(t *testing.T) {
	r := NewRouter("!", &fakeMonitors{})
	ctx := context.Background()

	bot := ownerMessage("!ping")
	bot.AuthorBot = true
	if r.Handle(ctx, bot, &fakeConv{}) {
		t.Error("bot messages must be ignored")
	}

	dm := ownerMessage("!ping")
	dm.GuildID = ""
	conv := &fakeConv{}
	r.Handle(ctx, dm, conv)
	if len(conv.replies) != 1 || conv.replies[0] != msgNotInDM {
		t.Errorf("DM replies = %v", conv.replies)
	}

	stranger := ownerMessage("!ping")
	stranger.AuthorID = "someone"
	conv = &fakeConv{}
	r.Handle(ctx, stranger, conv)
	if len(conv.replies) != 1 || conv.replies[0] != msgNotOwner {
		t.Errorf("non-owner replies = %v", conv.replies)
	}
}

func TestUnknownCommand(t *testing.T) {
	conv := &fakeConv{}
	NewRouter("!", &fakeMonitors{}).Handle(context.Background(), ownerMessage("!dance"), conv)
	if len(conv.reactions) != 1 || conv.reactions[0] != "❓" {
		t.Errorf("reactions = %v", conv.reactions)
	}
	if len(conv.replies) != 1 || conv.replies[0] != "Command not recognised." {
		t.Errorf("replies = %v", conv.replies)
	}
}

func TestPing(t *testing.T) {
	conv := &fakeConv{}
	NewRouter("!", &fakeMonitors{}).Handle(context.Background(), ownerMessage("!ping"), conv)
	if len(conv.reactions) != 1 || conv.reactions[0] != "🏓" || conv.replies[0] != "Pong!" {
		t.Errorf("reactions = %v, replies = %v", conv.reactions, conv.replies)
	}
}

func TestMonitorSuccessDeletesTrigger(t *testing.T) {
	mons := &fakeMonitors{}
	conv := &fakeConv{}
	NewRouter("!", mons).Handle(context.Background(), ownerMessage("!monitor minecraft play.example.com"), conv)

	if len(conv.sent) != 1 || conv.sent[0] != msgSettingUp {
		t.Fatalf("sent = %v", conv.sent)
	}
	if len(mons.created) != 1 {
		t.Fatalf("created = %v", mons.created)
	}
	req := mons.created[0]
	if req.MessageID != "sent-1" || req.ScopeID != "g1" || req.GameType != "minecraft" || req.Host != "play.example.com" {
		t.Errorf("request = %+v", req)
	}
	if len(conv.deleted) != 1 || conv.deleted[0] != "trigger" {
		t.Errorf("deleted = %v", conv.deleted)
	}
}

func TestMonitorFailuresEditPlaceholder(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"invalid game", fmt.Errorf("%w: quake", monitor.ErrInvalidGameType), "Invalid game: quake"},
		{"quota", &monitor.QuotaError{ScopeID: "g1", Count: 3, Limit: 3}, "Monitor limit reached (3/3)"},
		{"other", errors.New("boom"), msgFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := &fakeConv{}
			NewRouter("!", &fakeMonitors{createErr: tt.err}).Handle(context.Background(), ownerMessage("!monitor quake host"), conv)

			if len(conv.edits) != 1 || conv.edits[0].messageID != "sent-1" || conv.edits[0].text != tt.want {
				t.Errorf("edits = %+v", conv.edits)
			}
			if len(conv.deleted) != 0 {
				t.Error("trigger must be kept when admission fails")
			}
		})
	}
}

func TestMonitorStoreFailureClearsPushedCard(t *testing.T) {
	conv := &fakeConv{}
	mons := &fakeMonitors{pushTo: conv, createErr: errors.New("save monitor: database is locked")}
	NewRouter("!", mons).Handle(context.Background(), ownerMessage("!monitor minecraft play.example.com"), conv)

	if len(conv.edits) != 1 || conv.edits[0].text != msgFailed {
		t.Fatalf("edits = %+v", conv.edits)
	}
	if card, ok := conv.cards["sent-1"]; !ok || card != nil {
		t.Errorf("placeholder still shows card %+v after failed admission", card)
	}
}

func TestMonitorUsage(t *testing.T) {
	conv := &fakeConv{}
	NewRouter("!", &fakeMonitors{}).Handle(context.Background(), ownerMessage("!monitor minecraft"), conv)
	if len(conv.replies) != 1 || !strings.HasPrefix(conv.replies[0], "Usage: `!monitor <game> <host>`") {
		t.Errorf("replies = %v", conv.replies)
	}
	if len(conv.sent) != 0 {
		t.Error("no placeholder for a usage error")
	}
}

func TestQueryRawTruncates(t *testing.T) {
	players := make([]game.Player, 200)
	for i := range players {
		players[i] = game.Player{Name: fmt.Sprintf("player-with-a-long-name-%03d", i)}
	}
	mons := &fakeMonitors{result: probe.Result{Kind: probe.KindOnline, Snapshot: &game.Snapshot{Players: players}}}
	conv := &fakeConv{}
	NewRouter("!", mons).Handle(context.Background(), ownerMessage("!query-raw minecraft h"), conv)

	if len(conv.edits) != 1 {
		t.Fatalf("edits = %+v", conv.edits)
	}
	text := conv.edits[0].text
	if !strings.HasPrefix(text, "```json\n") || !strings.HasSuffix(text, "\n```") {
		t.Errorf("not a json code block: %q", text[:20])
	}
	body := strings.TrimSuffix(strings.TrimPrefix(text, "```json\n"), "\n```")
	if len([]rune(body)) != rawQueryLimit {
		t.Errorf("body length = %d, want %d", len([]rune(body)), rawQueryLimit)
	}
}

func TestQueryRawOffline(t *testing.T) {
	conv := &fakeConv{}
	NewRouter("!", &fakeMonitors{result: probe.Offline(nil)}).Handle(context.Background(), ownerMessage("!query-raw minecraft down.example.com"), conv)
	if len(conv.edits) != 1 || conv.edits[0].text != "Server unreachable: down.example.com" {
		t.Errorf("edits = %+v", conv.edits)
	}
}

func TestQueryPretty(t *testing.T) {
	mons := &fakeMonitors{result: probe.Result{Kind: probe.KindOnline, Snapshot: &game.Snapshot{}}}
	conv := &fakeConv{}
	NewRouter("!", mons).Handle(context.Background(), ownerMessage("!query-pretty minecraft h"), conv)

	if len(conv.replies) != 1 || conv.replies[0] != msgQuerying {
		t.Fatalf("replies = %v", conv.replies)
	}
	if len(conv.edits) != 1 || conv.edits[0].text != msgQueryResult || conv.edits[0].card == nil {
		t.Fatalf("edits = %+v", conv.edits)
	}
	if conv.edits[0].card.Status != render.StatusOnline {
		t.Errorf("card status = %s", conv.edits[0].card.Status)
	}
}

func TestListAndUnmonitor(t *testing.T) {
	mons := &fakeMonitors{tasks: []*monitor.Task{monitor.NewTask("g1", "c1", "m1", "arma3", "1.2.3.4")}}
	r := NewRouter("!", mons)
	ctx := context.Background()

	conv := &fakeConv{}
	r.Handle(ctx, ownerMessage("!monitors"), conv)
	if len(conv.replies) != 1 || !strings.Contains(conv.replies[0], "(1/3)") || !strings.Contains(conv.replies[0], "`m1` arma3 1.2.3.4") {
		t.Errorf("list = %v", conv.replies)
	}

	conv = &fakeConv{}
	r.Handle(ctx, ownerMessage("!unmonitor nope"), conv)
	if len(conv.replies) != 1 || conv.replies[0] != "No monitor found for message nope." {
		t.Errorf("unmonitor missing = %v", conv.replies)
	}

	conv = &fakeConv{}
	r.Handle(ctx, ownerMessage("!unmonitor m1"), conv)
	if len(conv.replies) != 1 || conv.replies[0] != "Stopped monitoring 1.2.3.4 (arma3)." {
		t.Errorf("unmonitor = %v", conv.replies)
	}
}

func TestHelpListsCommands(t *testing.T) {
	conv := &fakeConv{}
	NewRouter("?", &fakeMonitors{}).Handle(context.Background(), ownerMessage("?help"), conv)
	if len(conv.replies) != 1 {
		t.Fatalf("replies = %v", conv.replies)
	}
	for _, name := range []string{"?monitor <game> <host>", "?query-raw", "?ping", "?unmonitor <messageID>"} {
		if !strings.Contains(conv.replies[0], name) {
			t.Errorf("help missing %q", name)
		}
	}
}
