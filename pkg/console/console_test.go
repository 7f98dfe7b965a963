package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/sipeed/picomon/pkg/app"
	"github.com/sipeed/picomon/pkg/commands"
	"github.com/sipeed/picomon/pkg/domain/game"
	"github.com/sipeed/picomon/pkg/domain/monitor"
	"github.com/sipeed/picomon/pkg/infrastructure/persistence"
	"github.com/sipeed/picomon/pkg/probe"
	"github.com/sipeed/picomon/pkg/render"
)

type upProber struct{}

func (upProber) Probe(ctx context.Context, gameType, host string) probe.Result {
	return probe.Result{Kind: probe.KindOnline, Snapshot: &game.Snapshot{Name: game.String("Local")}}
}

func init() { color.NoColor = true }

func TestMonitorFlowThroughConsole(t *testing.T) {
	var out bytes.Buffer
	con := New(&out)

	store, err := persistence.OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	games := game.Builtin()
	svc := app.NewMonitorService(store, games, upProber{}, render.NewRenderer(games, nil), con, nil, 3)
	router := commands.NewRouter("!", svc)
	ctx := context.Background()

	if !con.Submit(ctx, router, "!monitor minecraft play.example.com") {
		t.Fatal("command not handled")
	}

	tasks, _ := store.ListByScope(ctx, ScopeID)
	if len(tasks) != 1 {
		t.Fatalf("tasks = %d", len(tasks))
	}
	if !strings.Contains(out.String(), "● online play.example.com [Minecraft]") {
		t.Errorf("output missing card:\n%s", out.String())
	}
	// The trigger is deleted, the card remains.
	msgs := con.Messages()
	if len(msgs) != 1 || msgs[0] != tasks[0].MessageID {
		t.Errorf("messages = %v, card = %s", msgs, tasks[0].MessageID)
	}

	con.Delete(tasks[0].MessageID)
	err = con.Push(ctx, ChannelID, tasks[0].MessageID, render.Card{})
	if !monitor.IsHandleInvalid(err) {
		t.Errorf("push to deleted message err = %v", err)
	}
}

func TestSubmitIgnoresNonCommands(t *testing.T) {
	con := New(&bytes.Buffer{})
	router := commands.NewRouter("!", nil)
	if con.Submit(context.Background(), router, "hello there") {
		t.Error("plain text handled as command")
	}
	if len(con.Messages()) != 0 {
		t.Errorf("messages = %v", con.Messages())
	}
}

func TestFormatCard(t *testing.T) {
	maxPlayers := 8
	text := FormatCard(render.Card{
		Title:      "1.2.3.4",
		Status:     render.StatusOnline,
		Attributes: []render.Attribute{{Label: "Map", Value: "Altis"}},
		Roster:     &render.Roster{Names: []string{"alice"}, Max: &maxPlayers},
	})
	for _, want := range []string{"● online 1.2.3.4", "Map: Altis", "Players (1/8): alice"} {
		if !strings.Contains(text, want) {
			t.Errorf("FormatCard missing %q:\n%s", want, text)
		}
	}

	if text := FormatCard(render.Card{Title: "down", Status: render.StatusOffline}); text != "● offline down" {
		t.Errorf("offline = %q", text)
	}
}

func TestControls(t *testing.T) {
	var out bytes.Buffer
	con := New(&out)
	id := con.post("hello")

	if con.control("/delete " + id) {
		t.Error("delete should not quit")
	}
	if len(con.Messages()) != 0 {
		t.Error("message not deleted")
	}
	if !con.control("/quit") {
		t.Error("/quit should quit")
	}
}
