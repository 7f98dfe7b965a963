package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sipeed/picomon/pkg/app"
	"github.com/sipeed/picomon/pkg/config"
	"github.com/sipeed/picomon/pkg/domain"
	"github.com/sipeed/picomon/pkg/domain/monitor"
	"github.com/sipeed/picomon/pkg/infrastructure/eventbus"
)

const testKey = "secret"

type fakeMonitors struct {
	tasks []*monitor.Task
	err   error
}

func (f *fakeMonitors) ListAll(ctx context.Context) ([]*monitor.Task, error) {
	return f.tasks, f.err
}

func (f *fakeMonitors) ListScope(ctx context.Context, scopeID string) ([]*monitor.Task, error) {
	var out []*monitor.Task
	for _, t := range f.tasks {
		if t.ScopeID == scopeID {
			out = append(out, t)
		}
	}
	return out, f.err
}

type fakeCycles struct {
	err     error
	report  *app.CycleReport
	running bool
}

func (f *fakeCycles) RunCycle(ctx context.Context) (*app.CycleReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func (f *fakeCycles) LastReport() *app.CycleReport { return f.report }
func (f *fakeCycles) Running() bool               { return f.running }

func newTestServer(mons *fakeMonitors, cycles *fakeCycles) *Server {
	return NewServer(config.GatewayConfig{APIKey: testKey}, mons, cycles, nil)
}

func do(t *testing.T, h http.Handler, method, target string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if auth {
		req.Header.Set("Authorization", "Bearer "+testKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	h := newTestServer(&fakeMonitors{}, &fakeCycles{}).Handler()
	rec := do(t, h, http.MethodGet, "/api/health", false)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	h := newTestServer(&fakeMonitors{}, &fakeCycles{}).Handler()

	if rec := do(t, h, http.MethodGet, "/api/monitors", false); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/monitors", nil)
	req.Header.Set("X-API-Key", testKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("X-API-Key: status = %d", rec.Code)
	}

	if rec := do(t, h, http.MethodGet, "/api/monitors?token=wrong", false); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d", rec.Code)
	}
}

func TestListMonitors(t *testing.T) {
	mons := &fakeMonitors{tasks: []*monitor.Task{
		{ID: "a", ScopeID: "g1", ChannelID: "c1", MessageID: "m1", GameType: "minecraft", Host: "x"},
		{ID: "b", ScopeID: "g2", ChannelID: "c2", MessageID: "m2", GameType: "arma3", Host: "y"},
	}}
	h := newTestServer(mons, &fakeCycles{}).Handler()

	var all []monitor.Task
	rec := do(t, h, http.MethodGet, "/api/monitors", true)
	if err := json.NewDecoder(rec.Body).Decode(&all); err != nil || len(all) != 2 {
		t.Fatalf("all = %v, %v", all, err)
	}

	var scoped []monitor.Task
	rec = do(t, h, http.MethodGet, "/api/monitors?scope=g2", true)
	if err := json.NewDecoder(rec.Body).Decode(&scoped); err != nil || len(scoped) != 1 || scoped[0].Host != "y" {
		t.Errorf("scoped = %v, %v", scoped, err)
	}

	rec = do(t, h, http.MethodGet, "/api/monitors?scope=nobody", true)
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("empty scope body = %q", body)
	}
}

func TestListMonitorsStoreDown(t *testing.T) {
	h := newTestServer(&fakeMonitors{err: errors.New("locked")}, &fakeCycles{}).Handler()
	if rec := do(t, h, http.MethodGet, "/api/monitors", true); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestReconcile(t *testing.T) {
	report := &app.CycleReport{Total: 3, Updated: 3}
	h := newTestServer(&fakeMonitors{}, &fakeCycles{report: report}).Handler()

	rec := do(t, h, http.MethodPost, "/api/reconcile", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got app.CycleReport
	json.NewDecoder(rec.Body).Decode(&got)
	if got.Total != 3 || got.Updated != 3 {
		t.Errorf("report = %+v", got)
	}

	if rec := do(t, h, http.MethodGet, "/api/reconcile", true); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET reconcile status = %d", rec.Code)
	}
}

func TestReconcileConflict(t *testing.T) {
	h := newTestServer(&fakeMonitors{}, &fakeCycles{err: app.ErrCycleInFlight}).Handler()
	if rec := do(t, h, http.MethodPost, "/api/reconcile", true); rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestStatusIncludesLastCycle(t *testing.T) {
	h := newTestServer(&fakeMonitors{}, &fakeCycles{report: &app.CycleReport{Total: 7}, running: true}).Handler()

	var body map[string]interface{}
	rec := do(t, h, http.MethodGet, "/api/status", true)
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["cycle_running"] != true {
		t.Errorf("cycle_running = %v", body["cycle_running"])
	}
	last, ok := body["last_cycle"].(map[string]interface{})
	if !ok || last["total"] != float64(7) {
		t.Errorf("last_cycle = %v", body["last_cycle"])
	}
}

func TestWebSocketStreamsDomainEvents(t *testing.T) {
	bus := eventbus.New()
	s := NewServer(config.GatewayConfig{APIKey: testKey}, &fakeMonitors{}, &fakeCycles{}, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.wsHub.Run(ctx)
	s.eventBridge.Start()

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws?token=" + testKey
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first WSEvent
	if err := conn.ReadJSON(&first); err != nil || first.Type != "initial_state" {
		t.Fatalf("first event = %+v, %v", first, err)
	}

	bus.Publish(domain.NewEvent(domain.EventMonitorRetired, "task-1", nil))

	var evt WSEvent
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read: %v", err)
	}
	if evt.Type != "monitor.retired" {
		t.Errorf("type = %q", evt.Type)
	}
	data, _ := evt.Data.(map[string]interface{})
	if data["monitor_id"] != "task-1" {
		t.Errorf("data = %v", evt.Data)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Minute, "5m"},
		{2*time.Hour + 3*time.Minute, "2h 3m"},
		{50 * time.Hour, "2d 2h 0m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
