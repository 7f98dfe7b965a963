// picomon ops API
// Serves read-only monitor state, a manual reconcile trigger and a WebSocket
// feed of domain events. Disabled unless HTTP_ADDR is set.
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sipeed/picomon/pkg/app"
	"github.com/sipeed/picomon/pkg/config"
	"github.com/sipeed/picomon/pkg/domain"
	"github.com/sipeed/picomon/pkg/domain/monitor"
	"github.com/sipeed/picomon/pkg/logger"
)

// Monitors is the read side of the monitor service.
type Monitors interface {
	ListAll(ctx context.Context) ([]*monitor.Task, error)
	ListScope(ctx context.Context, scopeID string) ([]*monitor.Task, error)
}

// Cycles is the reconciler as seen by the API.
type Cycles interface {
	RunCycle(ctx context.Context) (*app.CycleReport, error)
	LastReport() *app.CycleReport
	Running() bool
}

// Server is the HTTP ops API.
type Server struct {
	config      config.GatewayConfig
	monitors    Monitors
	cycles      Cycles
	wsHub       *WSHub
	eventBridge *EventBridge
	startTime   time.Time
	server      *http.Server
	mu          sync.Mutex
}

// NewServer creates a new API server instance. When no API key is
// configured a random one is generated for this process and logged once.
func NewServer(cfg config.GatewayConfig, monitors Monitors, cycles Cycles, eventBus domain.EventBus) *Server {
	if cfg.APIKey == "" {
		raw := make([]byte, 24)
		if _, err := rand.Read(raw); err == nil {
			cfg.APIKey = hex.EncodeToString(raw)
			logger.WarnCF("api", "API_KEY not set, generated a session key", map[string]interface{}{
				"api_key": cfg.APIKey,
			})
		}
	}

	s := &Server{
		config:    cfg,
		monitors:  monitors,
		cycles:    cycles,
		startTime: time.Now(),
	}
	s.wsHub = NewWSHub(s.snapshot)
	if eventBus != nil {
		s.eventBridge = NewEventBridge(eventBus, s.wsHub)
	}
	return s
}

// Handler returns the routed, authenticated handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/monitors", s.handleMonitors)
	mux.HandleFunc("POST /api/reconcile", s.handleReconcile)

	// WebSocket for live events
	mux.HandleFunc("GET /api/ws", s.wsHub.HandleWebSocket)

	return authMiddleware(s.config.APIKey, mux)
}

// Start begins listening on the configured address.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	logger.InfoCF("api", "Ops API server starting", map[string]interface{}{
		"addr": s.config.Addr,
	})

	go s.wsHub.Run(ctx)
	if s.eventBridge != nil {
		s.eventBridge.Start()
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("api", "Server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

// snapshot is the status document shared by /api/status and new WebSocket clients.
func (s *Server) snapshot() map[string]interface{} {
	uptime := time.Since(s.startTime)
	state := map[string]interface{}{
		"uptime_seconds": int(uptime.Seconds()),
		"uptime_human":   formatDuration(uptime),
	}
	if s.cycles != nil {
		state["cycle_running"] = s.cycles.Running()
		if last := s.cycles.LastReport(); last != nil {
			state["last_cycle"] = last
		}
	}
	return state
}

func (s *Server) handleMonitors(w http.ResponseWriter, r *http.Request) {
	var (
		tasks []*monitor.Task
		err   error
	)
	if scope := r.URL.Query().Get("scope"); scope != "" {
		tasks, err = s.monitors.ListScope(r.Context(), scope)
	} else {
		tasks, err = s.monitors.ListAll(r.Context())
	}
	if err != nil {
		logger.ErrorCF("api", "List monitors failed", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "monitor store unavailable"})
		return
	}
	if tasks == nil {
		tasks = []*monitor.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := s.cycles.RunCycle(r.Context())
	switch {
	case errors.Is(err, app.ErrCycleInFlight):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
