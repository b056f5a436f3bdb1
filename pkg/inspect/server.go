// Package inspect serves a live view of a strand cell graph over HTTP:
// JSON snapshots of registered cells, core counters, Prometheus metrics,
// and a WebSocket stream of graph events. It is a development tool; the
// core library works without it.
package inspect

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/strand-dev/strand/pkg/strand"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "localhost:7071"

	// writeWait is how long a WebSocket write may block before the
	// client is considered stuck and dropped.
	writeWait = 5 * time.Second
)

// Config configures the inspect server.
type Config struct {
	// Addr is the listen address (default: DefaultAddr).
	Addr string

	// Logger receives server logs (default: slog on stderr).
	Logger *slog.Logger

	// ReadTimeout and WriteTimeout apply to the HTTP server.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// CheckOrigin controls WebSocket origin checks.
	// Default allows all origins; this is a local development tool.
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns the default inspect server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:         DefaultAddr,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		CheckOrigin:  func(*http.Request) bool { return true },
	}
}

// Server exposes registered cells for inspection.
type Server struct {
	config *Config
	logger *slog.Logger

	// cells are the handles applications registered for inspection,
	// keyed by cell ID.
	mu    sync.RWMutex
	cells map[uint64]registration

	// clients are the connected event-stream WebSockets.
	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]bool

	// writeMu serializes broadcasts across mutating goroutines.
	writeMu sync.Mutex

	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// registration pairs a handle with the name it was registered under.
type registration struct {
	name   string
	handle strand.Handle
}

// New creates an inspect server with the given configuration.
// A nil config uses DefaultConfig.
func New(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	} else {
		defaults := DefaultConfig()
		if config.Addr == "" {
			config.Addr = defaults.Addr
		}
		if config.ReadTimeout == 0 {
			config.ReadTimeout = defaults.ReadTimeout
		}
		if config.WriteTimeout == 0 {
			config.WriteTimeout = defaults.WriteTimeout
		}
		if config.CheckOrigin == nil {
			config.CheckOrigin = defaults.CheckOrigin
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	return &Server{
		config:  config,
		logger:  logger,
		cells:   make(map[uint64]registration),
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     config.CheckOrigin,
		},
	}
}

// Register makes the cell visible on /cells under the given name.
// Registering a handle pins the cell for the server's lifetime.
func (s *Server) Register(name string, h strand.Handle) {
	if h == nil {
		return
	}
	s.mu.Lock()
	s.cells[h.ID()] = registration{name: name, handle: h}
	s.mu.Unlock()
}

// EventHook returns a hook that streams core events to connected
// WebSocket clients. Install it with strand.SetEventHook, alone or via
// strand.CombineHooks.
func (s *Server) EventHook() func(strand.Event) {
	return func(ev strand.Event) {
		s.broadcast(newWireEvent(ev))
	}
}

// Handler returns the server's HTTP handler, separable from Start for
// embedding and tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Get("/cells", s.handleCells)
	r.Get("/cells/{id}", s.handleCell)
	r.Get("/stats", s.handleStats)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/events", s.handleEvents)
	return r
}

// Start begins serving. It blocks until the server stops.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.logger.Info("inspect server listening", "addr", s.config.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server, closing event-stream clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.clientsMu.Lock()
	for client := range s.clients {
		client.Close()
		delete(s.clients, client)
	}
	s.clientsMu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// ClientCount returns the number of connected event-stream clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// cellResponse is the JSON shape served for a registered cell.
type cellResponse struct {
	RegisteredAs string `json:"registered_as"`
	strand.CellInfo
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (s *Server) handleCells(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	out := make([]cellResponse, 0, len(s.cells))
	for _, reg := range s.cells {
		out = append(out, cellResponse{
			RegisteredAs: reg.name,
			CellInfo:     reg.handle.Snapshot(),
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, s.logger, out)
}

func (s *Server) handleCell(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid cell id", http.StatusBadRequest)
		return
	}

	s.mu.RLock()
	reg, ok := s.cells[id]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, "cell not registered", http.StatusNotFound)
		return
	}

	writeJSON(w, s.logger, cellResponse{
		RegisteredAs: reg.name,
		CellInfo:     reg.handle.Snapshot(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.logger, strand.ReadStats())
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", "error", err)
	}
}
