package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/racecore/internal/core/events/bus"
	"github.com/zeusync/racecore/internal/core/observability/log"
	"github.com/zeusync/racecore/internal/core/session"
)

// TelemetrySource is read by the broadcast loop. *session.Session
// implements it.
type TelemetrySource interface {
	Telemetry() session.Telemetry
}

// Server is a read-only telemetry feed. Every client receives the latest
// HUD snapshot at BroadcastInterval and race events as they happen.
type Server struct {
	config Config
	source TelemetrySource
	bus    bus.EventBus
	logger log.Log

	clientsMu   sync.Mutex
	clients     map[*client]struct{}
	clientCount atomic.Int64

	running atomic.Bool
	closed  atomic.Bool

	httpServer *http.Server
	addr       atomic.Value // string
	sub        bus.Subscription
}

// Config holds server configuration
type Config struct {
	ListenAddr string
	MaxClients int

	// BroadcastInterval is the telemetry push period.
	BroadcastInterval time.Duration
	WriteTimeout      time.Duration
	// SendBuffer is the per-client queue; clients that fall behind it are dropped.
	SendBuffer int
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() Config {
	return Config{
		ListenAddr:        "127.0.0.1:8080",
		MaxClients:        64,
		BroadcastInterval: 50 * time.Millisecond,
		WriteTimeout:      2 * time.Second,
		SendBuffer:        32,
	}
}

func (c Config) Validate() error {
	if c.MaxClients <= 0 {
		return fmt.Errorf("%w: max clients must be positive", ErrInvalidConfig)
	}
	if c.BroadcastInterval <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: intervals must be positive", ErrInvalidConfig)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("%w: send buffer must be positive", ErrInvalidConfig)
	}
	return nil
}

// Message is the wire envelope. Type is "telemetry" or an event type such
// as "race.lap".
type Message struct {
	Type string          `json:"type"`
	At   time.Time       `json:"at,omitzero"`
	Data json.RawMessage `json:"data"`
}

const messageTelemetry = "telemetry"

// NewServer creates a feed for source. eventBus may be nil.
func NewServer(config Config, source TelemetrySource, eventBus bus.EventBus, logger log.Log) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Server{
		config:  config,
		source:  source,
		bus:     eventBus,
		logger:  logger.With(log.String("component", "server")),
		clients: make(map[*client]struct{}),
	}

	if eventBus != nil {
		sub, err := eventBus.Subscribe(bus.AllEvents, s.forwardEvent)
		if err != nil {
			return nil, err
		}
		s.sub = sub
	}

	s.logger.Info("Server created",
		log.String("listen_addr", config.ListenAddr),
		log.Int("max_clients", config.MaxClients))

	return s, nil
}

// Handler serves /telemetry (websocket) and /snapshot (one JSON snapshot).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/telemetry", s.handleWebSocket)
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	return mux
}

// Run listens on ListenAddr and broadcasts until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}
	defer s.running.Store(false)

	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		s.logger.Error("Failed to create listener", log.Error(err))
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}
	s.addr.Store(ln.Addr().String())
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("Server listening", log.String("addr", ln.Addr().String()))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(ln)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.broadcastLoop(ctx)

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}
	return s.shutdown()
}

func (s *Server) shutdown() error {
	s.logger.Info("Stopping server")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)

	s.dropAll()
	s.logger.Info("Server stopped")
	return err
}

// Close releases the bus subscription and disconnects every client.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.sub != nil {
		s.sub.Cancel()
	}
	s.dropAll()
	s.logger.Info("Server closed")
	return nil
}

// Addr is the bound address once Run is listening, or "".
func (s *Server) Addr() string {
	addr, _ := s.addr.Load().(string)
	return addr
}

func (s *Server) ClientCount() int {
	return int(s.clientCount.Load())
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.BroadcastInterval)
	defer ticker.Stop()

	s.logger.Debug("Broadcast loop started")
	defer s.logger.Debug("Broadcast loop stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.BroadcastTelemetry()
		}
	}
}

// BroadcastTelemetry pushes the current snapshot to every client.
func (s *Server) BroadcastTelemetry() {
	if s.ClientCount() == 0 {
		return
	}
	msg, err := encode(messageTelemetry, time.Time{}, s.source.Telemetry())
	if err != nil {
		s.logger.Error("Failed to encode telemetry", log.Error(err))
		return
	}
	s.broadcast(msg)
}

func (s *Server) forwardEvent(e bus.Event) error {
	if s.ClientCount() == 0 {
		return nil
	}
	msg, err := encode(e.Type(), e.Timestamp(), e.Payload())
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.Type(), err)
	}
	s.broadcast(msg)
	return nil
}

func encode(typ string, at time.Time, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: typ, At: at, Data: data})
}

func (s *Server) broadcast(msg []byte) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			s.logger.Warn("Client too slow, dropping",
				log.String("remote_addr", c.remote))
			s.removeLocked(c)
		}
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.source.Telemetry()); err != nil {
		s.logger.Error("Failed to write snapshot", log.Error(err))
	}
}
