package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/internal/bus"
	"github.com/edgefeed/signal-engine/pkg/healthprobe"
)

// Server provides HTTP endpoints for metrics, health checks, state
// snapshots, and the WebSocket event stream.
type Server struct {
	server        *http.Server
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	bus           *bus.Bus
	hub           *hub
	streamCancel  context.CancelFunc
}

// Config holds server configuration.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker

	// Bus, when set, feeds the /ws/stream endpoint.
	Bus *bus.Bus

	// State, when set, backs /api/v1/state with an aggregated snapshot.
	State func() map[string]interface{}
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	s := &Server{
		logger:        cfg.Logger,
		healthChecker: cfg.HealthChecker,
		bus:           cfg.Bus,
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Routes
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.HealthChecker.Health())
	r.Get("/ready", cfg.HealthChecker.Ready())
	r.Get("/api/v1/state", s.handleState(cfg.State))

	if cfg.Bus != nil {
		s.hub = newHub(cfg.Logger)
		s.hub.history = s.historyFrames
		r.Get("/ws/stream", s.hub.serveWS)
	}

	s.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler returns the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server and, when a bus is attached, the stream hub.
// This is a blocking call that returns when the server stops or encounters
// an error.
func (s *Server) Start() error {
	if s.hub != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.streamCancel = cancel
		go s.hub.run(ctx)
		go s.pumpBus(ctx)
	}

	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server and the stream hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	if s.streamCancel != nil {
		s.streamCancel()
	}

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}

// historyFrames marshals the bus's replay buffer for a newly connected
// client. Clients joining long after startup still see recent events.
func (s *Server) historyFrames() [][]byte {
	events := s.bus.History()
	frames := make([][]byte, 0, len(events))
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		frames = append(frames, data)
	}
	return frames
}

// pumpBus forwards live bus events to the hub. Its subscriber also replays
// history, but at Start no client has connected yet, so per-client replay
// happens in the hub's register path instead.
func (s *Server) pumpBus(ctx context.Context) {
	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				s.logger.Warn("stream-marshal-failed",
					zap.String("topic", event.Type), zap.Error(err))
				continue
			}
			s.hub.broadcastBytes(data)
		}
	}
}

func (s *Server) handleState(state func() map[string]interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := map[string]interface{}{}
		if state != nil {
			snapshot = state()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(snapshot)
	}
}
