// Package server wires the gateway: routes, middleware chain, and the
// collaborators the handlers need.
package server

import (
	"log/slog"
	"net/http"

	"github.com/serenova-ai/serenova/pkg/core/capture"
	"github.com/serenova-ai/serenova/pkg/core/turn"
	"github.com/serenova-ai/serenova/pkg/gateway/auth"
	"github.com/serenova-ai/serenova/pkg/gateway/config"
	"github.com/serenova-ai/serenova/pkg/gateway/handlers"
	"github.com/serenova-ai/serenova/pkg/gateway/lifecycle"
	"github.com/serenova-ai/serenova/pkg/gateway/live"
	"github.com/serenova-ai/serenova/pkg/gateway/metrics"
	"github.com/serenova-ai/serenova/pkg/gateway/mw"
	"github.com/serenova-ai/serenova/pkg/gateway/realtime"
)

// Deps are the collaborators the server routes requests to. The daemon
// builds them from config; tests substitute in-memory fakes.
type Deps struct {
	Turns     *turn.Orchestrator
	Verifier  auth.Verifier
	Hub       *realtime.Hub
	Tracker   *realtime.Tracker
	Metrics   *metrics.Metrics
	Lifecycle *lifecycle.Lifecycle
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux
	deps   Deps
}

func New(cfg config.Config, logger *slog.Logger, deps Deps) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Hub == nil {
		deps.Hub = realtime.NewHub(logger)
	}
	if deps.Tracker == nil {
		deps.Tracker = realtime.NewTracker()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New("serenova")
	}
	if deps.Lifecycle == nil {
		deps.Lifecycle = &lifecycle.Lifecycle{}
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),
		deps:   deps,
	}
	s.routes()
	return s
}

// Hub returns the realtime hub, for wiring the orchestrator's notifier.
func (s *Server) Hub() *realtime.Hub { return s.deps.Hub }

// Tracker returns the live session tracker, for shutdown draining.
func (s *Server) Tracker() *realtime.Tracker { return s.deps.Tracker }

// Lifecycle returns the drain flag shared with the live handler.
func (s *Server) Lifecycle() *lifecycle.Lifecycle { return s.deps.Lifecycle }

func (s *Server) routes() {
	chats := handlers.ChatsHandler{Turns: s.deps.Turns, Logger: s.logger, Metrics: s.deps.Metrics}
	calls := handlers.CallsHandler{Turns: s.deps.Turns, Logger: s.logger, Metrics: s.deps.Metrics}

	s.mux.Handle("GET /health", handlers.HealthHandler{})
	s.mux.Handle("GET /metrics", s.deps.Metrics.Handler())

	s.mux.Handle("POST /api/chats", s.authed(http.HandlerFunc(chats.Create)))
	s.mux.Handle("GET /api/chats", s.authed(http.HandlerFunc(chats.List)))
	s.mux.Handle("GET /api/chats/{id}", s.authed(http.HandlerFunc(chats.Get)))
	s.mux.Handle("DELETE /api/chats/{id}", s.authed(http.HandlerFunc(chats.Delete)))
	s.mux.Handle("POST /api/chats/{id}/messages", s.authed(http.HandlerFunc(chats.Message)))

	s.mux.Handle("POST /api/calls", s.authed(http.HandlerFunc(calls.Start)))
	s.mux.Handle("GET /api/calls", s.authed(http.HandlerFunc(calls.List)))
	s.mux.Handle("GET /api/calls/{id}", s.authed(http.HandlerFunc(calls.Get)))
	s.mux.Handle("POST /api/calls/{id}/messages", s.authed(http.HandlerFunc(calls.Message)))
	s.mux.Handle("POST /api/calls/{id}/end", s.authed(http.HandlerFunc(calls.End)))
	s.mux.Handle("DELETE /api/calls/{id}", s.authed(http.HandlerFunc(calls.Delete)))

	s.mux.Handle("GET /ws", s.authed(realtime.Handler{
		Hub:            s.deps.Hub,
		Logger:         s.logger,
		PingInterval:   s.cfg.WSPingInterval,
		WriteTimeout:   s.cfg.WSWriteTimeout,
		AllowedOrigins: s.cfg.CORSAllowedOrigins,
	}))
	s.mux.Handle("GET /ws/call/{id}", s.authed(live.Handler{
		Turns:     s.deps.Turns,
		Logger:    s.logger,
		Metrics:   s.deps.Metrics,
		Tracker:   s.deps.Tracker,
		Lifecycle: s.deps.Lifecycle,
		CaptureConfig: capture.Config{
			QuietPeriod:   s.cfg.CaptureQuietPeriod,
			MinTranscript: s.cfg.CaptureMinTranscript,
			RearmDelay:    s.cfg.CaptureRearmDelay,
		},
		PingInterval:   s.cfg.WSPingInterval,
		WriteTimeout:   s.cfg.WSWriteTimeout,
		AllowedOrigins: s.cfg.CORSAllowedOrigins,
	}))

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) authed(next http.Handler) http.Handler {
	return mw.Auth(s.deps.Verifier, next)
}

// routePattern labels metrics with the matched route, not the raw path.
func (s *Server) routePattern(r *http.Request) string {
	_, pattern := s.mux.Handler(r)
	if pattern == "" {
		return "unmatched"
	}
	return pattern
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg.CORSAllowedOrigins, h)
	h = mw.Recover(s.logger, h)
	h = mw.Metrics(s.deps.Metrics, s.routePattern, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
