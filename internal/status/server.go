package status

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/rickgao/crashline/internal/game"
	"github.com/rickgao/crashline/internal/version"
)

// Source supplies views. *game.Client satisfies it.
type Source interface {
	Snapshot() game.View
	Subscribe() (<-chan game.View, func())
}

// HealthCheck reports the state of one dependency in the same shape as the
// cache and database health checks ("status" is "up" or "down").
type HealthCheck func(ctx context.Context) map[string]string

// Config configures the server.
type Config struct {
	Addr         string
	MetricsPath  string // empty disables /metrics
	WriteTimeout time.Duration
}

// Server is the local status server.
type Server struct {
	app     *fiber.App
	cfg     Config
	source  Source
	metrics http.Handler
	checks  map[string]HealthCheck
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves h at Config.MetricsPath.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithHealthCheck adds a named dependency check to /health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Server and registers its routes.
func New(cfg Config, source Source, opts ...Option) *Server {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	s := &Server{
		cfg:    cfg,
		source: source,
		checks: make(map[string]HealthCheck),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "status")

	s.app = fiber.New(fiber.Config{
		AppName:               "crashline",
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
	})
	s.app.Use(recover.New())
	s.registerRoutes()
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on Config.Addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() {
		errc <- s.app.Listener(ln)
	}()

	s.logger.Info("status server listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.logger.Info("status server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", s.healthHandler)

	api := s.app.Group("/api/v1")
	api.Get("/state", s.stateHandler)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws", websocket.New(s.streamHandler))

	if s.metrics != nil && s.cfg.MetricsPath != "" {
		s.app.Get(s.cfg.MetricsPath, adaptor.HTTPHandler(s.metrics))
	}
}

func (s *Server) healthHandler(c *fiber.Ctx) error {
	v := s.source.Snapshot()

	status := "ok"
	if !v.Connection.Connected || !v.Connection.EngineAlive {
		status = "degraded"
	}

	checks := make(map[string]map[string]string, len(s.checks))
	for name, check := range s.checks {
		result := check(c.UserContext())
		if result["status"] != "up" {
			status = "degraded"
		}
		checks[name] = result
	}

	return c.JSON(fiber.Map{
		"status":     status,
		"version":    version.String(),
		"connection": v.Connection,
		"checks":     checks,
	})
}

func (s *Server) stateHandler(c *fiber.Ctx) error {
	return c.JSON(s.source.Snapshot())
}

type frame struct {
	Type string    `json:"type"`
	Data game.View `json:"data"`
}

// streamHandler pushes every view to one renderer until either side goes away.
func (s *Server) streamHandler(conn *websocket.Conn) {
	views, cancel := s.source.Subscribe()
	defer cancel()

	remote := conn.RemoteAddr().String()
	s.logger.Debug("renderer connected", "remote", remote)

	// Renderers never send anything meaningful; reading detects the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case v, ok := <-views:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteJSON(frame{Type: "state", Data: v}); err != nil {
				s.logger.Debug("renderer write failed", "remote", remote, "error", err)
				return
			}
		case <-gone:
			s.logger.Debug("renderer disconnected", "remote", remote)
			return
		}
	}
}
