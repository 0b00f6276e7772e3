// Package api exposes the controller's operations over a thin HTTP façade.
// Route handlers are adapters only; all policy lives in the controller.
package api

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/deckide/contextd/internal/controller"
	"github.com/deckide/contextd/internal/metrics"
	"github.com/deckide/contextd/internal/requestid"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	ListenAddr  string
	APIKey      string
	CORSOrigins string
}

// Server is the context-manager Fiber application.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	logger   zerolog.Logger
	config   ServerConfig
}

// NewServer creates and configures the API server.
func NewServer(cfg ServerConfig, ctrl *controller.Controller, m *metrics.Metrics, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	s := &Server{
		app:      app,
		handlers: NewHandlers(ctrl, logger),
		logger:   logger.With().Str("component", "api").Logger(),
		config:   cfg,
	}

	s.setupMiddleware(cfg)
	s.setupRoutes(m)
	return s
}

func (s *Server) setupMiddleware(cfg ServerConfig) {
	s.app.Use(recover.New(recover.Config{EnableStackTrace: true}))

	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization",
			AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
		}))
	}

	s.app.Use(NewAuthMiddleware(cfg.APIKey, s.logger))

	// Correlation ID + request log, skipping noisy probes. Incoming
	// X-Request-ID headers are honored so callers can trace across services.
	s.app.Use(func(c *fiber.Ctx) error {
		id := c.Get(fiber.HeaderXRequestID)
		var ctx context.Context
		if id != "" {
			ctx = requestid.WithRequestID(c.UserContext(), id)
		} else {
			ctx, id = requestid.New(c.UserContext())
		}
		c.SetUserContext(ctx)
		c.Set(fiber.HeaderXRequestID, id)

		path := c.Path()
		if path == "/healthz" || path == "/metrics" {
			return c.Next()
		}
		s.logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Str("ip", c.IP()).
			Str("request_id", id).
			Msg("api request")
		return c.Next()
	})
}

func (s *Server) setupRoutes(m *metrics.Metrics) {
	h := s.handlers

	s.app.Get("/healthz", h.Liveness)
	if m != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	v1 := s.app.Group("/api/v1")

	v1.Get("/status", h.Status)
	v1.Post("/session", h.CreateSession)
	v1.Delete("/session", h.EndSession)
	v1.Get("/sessions", h.ListSessions)

	v1.Post("/track/message", h.TrackMessage)
	v1.Post("/track/tool", h.TrackTool)
	v1.Post("/track/error", h.TrackError)

	v1.Post("/compact", h.Compact)
	v1.Post("/trim", h.Trim)

	v1.Post("/snapshot", h.CreateSnapshot)
	v1.Get("/snapshots", h.ListSnapshots)
	v1.Get("/snapshots/latest", h.LatestSnapshot)
	v1.Get("/snapshots/healthiest", h.HealthiestSnapshot)
	v1.Post("/snapshots/:commitHash/restore", h.RestoreSnapshot)

	v1.Get("/drift", h.Drift)
	v1.Get("/drift/threshold", h.DriftThreshold)
	v1.Put("/drift/threshold", h.SetDriftThreshold)
}

// Start begins listening. It blocks until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("API server starting")
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (tests).
func (s *Server) App() *fiber.App {
	return s.app
}
