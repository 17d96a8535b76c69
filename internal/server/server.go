package server

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gxvn1/GxvnsChatApp/internal/config"
	"github.com/gxvn1/GxvnsChatApp/internal/presence"
	"github.com/gxvn1/GxvnsChatApp/internal/router"
)

// Pinger is implemented by identity stores with a network backend.
// Readiness reports degraded when the ping fails.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo     *echo.Echo
	config   *config.Config
	router   *router.Router
	presence presence.Store
	clock    clockwork.Clock
	limiter  *connectionLimiter
	// storePinger is nil when the identity store is in-memory.
	storePinger Pinger
}

func NewServer(cfg *config.Config, rt *router.Router, pres presence.Store, storePinger Pinger, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:        e,
		config:      cfg,
		router:      rt,
		presence:    pres,
		clock:       clock,
		limiter:     newConnectionLimiter(cfg.MaxConnections),
		storePinger: storePinger,
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Root health summary, kept compatible with existing deployments.
	s.echo.GET("/", s.handleRoot)

	// Chat endpoint
	s.echo.GET("/ws", s.handleWebSocket)

	// Presence lookup
	s.echo.GET("/api/last-seen/:username", s.handleLastSeen)
}

// Start begins serving on the given port. Blocks until Shutdown.
func (s *Server) Start(port string) error {
	return s.echo.Start(":" + port)
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
