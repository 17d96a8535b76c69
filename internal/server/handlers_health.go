package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const readinessTimeout = 2 * time.Second

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "GxvnsChatApp server is running",
	})
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReadiness(c echo.Context) error {
	resp := map[string]any{
		"status":   "ready",
		"sessions": s.router.SessionCount(),
	}

	if s.storePinger != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), readinessTimeout)
		defer cancel()

		if err := s.storePinger.Ping(ctx); err != nil {
			resp["status"] = "degraded"
			resp["database"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleLastSeen(c echo.Context) error {
	username := c.Param("username")
	if username == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "username required"})
	}

	ts, seen, err := s.presence.LastSeen(c.Request().Context(), username)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "presence lookup failed"})
	}
	if !seen {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "never seen"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"username":  username,
		"last_seen": ts.UTC().Format(time.RFC3339),
	})
}
