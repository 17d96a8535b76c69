package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/gxvn1/GxvnsChatApp/internal/logging"
	"github.com/gxvn1/GxvnsChatApp/internal/metrics"
	"github.com/gxvn1/GxvnsChatApp/internal/protocol"
	"github.com/gxvn1/GxvnsChatApp/internal/router"
)

const maxFrameSize = 64 * 1024

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from arbitrary origins; auth happens in-band.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the connection and runs the session loop until the
// peer disconnects. Teardown through the router happens exactly once, here.
func (s *Server) handleWebSocket(c echo.Context) error {
	if !s.limiter.Acquire() {
		metrics.ConnectionsRejectedTotal.WithLabelValues("capacity").Inc()
		slog.Warn("Connection rejected, server at capacity", "current", s.limiter.Current())
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "server at capacity"})
	}
	defer s.limiter.Release()

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		metrics.ConnectionsRejectedTotal.WithLabelValues("upgrade_failed").Inc()
		slog.Warn("WebSocket upgrade failed", "error", err)
		return nil
	}

	metrics.ConnectedClients.Inc()
	defer metrics.ConnectedClients.Dec()

	sess := router.NewSession(conn, s.clock)

	// The request context dies with the HTTP handler; teardown needs its own.
	ctx := logging.WithConnID(context.Background(), sess.ID().String())
	defer s.router.Disconnect(ctx, sess)

	slog.InfoContext(ctx, "Client connected", "remote", conn.RemoteAddr().String())
	s.readLoop(ctx, conn, sess)
	slog.InfoContext(ctx, "Client disconnected", "username", sess.Username())
	return nil
}

// readLoop reads frames until the connection drops. No inbound frame is fatal:
// malformed, rate-limited, and unauthenticated frames are dropped with a
// notice where the protocol calls for one.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, sess *router.Session) {
	conn.SetReadLimit(maxFrameSize)
	limiter := rate.NewLimiter(rate.Limit(s.config.MessageRate), s.config.MessageBurst)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.WarnContext(ctx, "Unexpected connection close", "error", err)
			}
			return
		}

		if !limiter.Allow() {
			metrics.RateLimitedFramesTotal.Inc()
			sendNotice(sess, "message rate exceeded")
			continue
		}

		env, err := protocol.Decode(data)
		if err != nil {
			metrics.MalformedFramesTotal.Inc()
			if errors.Is(err, protocol.ErrMalformed) {
				slog.WarnContext(ctx, "Dropping malformed frame", "error", err)
			}
			continue
		}

		if !authorized(sess, env) {
			metrics.FramesRoutedTotal.WithLabelValues(env.Type, "unauthenticated").Inc()
			sendNotice(sess, "authentication required")
			continue
		}

		s.router.HandleFrame(ctx, sess, env)
	}
}

// authorized reports whether the session may send this envelope. Before login
// only register and login frames pass the gate.
func authorized(sess *router.Session, env *protocol.Envelope) bool {
	if sess.Username() != "" {
		return true
	}
	return env.Type == protocol.TypeRegister || env.Type == protocol.TypeLogin
}

// sendNotice delivers a best-effort system notice to one session.
func sendNotice(sess *router.Session, content string) {
	data, err := protocol.Encode(protocol.NewSystemNotice(content))
	if err != nil {
		return
	}
	_ = sess.Send(data)
}
