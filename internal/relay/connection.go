package relay

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Shugur-Network/edge-relay/internal/config"
	"github.com/Shugur-Network/edge-relay/internal/domain"
	"github.com/Shugur-Network/edge-relay/internal/errors"
	"github.com/Shugur-Network/edge-relay/internal/limiter"
	"github.com/Shugur-Network/edge-relay/internal/logger"
	"github.com/Shugur-Network/edge-relay/internal/metrics"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// extractRealClientIP extracts the real client IP from request headers when behind a proxy
func extractRealClientIP(r *http.Request) string {
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}

	// Take the first IP in the chain (the original client)
	if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		return strings.TrimSpace(first)
	}

	return normalizeIP(r.RemoteAddr)
}

// normalizeIP converts a network address to a normalized IP string
func normalizeIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	// Normalize IPv4-mapped IPv6 addresses
	if ip := net.ParseIP(host); ip != nil {
		if ipv4 := ip.To4(); ipv4 != nil {
			return ipv4.String()
		}
		return ip.String()
	}
	return host
}

// WsConnection is one client socket: a reader goroutine that dispatches
// frames and a writer goroutine draining a bounded outbound queue.
type WsConnection struct {
	id           string
	ws           *websocket.Conn
	dispatcher   *Dispatcher
	manager      domain.ConnectionManager
	cfg          config.RelayConfig
	limiter      *limiter.RateLimiter
	frames       *rate.Limiter
	realClientIP string
	startTime    time.Time
	log          *zap.Logger

	send        chan [][]byte
	done        chan struct{}
	closeOnce   sync.Once
	closeReason string
}

// Ensure WsConnection implements domain.Client
var _ domain.Client = (*WsConnection)(nil)

// NewWsConnection wraps an upgraded socket. Call Serve to run it.
func NewWsConnection(
	ws *websocket.Conn,
	dispatcher *Dispatcher,
	manager domain.ConnectionManager,
	cfg *config.Config,
	clk clock.Clock,
	realClientIP string,
) *WsConnection {
	frameLimit := rate.Inf
	if cfg.Relay.FrameRate > 0 {
		frameLimit = rate.Limit(cfg.Relay.FrameRate)
	}

	id := uuid.NewString()
	return &WsConnection{
		id:           id,
		ws:           ws,
		dispatcher:   dispatcher,
		manager:      manager,
		cfg:          cfg.Relay,
		limiter:      limiter.NewFromConfig(clk, cfg.RateLimit),
		frames:       rate.NewLimiter(frameLimit, cfg.Relay.FrameBurst),
		realClientIP: realClientIP,
		startTime:    time.Now(),
		log:          logger.FromContext(logger.WithConnID(context.Background(), id)),
		send:         make(chan [][]byte, cfg.Relay.SendQueueSize),
		done:         make(chan struct{}),
	}
}

// ID returns the connection id.
func (c *WsConnection) ID() string {
	return c.id
}

// RemoteAddr returns the client's real remote address (extracted from proxy headers)
func (c *WsConnection) RemoteAddr() string {
	return c.realClientIP
}

// Send enqueues batch without blocking.
func (c *WsConnection) Send(batch [][]byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- batch:
		return true
	default:
		return false
	}
}

// Close tears the socket down. Safe to call from any goroutine, including
// while the core lock is held.
func (c *WsConnection) Close() {
	c.closeWithReason("closed by relay")
}

func (c *WsConnection) closeWithReason(reason string) {
	c.closeOnce.Do(func() {
		c.closeReason = reason
		close(c.done)

		// The polite close may block on a stuck peer; do it off the caller's goroutine.
		go func() {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			_ = c.ws.Close()
		}()
	})
}

// Serve runs the connection until the socket fails, the client leaves or
// ctx is cancelled. Teardown always releases the client's subscriptions
// and rate counters.
func (c *WsConnection) Serve(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Recovered from panic in connection handler",
				zap.Any("panic", r),
				zap.String("client", c.RemoteAddr()))
		}
		c.closeWithReason("handler terminated")
		dropped := c.dispatcher.Core().Disconnect(c)
		c.manager.UnregisterConn(c)
		metrics.DecrementActiveConnections()

		c.log.Debug("WebSocket connection closed",
			zap.String("reason", c.closeReason),
			zap.String("client", c.RemoteAddr()),
			zap.Int("dropped_subscriptions", dropped),
			zap.String("rate_counters", c.limiter.String()),
			zap.Duration("connection_duration", time.Since(c.startTime)))
	}()

	go c.writeLoop()
	go func() {
		select {
		case <-ctx.Done():
			c.closeWithReason("server shutting down")
		case <-c.done:
		}
	}()

	c.ws.SetReadLimit(c.cfg.MaxMessageLen)
	c.extendReadDeadline()
	c.ws.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			wsErr := errors.WebSocketError("read", err)
			if wsErr.Severity == errors.SeverityLow {
				c.closeWithReason("client closed connection")
			} else {
				c.closeWithReason("read error")
			}
			c.log.Debug("WS read ended",
				zap.String("code", wsErr.Code),
				zap.Error(err),
				zap.String("client", c.RemoteAddr()))
			return
		}

		metrics.IncrementMessagesProcessed(len(raw))
		c.extendReadDeadline()

		if !c.frames.Allow() {
			metrics.RateLimitHits.WithLabelValues("frame").Inc()
			reply(c, encodeNotice(ErrFrameRateLimited.Message))
			continue
		}
		c.dispatcher.Handle(c, c.limiter, raw)
	}
}

func (c *WsConnection) extendReadDeadline() {
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.IdleTimeout)) // nolint:errcheck // deadline is non-critical
}

// writeLoop is the only goroutine writing data frames to the socket.
func (c *WsConnection) writeLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case batch := <-c.send:
			for _, frame := range batch {
				_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)) // nolint:errcheck // deadline is non-critical
				if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
					c.log.Debug("Failed to write message",
						zap.Error(err),
						zap.String("client", c.RemoteAddr()))
					metrics.ErrorsCount.WithLabelValues("network").Inc()
					c.closeWithReason("write error")
					return
				}
				metrics.IncrementMessagesSent(len(frame))
			}
		case <-ticker.C:
			err := c.ws.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(c.cfg.WriteTimeout))
			if err != nil {
				c.log.Debug("Failed to send ping, closing connection",
					zap.Error(err),
					zap.String("client", c.RemoteAddr()))
				c.closeWithReason("ping failed")
				return
			}
		}
	}
}
