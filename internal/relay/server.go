package relay

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/Shugur-Network/edge-relay/internal/config"
	"github.com/Shugur-Network/edge-relay/internal/domain"
	"github.com/Shugur-Network/edge-relay/internal/errors"
	"github.com/Shugur-Network/edge-relay/internal/health"
	"github.com/Shugur-Network/edge-relay/internal/logger"
	"github.com/Shugur-Network/edge-relay/internal/metrics"
	"github.com/Shugur-Network/edge-relay/internal/relay/nips"
	"github.com/Shugur-Network/edge-relay/internal/web"
	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server serves the relay WebSocket endpoint and its HTTP side channel on one port.
type Server struct {
	cfg           *config.Config
	node          domain.NodeInterface
	dispatcher    *Dispatcher
	clock         clock.Clock
	info          nips.InformationDocument
	healthChecker *health.HealthChecker
	stats         *web.StatsHandler
	errs          *errors.ErrorMiddleware
	upgrader      websocket.Upgrader
}

// NewServer constructs a Server over core.
func NewServer(cfg *config.Config, node domain.NodeInterface, core *Core, info nips.InformationDocument, clk clock.Clock) *Server {
	if clk == nil {
		clk = clock.New()
	}
	return &Server{
		cfg:           cfg,
		node:          node,
		dispatcher:    NewDispatcher(core, cfg.Policy),
		clock:         clk,
		info:          info,
		healthChecker: health.NewHealthChecker(core, node, logger.New("health"), config.Version),
		stats:         web.NewStatsHandler(core, node.GetStartTime(), logger.New("stats")),
		errs:          errors.NewErrorMiddleware(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
			CheckOrigin:      func(r *http.Request) bool { return true },
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the HTTP handler. WebSocket connections it accepts are
// closed when ctx is cancelled.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		metrics.HTTPRequests.WithLabelValues("/health").Inc()
		nips.SetCORSHeaders(w.Header())
		s.healthChecker.HandleHealth(w, r)
	})
	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		metrics.HTTPRequests.WithLabelValues("/api/stats").Inc()
		nips.SetCORSHeaders(w.Header())
		s.stats.ServeHTTP(w, r)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if isWebSocketRequest(r) {
			metrics.HTTPRequests.WithLabelValues("ws").Inc()
			s.handleWebSocket(ctx, w, r)
			return
		}

		metrics.HTTPRequests.WithLabelValues("/").Inc()
		nips.SetCORSHeaders(w.Header())
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		switch r.Method {
		case http.MethodOptions:
			nips.ServePreflight(w, r)
		case http.MethodGet, http.MethodHead:
			nips.ServeRelayMetadata(w, r, s.info)
		default:
			w.Header().Set("Allow", "GET, OPTIONS")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	validated := web.ValidationMiddleware(web.DefaultInputValidation())(mux)
	return s.errs.RecoveryMiddleware(validated)
}

// handleWebSocket upgrades r and runs the connection until it ends.
func (s *Server) handleWebSocket(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	clientIP := extractRealClientIP(r)

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logger.Debug("WebSocket upgrade failed",
			zap.String("client_ip", clientIP),
			zap.Error(errors.WebSocketError("upgrade", err)))
		return
	}

	conn := NewWsConnection(ws, s.dispatcher, s.node, s.cfg, s.clock, clientIP)
	s.node.RegisterConn(conn)
	metrics.IncrementActiveConnections()

	logger.Debug("WebSocket connection established",
		zap.String("conn_id", conn.ID()),
		zap.String("client_ip", clientIP),
		zap.String("user_agent", r.Header.Get("User-Agent")),
		zap.Int64("active_connections", metrics.GetActiveConnectionsCount()))

	conn.Serve(ctx)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown when context is canceled
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down WebSocket server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown incomplete", zap.Error(err))
		}
	}()

	logger.Info("Relay WebSocket server listening", zap.String("address", addr))
	if err := httpSrv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return errors.NetworkError("listen", err)
	}
	return nil
}

// isWebSocketRequest checks if the request is a WebSocket upgrade request
func isWebSocketRequest(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade") &&
		strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
