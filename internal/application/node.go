package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Shugur-Network/edge-relay/internal/config"
	"github.com/Shugur-Network/edge-relay/internal/constants"
	"github.com/Shugur-Network/edge-relay/internal/domain"
	"github.com/Shugur-Network/edge-relay/internal/identity"
	"github.com/Shugur-Network/edge-relay/internal/logger"
	"github.com/Shugur-Network/edge-relay/internal/metrics"
	"github.com/Shugur-Network/edge-relay/internal/relay"
	"github.com/Shugur-Network/edge-relay/internal/relay/nips"
	"github.com/Shugur-Network/edge-relay/internal/workers"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Node ties together the components needed to run the relay.
type Node struct {
	ctx    context.Context
	cancel context.CancelFunc

	config     *config.Config
	clock      clock.Clock
	core       *relay.Core
	server     *relay.Server
	identity   *identity.RelayIdentity
	info       nips.InformationDocument
	WorkerPool *workers.WorkerPool

	wsConns   map[string]domain.Client
	wsConnsMu sync.RWMutex

	background sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
	startTime  time.Time
}

// Ensure Node implements domain.NodeInterface
var _ domain.NodeInterface = (*Node)(nil)

// New creates and configures a Node using the NodeBuilder pattern.
func New(ctx context.Context, cfg *config.Config, opts ...BuilderOption) (*Node, error) {
	builder := NewNodeBuilder(ctx, cfg, opts...)

	// 1) Store first, everything else reads from it
	if err := builder.BuildStore(); err != nil {
		return nil, fmt.Errorf("failed building store: %w", err)
	}

	// 2) Validator and relay core
	builder.BuildCore()

	// 3) Relay identity and information document
	if err := builder.BuildIdentity(); err != nil {
		return nil, fmt.Errorf("failed building identity: %w", err)
	}

	// 4) Worker pool for maintenance
	builder.BuildWorkers()

	// 5) Finally assemble the Node
	node, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build node: %w", err)
	}
	return node, nil
}

// Start launches the relay server, the metrics endpoint and the
// maintenance loop. It returns immediately; Done reports when the node
// stops on its own.
func (n *Node) Start(ctx context.Context) error {
	if n.ctx.Err() != nil {
		return fmt.Errorf("node already shut down")
	}
	n.startOnce.Do(func() {
		if n.config.Metrics.Enabled {
			n.goBackground(func() {
				if err := metrics.Serve(n.ctx, n.config.Metrics.Port); err != nil {
					logger.Error("Metrics server error", zap.Error(err))
				}
			})
		}

		n.startMaintenance()

		n.goBackground(func() {
			addr := n.config.Relay.WSAddr
			if err := n.server.ListenAndServe(n.ctx, addr); err != nil {
				logger.Error("Server error", zap.Error(err))
				n.cancel()
				return
			}
			logger.Debug("Server closed gracefully")
		})
	})

	logger.Info("Node started",
		zap.String("ws_addr", n.config.Relay.WSAddr),
		zap.String("relay_id", n.identity.RelayID),
		zap.String("pubkey", n.identity.PublicKey))
	return nil
}

// Done is closed once the node context ends, either from Shutdown or a
// fatal server error.
func (n *Node) Done() <-chan struct{} {
	return n.ctx.Done()
}

func (n *Node) goBackground(fn func()) {
	n.background.Add(1)
	go func() {
		defer n.background.Done()
		fn()
	}()
}

// startMaintenance creates the ticker before returning so a clock advanced
// right after Start is observed.
func (n *Node) startMaintenance() {
	ticker := n.clock.Ticker(n.config.Storage.PurgeInterval)
	compactEvery := n.config.Storage.CompactEvery

	n.goBackground(func() {
		defer ticker.Stop()
		cycle := 0
		for {
			select {
			case <-n.ctx.Done():
				return
			case <-ticker.C:
				cycle++
				compact := compactEvery > 0 && cycle%compactEvery == 0
				if !n.WorkerPool.AddJob(func() { n.maintain(compact) }) {
					logger.Warn("Maintenance skipped, worker queue full", zap.Int("cycle", cycle))
				}
			}
		}
	})
}

func (n *Node) maintain(compact bool) {
	purged := n.core.Purge()
	if compact {
		n.core.Compact()
	}
	stats := n.core.Stats()
	logger.Debug("Maintenance cycle finished",
		zap.Int("purged", purged),
		zap.Bool("compacted", compact),
		zap.Int("stored", stats.StoredEvents),
		zap.Int("tombstones", stats.Tombstones))
}

// Shutdown gracefully shuts the node down. It is safe to call more than once.
func (n *Node) Shutdown() {
	n.stopOnce.Do(n.shutdown)
}

func (n *Node) shutdown() {
	logger.Info("Initiating graceful shutdown...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	var shutdownErrors []error

	// Step 1: Cancel the node context; the HTTP server stops accepting and
	// the maintenance loop exits.
	n.cancel()

	// Step 2: Close the remaining WebSocket connections
	n.shutdownWebSocketConnections()

	// Step 3: Wait for the server, metrics and maintenance goroutines
	bgDone := make(chan struct{})
	go func() {
		defer close(bgDone)
		n.background.Wait()
	}()
	select {
	case <-bgDone:
		logger.Debug("Background tasks stopped")
	case <-shutdownCtx.Done():
		shutdownErrors = append(shutdownErrors, fmt.Errorf("background tasks did not stop within %v", constants.ShutdownTimeout))
	}

	// Step 4: Let queued maintenance finish, then stop the pool
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.WorkerPool.Stop()
	}()
	select {
	case <-done:
		logger.Debug("Worker pool finished")
	case <-shutdownCtx.Done():
		shutdownErrors = append(shutdownErrors, fmt.Errorf("worker pool shutdown timed out after %v", constants.ShutdownTimeout))
	}

	if len(shutdownErrors) > 0 {
		logger.Warn("Node shutdown completed with errors",
			zap.Int("error_count", len(shutdownErrors)),
			zap.Errors("errors", shutdownErrors))
		return
	}
	logger.Info("Node shutdown completed successfully")
}

// shutdownWebSocketConnections closes every tracked client. Each
// connection unregisters itself as its read loop ends.
func (n *Node) shutdownWebSocketConnections() {
	n.wsConnsMu.RLock()
	connections := make([]domain.Client, 0, len(n.wsConns))
	for _, conn := range n.wsConns {
		connections = append(connections, conn)
	}
	n.wsConnsMu.RUnlock()

	if len(connections) == 0 {
		return
	}
	logger.Info("Closing WebSocket connections", zap.Int("connection_count", len(connections)))
	for _, conn := range connections {
		conn.Close()
	}
}

// RegisterConn tracks a new WebSocket client
func (n *Node) RegisterConn(conn domain.Client) {
	n.wsConnsMu.Lock()
	defer n.wsConnsMu.Unlock()
	n.wsConns[conn.ID()] = conn
	logger.Debug("WebSocket client registered", zap.Int("total_connections", len(n.wsConns)))
}

// UnregisterConn removes a WebSocket client
func (n *Node) UnregisterConn(conn domain.Client) {
	n.wsConnsMu.Lock()
	defer n.wsConnsMu.Unlock()
	delete(n.wsConns, conn.ID())
	logger.Debug("WebSocket client unregistered", zap.Int("total_connections", len(n.wsConns)))
}

// GetConnectionCount returns the current number of active connections (for health checks)
func (n *Node) GetConnectionCount() int {
	n.wsConnsMu.RLock()
	defer n.wsConnsMu.RUnlock()
	return len(n.wsConns)
}

// GetStartTime returns when the node was started (for health checks)
func (n *Node) GetStartTime() time.Time {
	return n.startTime
}
