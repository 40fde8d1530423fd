package application

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Shugur-Network/edge-relay/internal/config"
	"github.com/Shugur-Network/edge-relay/internal/constants"
	"github.com/Shugur-Network/edge-relay/internal/domain"
	"github.com/Shugur-Network/edge-relay/internal/errors"
	"github.com/Shugur-Network/edge-relay/internal/identity"
	"github.com/Shugur-Network/edge-relay/internal/logger"
	"github.com/Shugur-Network/edge-relay/internal/metrics"
	"github.com/Shugur-Network/edge-relay/internal/relay"
	"github.com/Shugur-Network/edge-relay/internal/relay/nips"
	"github.com/Shugur-Network/edge-relay/internal/storage"
	"github.com/Shugur-Network/edge-relay/internal/workers"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// DefaultDataDirName is created under the home directory when no data dir is configured.
const DefaultDataDirName = ".edge-relay"

// maintenanceQueue bounds pending maintenance jobs; one cycle is queued per tick.
const maintenanceQueue = 4

// BuilderOption customizes a NodeBuilder.
type BuilderOption func(*NodeBuilder)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(clk clock.Clock) BuilderOption {
	return func(b *NodeBuilder) { b.clock = clk }
}

// NodeBuilder is used to incrementally construct a Node instance.
type NodeBuilder struct {
	ctx    context.Context
	cancel context.CancelFunc
	config *config.Config
	clock  clock.Clock

	store      *storage.Store
	validator  domain.EventValidator
	core       *relay.Core
	identity   *identity.RelayIdentity
	info       nips.InformationDocument
	workerPool *workers.WorkerPool
}

// NewNodeBuilder creates a new NodeBuilder with its own cancelable context.
func NewNodeBuilder(ctx context.Context, cfg *config.Config, opts ...BuilderOption) *NodeBuilder {
	c, cancel := context.WithCancel(ctx)
	b := &NodeBuilder{
		ctx:    c,
		cancel: cancel,
		config: cfg,
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildStore creates the bounded in-memory event store.
func (b *NodeBuilder) BuildStore() error {
	store, err := storage.NewFromConfig(b.clock, b.config.Storage)
	if err != nil {
		b.cancel()
		return errors.StorageError("init", err)
	}
	b.store = store
	logger.Info("Event store ready",
		zap.Int("max_events", b.config.Storage.MaxEvents),
		zap.Int("max_tombstones", b.config.Storage.MaxTombstones),
		zap.Duration("retention", b.config.Storage.Retention))
	return nil
}

// BuildCore configures the validation logic and the shared relay core.
func (b *NodeBuilder) BuildCore() {
	b.validator = relay.NewEventValidator(b.clock, b.config.Policy)
	if b.store != nil {
		b.core = relay.NewCore(b.store, b.validator, b.config.Policy)
	}
}

// BuildIdentity loads the relay key and derives the information document.
func (b *NodeBuilder) BuildIdentity() error {
	id, err := identity.Load(b.config.Relay.SecretKey, resolveDataDir(b.config.Relay.DataDir))
	if err != nil {
		b.cancel()
		if b.config.Relay.SecretKey != "" {
			return errors.ConfigurationError("relay.secret_key", err.Error())
		}
		return errors.StorageError("load identity", err)
	}
	b.identity = id
	b.info = constants.DefaultRelayMetadata(b.config, id.PublicKey)
	return nil
}

func resolveDataDir(dir string) string {
	if dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		logger.Warn("No home directory, relay identity will not persist", zap.Error(err))
		return ""
	}
	return filepath.Join(home, DefaultDataDirName)
}

// BuildWorkers initializes the worker pool.
func (b *NodeBuilder) BuildWorkers() {
	b.workerPool = workers.NewWorkerPool(b.config.Storage.Workers, maintenanceQueue)
}

// Build finalizes the node construction.
func (b *NodeBuilder) Build() (*Node, error) {
	if b.store == nil {
		return nil, fmt.Errorf("store must be built before calling Build()")
	}
	if b.core == nil {
		return nil, fmt.Errorf("core must be built before calling Build()")
	}
	if b.identity == nil {
		return nil, fmt.Errorf("identity must be built before calling Build()")
	}
	if b.workerPool == nil {
		return nil, fmt.Errorf("worker pool must be built before calling Build()")
	}

	metrics.RegisterMetrics()

	node := &Node{
		ctx:        b.ctx,
		cancel:     b.cancel,
		config:     b.config,
		clock:      b.clock,
		core:       b.core,
		identity:   b.identity,
		info:       b.info,
		WorkerPool: b.workerPool,
		wsConns:    make(map[string]domain.Client),
		startTime:  time.Now(),
	}
	node.server = relay.NewServer(b.config, node, b.core, b.info, b.clock)

	logger.Debug("Node initialized successfully via builder")
	return node, nil
}
