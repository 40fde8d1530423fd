package domain

import (
	"time"

	"github.com/Shugur-Network/edge-relay/internal/config"
)

// NodeInterface defines what the transport layer needs from the running node.
type NodeInterface interface {
	ConnectionManager

	// Configuration access
	Config() *config.Config

	GetConnectionCount() int // For health checks
	GetStartTime() time.Time // For health checks
}
