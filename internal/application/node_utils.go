package application

import (
	"github.com/Shugur-Network/edge-relay/internal/config"
	"github.com/Shugur-Network/edge-relay/internal/identity"
	"github.com/Shugur-Network/edge-relay/internal/relay"
	"github.com/Shugur-Network/edge-relay/internal/relay/nips"
)

// Config returns the node's configuration.
func (n *Node) Config() *config.Config {
	return n.config
}

// Core returns the shared relay core.
func (n *Node) Core() *relay.Core {
	return n.core
}

// Identity returns the relay key pair.
func (n *Node) Identity() *identity.RelayIdentity {
	return n.identity
}

// Info returns the relay information document served on GET /.
func (n *Node) Info() nips.InformationDocument {
	return n.info
}
