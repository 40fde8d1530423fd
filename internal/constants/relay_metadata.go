package constants

import (
	"time"

	"github.com/Shugur-Network/edge-relay/internal/config"
	"github.com/Shugur-Network/edge-relay/internal/relay/nips"
	nip11 "github.com/nbd-wtf/go-nostr/nip11"
)

// Default relay metadata constants
const (
	DefaultRelayName        = "edge-relay"
	DefaultRelayDescription = "Small-footprint Nostr relay for constrained hosts."
	DefaultRelaySoftware    = "https://github.com/Shugur-Network/edge-relay"
)

// DefaultSupportedNIPs lists the NIPs supported by the relay
var DefaultSupportedNIPs = []interface{}{
	1,  // NIP-01: Basic protocol flow description
	9,  // NIP-09: Event Deletion Request
	11, // NIP-11: Relay Information Document
	13, // NIP-13: Proof of Work
	40, // NIP-40: Expiration Timestamp
}

// Relay capabilities that are fixed rather than configured
const (
	AuthRequired     = false
	PaymentRequired  = false
	RestrictedWrites = false
)

// Timeout constants
const (
	HealthCheckTimeout = 5 * time.Second
	ShutdownTimeout    = 30 * time.Second
)

// DefaultRelayMetadata builds the relay information document from the
// loaded configuration and the relay's public key.
func DefaultRelayMetadata(cfg *config.Config, pubkey string) nips.InformationDocument {
	relayName := cfg.Relay.Name
	if relayName == "" {
		relayName = DefaultRelayName
	}

	relayDescription := cfg.Relay.Description
	if relayDescription == "" {
		relayDescription = DefaultRelayDescription
	}

	policy := cfg.Policy
	return nips.InformationDocument{
		RelayInformationDocument: nip11.RelayInformationDocument{
			Name:          relayName,
			Description:   relayDescription,
			PubKey:        pubkey,
			Contact:       cfg.Relay.Contact,
			SupportedNIPs: DefaultSupportedNIPs,
			Software:      DefaultRelaySoftware,
			Version:       config.Version,
			Icon:          cfg.Relay.Icon,
		},
		Limitation: &nips.Limitation{
			RelayLimitationDocument: nip11.RelayLimitationDocument{
				MaxMessageLength: int(cfg.Relay.MaxMessageLen),
				MaxSubscriptions: policy.MaxSubscriptions,
				MaxLimit:         policy.MaxLimit,
				MaxSubidLength:   policy.MaxSubIDLength,
				MaxEventTags:     policy.MaxEventTags,
				MaxContentLength: policy.MaxContentLength,
				MinPowDifficulty: policy.MinPowDifficulty,
				AuthRequired:     AuthRequired,
				PaymentRequired:  PaymentRequired,
				RestrictedWrites: RestrictedWrites,
			},
			MaxFilters:          policy.MaxFilters,
			CreatedAtLowerLimit: int64(policy.MaxAge / time.Second),
			CreatedAtUpperLimit: int64(policy.MaxFuture / time.Second),
		},
	}
}
