package relay

import (
	"sync"

	"github.com/Shugur-Network/edge-relay/internal/config"
	"github.com/Shugur-Network/edge-relay/internal/domain"
	"github.com/Shugur-Network/edge-relay/internal/health"
	"github.com/Shugur-Network/edge-relay/internal/logger"
	"github.com/Shugur-Network/edge-relay/internal/metrics"
	"github.com/Shugur-Network/edge-relay/internal/relay/nips"
	"github.com/Shugur-Network/edge-relay/internal/storage"
	nostr "github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"
)

// ReasonDuplicate is the OK reason for an event the store already holds.
const ReasonDuplicate = "duplicate: already have this event"

// Core is the shared relay state: the event store and the subscription
// registry behind one lock. Every connection handler gets the same Core.
type Core struct {
	mu        sync.Mutex
	store     *storage.Store
	registry  *Registry
	validator domain.EventValidator
	maxLimit  int
}

// CoreStats is a point-in-time view of Core.
type CoreStats struct {
	StoredEvents  int `json:"stored_events"`
	Tombstones    int `json:"tombstones"`
	Subscriptions int `json:"subscriptions"`
}

// NewCore wires a store and validator under the given policy.
func NewCore(store *storage.Store, validator domain.EventValidator, policy config.PolicyConfig) *Core {
	return &Core{
		store:     store,
		registry:  NewRegistry(policy.MaxSubscriptions),
		validator: validator,
		maxLimit:  policy.MaxLimit,
	}
}

// SubmitEvent runs an inbound event through validation, deletion, storage
// and broadcast. It returns the OK verdict and reason for the submitter.
func (c *Core) SubmitEvent(evt *nostr.Event) (accepted bool, reason string) {
	if err := c.validator.Validate(evt); err != nil {
		reason = Reason(err)
		metrics.EventsRejected.WithLabelValues(reasonClass(reason)).Inc()
		logger.Debug("Event rejected",
			zap.String("event_id", evt.ID),
			zap.Int("kind", evt.Kind),
			zap.String("reason", reason))
		return false, reason
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	outcome, err := c.store.Put(evt)
	if err != nil {
		logger.Error("Failed to store event",
			zap.String("event_id", evt.ID),
			zap.Error(err))
		metrics.EventsRejected.WithLabelValues("error").Inc()
		return false, ErrCouldNotSave.Message
	}
	metrics.EventsProcessed.WithLabelValues(outcome.String()).Inc()

	switch outcome {
	case storage.Stored:
		if nips.IsDeletionEvent(evt) {
			c.applyDeletion(evt)
		}
		c.publish(evt)
	case storage.Ephemeral:
		c.publish(evt)
	case storage.Duplicate:
		return true, ReasonDuplicate
	}
	return true, ""
}

// applyDeletion carries out the authorized targets of a stored kind-5 event.
func (c *Core) applyDeletion(evt *nostr.Event) {
	req := nips.ParseDeletionRequest(evt)
	deleted := 0

	for _, id := range req.EventIDs {
		target, ok := c.store.Get(id)
		if !ok || !nips.AuthorizeDeletion(req, target) {
			continue
		}
		if c.store.TombstoneEvent(id, req.PubKey) {
			deleted++
		}
	}

	for _, addr := range req.Addresses {
		if !nips.AuthorizeAddressDeletion(req, addr) {
			continue
		}
		deleted += c.store.TombstoneAddress(addr.String(), req.CreatedAt)
	}

	logger.Debug("NIP-09: Deletion applied",
		zap.String("deletion_event_id", evt.ID),
		zap.Int("event_targets", len(req.EventIDs)),
		zap.Int("address_targets", len(req.Addresses)),
		zap.Int("deleted", deleted))
}

// publish queues one EVENT frame per matching subscription. Caller holds mu.
func (c *Core) publish(evt *nostr.Event) {
	deliveries := c.registry.Match(evt)
	if len(deliveries) == 0 {
		return
	}

	dropped := make(map[string]struct{})
	for _, d := range deliveries {
		if _, gone := dropped[d.Client.ID()]; gone {
			continue
		}
		if !d.Client.Send([][]byte{encodeEvent(d.SubID, evt)}) {
			c.dropSlowConsumer(d.Client)
			dropped[d.Client.ID()] = struct{}{}
			continue
		}
		metrics.EventsBroadcast.Inc()
	}
}

// dropSlowConsumer removes a client whose queue refused a frame. Caller holds mu.
func (c *Core) dropSlowConsumer(client domain.Client) {
	n := c.registry.DropClient(client)
	metrics.SlowConsumerDisconnects.Inc()
	logger.Warn("Disconnecting slow consumer",
		zap.String("client_id", client.ID()),
		zap.String("client", client.RemoteAddr()),
		zap.Int("subscriptions", n))
	client.Close()
}

// Subscribe installs subID and queues its stored events followed by EOSE
// as one batch, so no live event for subID can be queued ahead of EOSE.
func (c *Core) Subscribe(client domain.Client, subID string, filters []nostr.Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// No filters match nothing: answer EOSE without taking a slot. An
	// existing subscription under subID is replaced by the empty set.
	if len(filters) == 0 {
		removed := c.registry.Remove(client, subID)
		logger.Debug("Empty subscription answered with EOSE",
			zap.String("client_id", client.ID()),
			zap.String("sub_id", subID),
			zap.Bool("removed_existing", removed))
		if !client.Send([][]byte{encodeEOSE(subID)}) {
			c.dropSlowConsumer(client)
		}
		return nil
	}

	replaced, err := c.registry.Install(client, subID, filters)
	if err != nil {
		return err
	}

	events := c.store.Query(filters, c.maxLimit)
	batch := make([][]byte, 0, len(events)+1)
	for _, evt := range events {
		batch = append(batch, encodeEvent(subID, evt))
	}
	batch = append(batch, encodeEOSE(subID))

	logger.Debug("Subscription installed",
		zap.String("client_id", client.ID()),
		zap.String("sub_id", subID),
		zap.Bool("replaced", replaced),
		zap.Int("filters", len(filters)),
		zap.Int("stored_events", len(events)))

	if !client.Send(batch) {
		c.dropSlowConsumer(client)
	}
	return nil
}

// Unsubscribe removes subID from client.
func (c *Core) Unsubscribe(client domain.Client, subID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Remove(client, subID)
}

// Disconnect drops all of client's subscriptions.
func (c *Core) Disconnect(client domain.Client) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.DropClient(client)
}

// Purge removes expired events from the store.
func (c *Core) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Purge()
}

// Compact rebuilds the store's indexes and duplicate filter.
func (c *Core) Compact() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Compact()
}

// Stats reports the current store and registry sizes.
func (c *Core) Stats() CoreStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CoreStats{
		StoredEvents:  c.store.Len(),
		Tombstones:    c.store.TombstoneCount(),
		Subscriptions: c.registry.Total(),
	}
}

// HealthStats implements health.StoreInterface.
func (c *Core) HealthStats() health.StoreStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return health.StoreStats{
		StoredEvents:  c.store.Len(),
		MaxEvents:     c.store.Capacity(),
		Tombstones:    c.store.TombstoneCount(),
		Subscriptions: c.registry.Total(),
	}
}
