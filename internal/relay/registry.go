package relay

import (
	"github.com/Shugur-Network/edge-relay/internal/domain"
	"github.com/Shugur-Network/edge-relay/internal/metrics"
	"github.com/Shugur-Network/edge-relay/internal/relay/nips"
	nostr "github.com/nbd-wtf/go-nostr"
)

// Subscription is a connection-scoped standing query.
type Subscription struct {
	ID      string
	Filters []nostr.Filter
	Client  domain.Client
}

// Delivery is one EVENT frame owed to a subscription.
type Delivery struct {
	Client domain.Client
	SubID  string
}

type clientSubs struct {
	client domain.Client
	subs   map[string]*Subscription
}

// Registry tracks live subscriptions per client. It is not safe for
// concurrent use; Core serializes access.
type Registry struct {
	maxPerClient int
	clients      map[string]*clientSubs
	total        int
}

// NewRegistry creates a registry allowing maxPerClient subscriptions per client.
func NewRegistry(maxPerClient int) *Registry {
	return &Registry{
		maxPerClient: maxPerClient,
		clients:      make(map[string]*clientSubs),
	}
}

// Install creates or replaces subID for c. Replacing keeps the slot and
// reports replaced=true; a new subscription over the limit returns
// ErrTooManySubscriptions and changes nothing.
func (r *Registry) Install(c domain.Client, subID string, filters []nostr.Filter) (replaced bool, err error) {
	cs, ok := r.clients[c.ID()]
	if ok {
		if sub, exists := cs.subs[subID]; exists {
			sub.Filters = filters
			return true, nil
		}
		if len(cs.subs) >= r.maxPerClient {
			return false, ErrTooManySubscriptions
		}
	} else {
		if r.maxPerClient <= 0 {
			return false, ErrTooManySubscriptions
		}
		cs = &clientSubs{client: c, subs: make(map[string]*Subscription)}
		r.clients[c.ID()] = cs
	}

	cs.subs[subID] = &Subscription{ID: subID, Filters: filters, Client: c}
	r.total++
	metrics.ActiveSubscriptions.Inc()
	return false, nil
}

// Remove deletes subID for c. Removing an absent id is not an error.
func (r *Registry) Remove(c domain.Client, subID string) bool {
	cs, ok := r.clients[c.ID()]
	if !ok {
		return false
	}
	if _, exists := cs.subs[subID]; !exists {
		return false
	}
	delete(cs.subs, subID)
	if len(cs.subs) == 0 {
		delete(r.clients, c.ID())
	}
	r.total--
	metrics.ActiveSubscriptions.Dec()
	return true
}

// DropClient removes every subscription of c and returns how many there were.
func (r *Registry) DropClient(c domain.Client) int {
	cs, ok := r.clients[c.ID()]
	if !ok {
		return 0
	}
	n := len(cs.subs)
	delete(r.clients, c.ID())
	r.total -= n
	metrics.ActiveSubscriptions.Sub(float64(n))
	return n
}

// Match returns one delivery per subscription with a filter matching evt.
func (r *Registry) Match(evt *nostr.Event) []Delivery {
	var out []Delivery
	for _, cs := range r.clients {
		for _, sub := range cs.subs {
			if nips.MatchesAny(evt, sub.Filters) {
				out = append(out, Delivery{Client: cs.client, SubID: sub.ID})
			}
		}
	}
	return out
}

// Count returns the number of subscriptions held by c.
func (r *Registry) Count(c domain.Client) int {
	if cs, ok := r.clients[c.ID()]; ok {
		return len(cs.subs)
	}
	return 0
}

// Total returns the number of subscriptions across all clients.
func (r *Registry) Total() int {
	return r.total
}
