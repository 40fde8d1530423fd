package storage

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	nostr "github.com/nbd-wtf/go-nostr"
)

// Tombstone records who deleted an event id and when.
type Tombstone struct {
	PubKey    string
	DeletedAt nostr.Timestamp
}

// Tombstones holds bounded id and address tombstones. The least recently
// touched marker is forgotten first once a set is full.
type Tombstones struct {
	ids       *lru.Cache[string, Tombstone]
	addresses *lru.Cache[string, nostr.Timestamp]
}

// NewTombstones creates both sets, each bounded to size entries.
func NewTombstones(size int) (*Tombstones, error) {
	ids, err := lru.New[string, Tombstone](size)
	if err != nil {
		return nil, fmt.Errorf("id tombstones: %w", err)
	}
	addresses, err := lru.New[string, nostr.Timestamp](size)
	if err != nil {
		return nil, fmt.Errorf("address tombstones: %w", err)
	}
	return &Tombstones{ids: ids, addresses: addresses}, nil
}

// AddID marks id as deleted by pubkey.
func (t *Tombstones) AddID(id, pubkey string, at nostr.Timestamp) {
	t.ids.Add(id, Tombstone{PubKey: pubkey, DeletedAt: at})
}

// HasID reports whether id was deleted.
func (t *Tombstones) HasID(id string) bool {
	return t.ids.Contains(id)
}

// AddAddress records that events at key created at or before cutoff are
// deleted. An existing later cutoff is kept.
func (t *Tombstones) AddAddress(key string, cutoff nostr.Timestamp) {
	if prev, ok := t.addresses.Peek(key); ok && prev >= cutoff {
		t.addresses.Get(key)
		return
	}
	t.addresses.Add(key, cutoff)
}

// AddressCutoff returns the deletion cutoff recorded for key.
func (t *Tombstones) AddressCutoff(key string) (nostr.Timestamp, bool) {
	return t.addresses.Peek(key)
}

// Len returns the number of markers held across both sets.
func (t *Tombstones) Len() int {
	return t.ids.Len() + t.addresses.Len()
}
