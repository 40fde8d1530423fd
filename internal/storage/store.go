package storage

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Shugur-Network/edge-relay/internal/config"
	"github.com/Shugur-Network/edge-relay/internal/logger"
	"github.com/Shugur-Network/edge-relay/internal/metrics"
	"github.com/Shugur-Network/edge-relay/internal/relay/nips"
	"github.com/benbjohnson/clock"
	nostr "github.com/nbd-wtf/go-nostr"
	"github.com/willf/bloom"
	"go.uber.org/zap"
)

// PutOutcome says what Put did with an event.
type PutOutcome int

const (
	Stored     PutOutcome = iota // inserted
	Ephemeral                    // never stored, still broadcast
	Duplicate                    // already held
	Tombstoned                   // deleted earlier, silently dropped
	Superseded                   // an equal or newer replaceable version is held
)

func (o PutOutcome) String() string {
	switch o {
	case Stored:
		return "stored"
	case Ephemeral:
		return "ephemeral"
	case Duplicate:
		return "duplicate"
	case Tombstoned:
		return "tombstoned"
	case Superseded:
		return "superseded"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ErrNilEvent is returned when Put is handed nothing.
var ErrNilEvent = errors.New("nil event")

// Options bound the store.
type Options struct {
	MaxEvents     int
	MaxTombstones int
	Retention     time.Duration
	BloomFPRate   float64
}

// OptionsFromConfig maps the storage section onto Options.
func OptionsFromConfig(cfg config.StorageConfig) Options {
	return Options{
		MaxEvents:     cfg.MaxEvents,
		MaxTombstones: cfg.MaxTombstones,
		Retention:     cfg.Retention,
		BloomFPRate:   cfg.BloomFPRate,
	}
}

type entry struct {
	evt       *nostr.Event
	expiresAt nostr.Timestamp
	replKey   string
}

// Store is a bounded in-memory event set with kind, author and tag indexes.
// It is not safe for concurrent use; the relay core serializes access.
type Store struct {
	clock clock.Clock
	opts  Options

	events    map[string]*entry
	byKind    map[int]map[string]*entry
	byAuthor  map[string]map[string]*entry
	byTag     map[string]map[string]*entry // "letter:value"
	byAddress map[string]*entry
	ordered   []*entry // oldest first

	seen       *bloom.BloomFilter
	tombstones *Tombstones
}

// New creates an empty store.
func New(clk clock.Clock, opts Options) (*Store, error) {
	if clk == nil {
		clk = clock.New()
	}
	if opts.MaxEvents <= 0 {
		return nil, fmt.Errorf("max events must be positive, got %d", opts.MaxEvents)
	}
	if opts.BloomFPRate <= 0 || opts.BloomFPRate >= 1 {
		opts.BloomFPRate = 0.01
	}
	tombstones, err := NewTombstones(opts.MaxTombstones)
	if err != nil {
		return nil, err
	}

	s := &Store{
		clock:      clk,
		opts:       opts,
		seen:       bloom.NewWithEstimates(bloomCapacity(opts.MaxEvents), opts.BloomFPRate),
		tombstones: tombstones,
	}
	s.resetIndexes(opts.MaxEvents)
	return s, nil
}

// NewFromConfig creates a store sized by the storage section.
func NewFromConfig(clk clock.Clock, cfg config.StorageConfig) (*Store, error) {
	return New(clk, OptionsFromConfig(cfg))
}

func bloomCapacity(maxEvents int) uint {
	// ids accumulate between compactions
	return uint(max(maxEvents*4, 1024))
}

func (s *Store) resetIndexes(capacity int) {
	s.events = make(map[string]*entry, capacity)
	s.byKind = make(map[int]map[string]*entry)
	s.byAuthor = make(map[string]map[string]*entry)
	s.byTag = make(map[string]map[string]*entry)
	s.byAddress = make(map[string]*entry)
	s.ordered = make([]*entry, 0, capacity)
}

func (s *Store) now() nostr.Timestamp {
	return nostr.Timestamp(s.clock.Now().Unix())
}

// Put routes evt into the store and reports the outcome.
func (s *Store) Put(evt *nostr.Event) (PutOutcome, error) {
	if evt == nil {
		return 0, ErrNilEvent
	}
	if nips.IsEphemeral(evt.Kind) {
		return Ephemeral, nil
	}
	if s.IsTombstoned(evt) {
		return Tombstoned, nil
	}
	if s.seen.Test([]byte(evt.ID)) {
		if _, held := s.events[evt.ID]; held {
			return Duplicate, nil
		}
	}

	replKey := nips.ReplacementKey(evt)
	if replKey != "" {
		if current, ok := s.byAddress[replKey]; ok {
			if !newer(evt, current.evt) {
				return Superseded, nil
			}
			s.remove(current)
			metrics.StorageOperations.WithLabelValues("replaced").Inc()
		}
	}

	e := &entry{evt: evt, expiresAt: s.expiry(evt), replKey: replKey}
	s.insert(e)
	s.seen.AddString(evt.ID)
	metrics.StorageOperations.WithLabelValues("stored").Inc()

	for len(s.ordered) > s.opts.MaxEvents {
		oldest := s.ordered[0]
		s.remove(oldest)
		metrics.StorageOperations.WithLabelValues("evicted").Inc()
		logger.Debug("Evicted oldest event",
			zap.String("event_id", oldest.evt.ID),
			zap.Int64("created_at", int64(oldest.evt.CreatedAt)))
	}
	metrics.StoredEvents.Set(float64(len(s.events)))
	return Stored, nil
}

// expiry is the earlier of created_at plus retention and the expiration tag.
func (s *Store) expiry(evt *nostr.Event) nostr.Timestamp {
	exp := evt.CreatedAt + nostr.Timestamp(s.opts.Retention/time.Second)
	if s.opts.Retention <= 0 {
		exp = nostr.Timestamp(1<<62 - 1)
	}
	if tagExp, ok, err := nips.GetExpiration(evt); ok && err == nil && tagExp < exp {
		exp = tagExp
	}
	return exp
}

// Get returns the held event with id.
func (s *Store) Get(id string) (*nostr.Event, bool) {
	e, ok := s.events[id]
	if !ok {
		return nil, false
	}
	return e.evt, true
}

// Delete drops id without leaving a tombstone.
func (s *Store) Delete(id string) bool {
	e, ok := s.events[id]
	if !ok {
		return false
	}
	s.remove(e)
	metrics.StoredEvents.Set(float64(len(s.events)))
	return true
}

// TombstoneEvent removes id and keeps it from being accepted again.
func (s *Store) TombstoneEvent(id, pubkey string) bool {
	s.tombstones.AddID(id, pubkey, s.now())
	metrics.Tombstones.Set(float64(s.tombstones.Len()))
	if !s.Delete(id) {
		return false
	}
	metrics.StorageOperations.WithLabelValues("deleted").Inc()
	return true
}

// TombstoneAddress removes the held version at key if created at or before
// cutoff and rejects future versions up to cutoff. It returns the number of
// events removed.
func (s *Store) TombstoneAddress(key string, cutoff nostr.Timestamp) int {
	s.tombstones.AddAddress(key, cutoff)
	metrics.Tombstones.Set(float64(s.tombstones.Len()))

	current, ok := s.byAddress[key]
	if !ok || current.evt.CreatedAt > cutoff {
		return 0
	}
	s.remove(current)
	metrics.StoredEvents.Set(float64(len(s.events)))
	metrics.StorageOperations.WithLabelValues("deleted").Inc()
	return 1
}

// IsTombstoned reports whether evt was deleted by id or by address.
func (s *Store) IsTombstoned(evt *nostr.Event) bool {
	if s.tombstones.HasID(evt.ID) {
		return true
	}
	if key := nips.ReplacementKey(evt); key != "" {
		if cutoff, ok := s.tombstones.AddressCutoff(key); ok && evt.CreatedAt <= cutoff {
			return true
		}
	}
	return false
}

// Len returns the number of held events.
func (s *Store) Len() int {
	return len(s.events)
}

// Capacity returns the configured event bound.
func (s *Store) Capacity() int {
	return s.opts.MaxEvents
}

// TombstoneCount returns the number of held tombstones.
func (s *Store) TombstoneCount() int {
	return s.tombstones.Len()
}

func (s *Store) insert(e *entry) {
	evt := e.evt
	s.events[evt.ID] = e
	addIndex(s.byKind, evt.Kind, e)
	addIndex(s.byAuthor, evt.PubKey, e)
	for _, key := range tagKeys(evt) {
		addIndex(s.byTag, key, e)
	}
	if e.replKey != "" {
		s.byAddress[e.replKey] = e
	}

	i, _ := slices.BinarySearchFunc(s.ordered, e, compareAge)
	s.ordered = slices.Insert(s.ordered, i, e)
}

func (s *Store) remove(e *entry) {
	evt := e.evt
	delete(s.events, evt.ID)
	removeIndex(s.byKind, evt.Kind, evt.ID)
	removeIndex(s.byAuthor, evt.PubKey, evt.ID)
	for _, key := range tagKeys(evt) {
		removeIndex(s.byTag, key, evt.ID)
	}
	if e.replKey != "" && s.byAddress[e.replKey] == e {
		delete(s.byAddress, e.replKey)
	}

	if i, found := slices.BinarySearchFunc(s.ordered, e, compareAge); found {
		s.ordered = slices.Delete(s.ordered, i, i+1)
	}
}

// tagKeys lists the "letter:value" index keys of evt's single-letter tags.
func tagKeys(evt *nostr.Event) []string {
	var keys []string
	for _, t := range evt.Tags {
		if len(t) >= 2 && len(t[0]) == 1 {
			keys = append(keys, tagKey(t[0], t[1]))
		}
	}
	return keys
}

func tagKey(letter, value string) string {
	return letter + ":" + value
}

func addIndex[K comparable](idx map[K]map[string]*entry, key K, e *entry) {
	set, ok := idx[key]
	if !ok {
		set = make(map[string]*entry)
		idx[key] = set
	}
	set[e.evt.ID] = e
}

func removeIndex[K comparable](idx map[K]map[string]*entry, key K, id string) {
	set, ok := idx[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(idx, key)
	}
}

// newer reports whether a sorts before b in newest-first order: later
// created_at, then lower id.
func newer(a, b *nostr.Event) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt > b.CreatedAt
	}
	return a.ID < b.ID
}

// compareAge orders entries oldest first, the exact reverse of newer.
func compareAge(a, b *entry) int {
	if a.evt.CreatedAt != b.evt.CreatedAt {
		if a.evt.CreatedAt < b.evt.CreatedAt {
			return -1
		}
		return 1
	}
	return -strings.Compare(a.evt.ID, b.evt.ID)
}
