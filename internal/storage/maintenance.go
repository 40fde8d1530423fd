package storage

import (
	"github.com/Shugur-Network/edge-relay/internal/logger"
	"github.com/Shugur-Network/edge-relay/internal/metrics"
	"github.com/willf/bloom"
	"go.uber.org/zap"
)

// Purge removes every event whose retention or expiration has passed and
// returns how many were dropped.
func (s *Store) Purge() int {
	now := s.now()
	var expired []*entry
	for _, e := range s.ordered {
		if e.expiresAt <= now {
			expired = append(expired, e)
		}
	}
	for _, e := range expired {
		s.remove(e)
	}

	if len(expired) > 0 {
		metrics.StorageOperations.WithLabelValues("purged").Add(float64(len(expired)))
		metrics.StoredEvents.Set(float64(len(s.events)))
		logger.Debug("Purged expired events", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Compact rebuilds the bloom filter from the held ids and reallocates the
// indexes so memory from deleted entries is released.
func (s *Store) Compact() {
	held := s.ordered
	seen := bloom.NewWithEstimates(bloomCapacity(s.opts.MaxEvents), s.opts.BloomFPRate)

	s.resetIndexes(max(len(held), 16))
	for _, e := range held {
		s.insert(e)
		seen.AddString(e.evt.ID)
	}
	s.seen = seen

	metrics.StorageOperations.WithLabelValues("compacted").Inc()
	logger.Debug("Compacted event store",
		zap.Int("events", len(s.events)),
		zap.Int("tombstones", s.tombstones.Len()))
}
