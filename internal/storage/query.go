package storage

import (
	"slices"

	"github.com/Shugur-Network/edge-relay/internal/relay/nips"
	nostr "github.com/nbd-wtf/go-nostr"
)

// Query returns the union of events matching any of filters, newest first,
// without duplicates. Each filter contributes at most min(limit, maxLimit)
// events; a filter without a limit contributes maxLimit and one with an
// explicit limit of 0 contributes nothing. Expired events are skipped.
func (s *Store) Query(filters []nostr.Filter, maxLimit int) []*nostr.Event {
	now := s.now()
	seen := make(map[string]struct{})
	var out []*nostr.Event

	for i := range filters {
		f := &filters[i]
		limit := effectiveLimit(f, maxLimit)
		if limit == 0 {
			continue
		}
		for _, evt := range s.queryFilter(f, limit, now) {
			if _, dup := seen[evt.ID]; dup {
				continue
			}
			seen[evt.ID] = struct{}{}
			out = append(out, evt)
		}
	}

	if len(filters) > 1 {
		slices.SortFunc(out, compareNewest)
	}
	return out
}

func effectiveLimit(f *nostr.Filter, maxLimit int) int {
	if f.LimitZero {
		return 0
	}
	if f.Limit > 0 && f.Limit < maxLimit {
		return f.Limit
	}
	return maxLimit
}

func (s *Store) queryFilter(f *nostr.Filter, limit int, now nostr.Timestamp) []*nostr.Event {
	candidates, indexed := s.candidates(f)
	if !indexed {
		return s.scan(f, limit, now)
	}

	matched := make([]*nostr.Event, 0, min(len(candidates), limit))
	for _, e := range candidates {
		if e.expiresAt > now && nips.MatchesFilter(e.evt, f) {
			matched = append(matched, e.evt)
		}
	}
	slices.SortFunc(matched, compareNewest)
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

// scan walks the age-ordered slice from the newest event down.
func (s *Store) scan(f *nostr.Filter, limit int, now nostr.Timestamp) []*nostr.Event {
	var out []*nostr.Event
	for i := len(s.ordered) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.ordered[i]
		if f.Since != nil && e.evt.CreatedAt < *f.Since {
			break
		}
		if e.expiresAt > now && nips.MatchesFilter(e.evt, f) {
			out = append(out, e.evt)
		}
	}
	return out
}

// candidates picks the smallest index bucket that covers f. indexed is false
// when f constrains nothing an index can answer.
func (s *Store) candidates(f *nostr.Filter) (set []*entry, indexed bool) {
	var best []*entry
	found := false
	consider := func(c []*entry) {
		if !found || len(c) < len(best) {
			best, found = c, true
		}
	}

	if len(f.IDs) > 0 {
		c := make([]*entry, 0, len(f.IDs))
		for _, id := range f.IDs {
			if e, ok := s.events[id]; ok {
				c = append(c, e)
			}
		}
		consider(c)
	}
	if len(f.Authors) > 0 {
		consider(collect(s.byAuthor, f.Authors))
	}
	if len(f.Kinds) > 0 {
		consider(collect(s.byKind, f.Kinds))
	}
	for letter, values := range f.Tags {
		if len(values) == 0 || len(letter) != 1 {
			continue
		}
		keys := make([]string, len(values))
		for i, v := range values {
			keys[i] = tagKey(letter, v)
		}
		consider(collect(s.byTag, keys))
	}
	return best, found
}

func collect[K comparable](idx map[K]map[string]*entry, keys []K) []*entry {
	var out []*entry
	seen := make(map[string]struct{})
	for _, k := range keys {
		for id, e := range idx[k] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

func compareNewest(a, b *nostr.Event) int {
	switch {
	case newer(a, b):
		return -1
	case newer(b, a):
		return 1
	default:
		return 0
	}
}
