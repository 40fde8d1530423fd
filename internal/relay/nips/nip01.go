package nips

import (
	"strconv"

	nostr "github.com/nbd-wtf/go-nostr"
)

// NIP-01: Basic protocol flow
// https://github.com/nostr-protocol/nips/blob/master/01.md

// IsEphemeral reports whether kind is never stored.
func IsEphemeral(kind int) bool {
	return kind >= 20000 && kind < 30000
}

// IsReplaceable reports whether only the newest event per (pubkey, kind) is kept.
func IsReplaceable(kind int) bool {
	return kind == 0 || kind == 3 || (kind >= 10000 && kind < 20000)
}

// IsAddressable reports whether only the newest event per (pubkey, kind, d) is kept.
func IsAddressable(kind int) bool {
	return kind >= 30000 && kind < 40000
}

// GetTagValue returns the first t[1] found for the given key, or "" if not found
func GetTagValue(evt *nostr.Event, key string) string {
	for _, t := range evt.Tags {
		if len(t) >= 2 && t[0] == key {
			return t[1]
		}
	}
	return ""
}

// AddressKey formats the replacement key "kind:pubkey:d".
func AddressKey(kind int, pubkey, d string) string {
	return strconv.Itoa(kind) + ":" + pubkey + ":" + d
}

// ReplacementKey returns the key under which evt supersedes older versions,
// or "" for regular and ephemeral kinds.
func ReplacementKey(evt *nostr.Event) string {
	switch {
	case IsReplaceable(evt.Kind):
		return AddressKey(evt.Kind, evt.PubKey, "")
	case IsAddressable(evt.Kind):
		return AddressKey(evt.Kind, evt.PubKey, GetTagValue(evt, "d"))
	default:
		return ""
	}
}

// MatchesFilter reports whether evt satisfies every constrained field of f.
// Empty sets leave their field unconstrained.
func MatchesFilter(evt *nostr.Event, f *nostr.Filter) bool {
	if len(f.IDs) > 0 && !containsString(f.IDs, evt.ID) {
		return false
	}
	if len(f.Kinds) > 0 && !containsInt(f.Kinds, evt.Kind) {
		return false
	}
	if len(f.Authors) > 0 && !containsString(f.Authors, evt.PubKey) {
		return false
	}
	if f.Since != nil && evt.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && evt.CreatedAt > *f.Until {
		return false
	}
	for letter, values := range f.Tags {
		if len(values) > 0 && !hasTagValue(evt, letter, values) {
			return false
		}
	}
	return true
}

// MatchesAny reports whether evt matches at least one of filters.
func MatchesAny(evt *nostr.Event, filters []nostr.Filter) bool {
	for i := range filters {
		if MatchesFilter(evt, &filters[i]) {
			return true
		}
	}
	return false
}

func hasTagValue(evt *nostr.Event, letter string, values []string) bool {
	for _, t := range evt.Tags {
		if len(t) >= 2 && t[0] == letter && containsString(values, t[1]) {
			return true
		}
	}
	return false
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsInt(set []int, v int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
