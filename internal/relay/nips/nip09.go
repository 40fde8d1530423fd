package nips

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Shugur-Network/edge-relay/internal/logger"
	nostr "github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"
)

// NIP-09: Event Deletion
// https://github.com/nostr-protocol/nips/blob/master/09.md

// KindDeletion is the deletion request kind.
const KindDeletion = 5

// Address identifies an addressable or replaceable event by "kind:pubkey:d".
type Address struct {
	Kind   int
	PubKey string
	D      string
}

// String formats the address the way it appears in an "a" tag.
func (a Address) String() string {
	return AddressKey(a.Kind, a.PubKey, a.D)
}

// ParseAddress parses an "a" tag value. The d part may be empty or contain ':'.
func ParseAddress(value string) (Address, error) {
	parts := strings.SplitN(value, ":", 3)
	if len(parts) < 2 {
		return Address{}, fmt.Errorf("address %q: want kind:pubkey:d", value)
	}
	kind, err := strconv.Atoi(parts[0])
	if err != nil || kind < 0 {
		return Address{}, fmt.Errorf("address %q: bad kind", value)
	}
	if len(parts[1]) != 64 {
		return Address{}, fmt.Errorf("address %q: bad pubkey", value)
	}
	addr := Address{Kind: kind, PubKey: parts[1]}
	if len(parts) == 3 {
		addr.D = parts[2]
	}
	return addr, nil
}

// DeletionRequest is the parsed target list of a kind-5 event.
type DeletionRequest struct {
	PubKey    string
	CreatedAt nostr.Timestamp
	EventIDs  []string
	Addresses []Address
	Kinds     []int // "k" hints; empty means any kind
}

// IsDeletionEvent reports whether evt is a NIP-09 deletion request.
func IsDeletionEvent(evt *nostr.Event) bool {
	return evt.Kind == KindDeletion
}

// ParseDeletionRequest collects the e, a and k targets of evt.
// Malformed entries are skipped.
func ParseDeletionRequest(evt *nostr.Event) DeletionRequest {
	req := DeletionRequest{PubKey: evt.PubKey, CreatedAt: evt.CreatedAt}
	for _, t := range evt.Tags {
		if len(t) < 2 {
			continue
		}
		switch t[0] {
		case "e":
			if len(t[1]) == 64 {
				req.EventIDs = append(req.EventIDs, t[1])
			}
		case "a":
			addr, err := ParseAddress(t[1])
			if err != nil {
				logger.Debug("NIP-09: Skipping malformed address",
					zap.String("deletion_event_id", evt.ID),
					zap.Error(err))
				continue
			}
			req.Addresses = append(req.Addresses, addr)
		case "k":
			if kind, err := strconv.Atoi(t[1]); err == nil {
				req.Kinds = append(req.Kinds, kind)
			}
		}
	}
	return req
}

// AuthorizeDeletion decides whether req may delete target. Only the author
// may delete, deletion requests themselves are never deleted, and when k hints
// are present the target's kind has to be among them.
func AuthorizeDeletion(req DeletionRequest, target *nostr.Event) bool {
	if target == nil || target.PubKey != req.PubKey {
		return false
	}
	if target.Kind == KindDeletion {
		return false
	}
	if len(req.Kinds) > 0 && !containsInt(req.Kinds, target.Kind) {
		return false
	}
	return true
}

// AuthorizeAddressDeletion decides whether req may tombstone addr.
func AuthorizeAddressDeletion(req DeletionRequest, addr Address) bool {
	return addr.PubKey == req.PubKey
}
