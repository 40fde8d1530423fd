package domain

import (
	nostr "github.com/nbd-wtf/go-nostr"
)

// EventValidator decides whether an inbound event may be admitted. The
// returned error carries the client-facing reason.
type EventValidator interface {
	Validate(evt *nostr.Event) error
}
