package nips

import (
	"errors"
	"strconv"

	nostr "github.com/nbd-wtf/go-nostr"
)

// NIP-40: Expiration Timestamp
// https://github.com/nostr-protocol/nips/blob/master/40.md

// ErrMalformedExpiration is returned for an expiration tag that is not a unix time.
var ErrMalformedExpiration = errors.New("malformed expiration tag")

// GetExpiration returns the first expiration tag of evt. ok is false when
// the event carries none.
func GetExpiration(evt *nostr.Event) (ts nostr.Timestamp, ok bool, err error) {
	for _, t := range evt.Tags {
		if len(t) >= 2 && t[0] == "expiration" {
			v, perr := strconv.ParseInt(t[1], 10, 64)
			if perr != nil || v < 0 {
				return 0, true, ErrMalformedExpiration
			}
			return nostr.Timestamp(v), true, nil
		}
	}
	return 0, false, nil
}
