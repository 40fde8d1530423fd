package nips

import (
	"fmt"
	"strconv"

	nostr "github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip13"
)

// NIP-13: Proof of Work
// https://github.com/nostr-protocol/nips/blob/master/13.md

// GetNonceCommitment extracts the committed target difficulty from a nonce tag.
// Nonce tag format: ["nonce", "<counter>", "<target_difficulty>"]
func GetNonceCommitment(evt *nostr.Event) (int, bool) {
	for _, tag := range evt.Tags {
		if len(tag) >= 3 && tag[0] == "nonce" {
			target, err := strconv.Atoi(tag[2])
			if err == nil && target > 0 {
				return target, true
			}
		}
	}
	return 0, false
}

// ValidatePoW checks the leading zero bits of the event id against
// minDifficulty. A committed nonce target must also be met. With
// minDifficulty 0 and no commitment every event passes.
func ValidatePoW(evt *nostr.Event, minDifficulty int) error {
	committed, hasCommitment := GetNonceCommitment(evt)
	if minDifficulty <= 0 && !hasCommitment {
		return nil
	}

	actual := nip13.Difficulty(evt.ID)
	if minDifficulty > 0 && actual < minDifficulty {
		return fmt.Errorf("difficulty %d is below relay minimum %d", actual, minDifficulty)
	}
	if hasCommitment && actual < committed {
		return fmt.Errorf("difficulty %d does not meet committed target %d", actual, committed)
	}
	return nil
}
