package relay

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Shugur-Network/edge-relay/internal/config"
	nostr "github.com/nbd-wtf/go-nostr"
)

// parseFilter decodes one REQ filter object. Any "#x" keys are merged into
// Filter.Tags and an explicit "limit":0 sets LimitZero.
func parseFilter(raw json.RawMessage) (nostr.Filter, error) {
	var f nostr.Filter
	if !isJSONObject(raw) {
		return f, fmt.Errorf("filter must be an object")
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("failed to decode filter: %w", err)
	}

	var partial map[string]json.RawMessage
	if err := json.Unmarshal(raw, &partial); err != nil {
		return f, fmt.Errorf("failed to decode partial: %w", err)
	}

	for k, v := range partial {
		switch {
		case k == "limit":
			var limit int
			if err := json.Unmarshal(v, &limit); err != nil || limit < 0 {
				return f, fmt.Errorf("bad limit")
			}
			f.Limit = limit
			f.LimitZero = limit == 0
		case len(k) > 1 && k[0] == '#':
			var values []string
			if err := json.Unmarshal(v, &values); err != nil {
				return f, fmt.Errorf("tag filter %s: %w", k, err)
			}
			if f.Tags == nil {
				f.Tags = make(nostr.TagMap)
			}
			f.Tags[k[1:]] = values
		}
	}
	return f, nil
}

// ValidateSubscription applies the REQ policy: sub id length and filter count.
func ValidateSubscription(subID string, filters []nostr.Filter, policy config.PolicyConfig) error {
	if subID == "" || len(subID) > policy.MaxSubIDLength {
		return ErrInvalidSubID
	}
	if len(filters) > policy.MaxFilters {
		return ErrTooManyFilters
	}
	return nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
