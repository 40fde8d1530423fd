package relay

import (
	"encoding/json"
	"fmt"

	nostr "github.com/nbd-wtf/go-nostr"
)

// Frame is one parsed client message.
type Frame interface {
	Label() string
}

// EventFrame is ["EVENT", <event>].
type EventFrame struct {
	Event *nostr.Event
}

// ReqFrame is ["REQ", <sub_id>, <filter>...].
type ReqFrame struct {
	SubID   string
	Filters []nostr.Filter
}

// CloseFrame is ["CLOSE", <sub_id>].
type CloseFrame struct {
	SubID string
}

// AuthFrame is any ["AUTH", ...] message.
type AuthFrame struct{}

// CountFrame is ["COUNT", <sub_id>, ...].
type CountFrame struct {
	SubID string
}

func (EventFrame) Label() string { return "EVENT" }
func (ReqFrame) Label() string   { return "REQ" }
func (CloseFrame) Label() string { return "CLOSE" }
func (AuthFrame) Label() string  { return "AUTH" }
func (CountFrame) Label() string { return "COUNT" }

// FilterError reports a REQ whose sub id decoded but one of its filters
// did not. It unwraps to ErrInvalidFilter.
type FilterError struct {
	SubID string
	Cause error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("REQ %q: %v", e.SubID, e.Cause)
}

func (e *FilterError) Unwrap() error {
	return ErrInvalidFilter
}

// ParseFrame decodes raw into a Frame. Shape violations return
// ErrInvalidMessage, an unknown first element ErrUnknownMessage and a bad
// REQ filter a *FilterError.
func ParseFrame(raw []byte) (Frame, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) == 0 {
		return nil, ErrInvalidMessage
	}

	var label string
	if err := json.Unmarshal(arr[0], &label); err != nil {
		return nil, ErrInvalidMessage
	}

	switch label {
	case "EVENT":
		if len(arr) != 2 || !isJSONObject(arr[1]) {
			return nil, ErrInvalidMessage
		}
		var evt nostr.Event
		if err := json.Unmarshal(arr[1], &evt); err != nil {
			return nil, ErrInvalidMessage
		}
		return EventFrame{Event: &evt}, nil

	case "REQ":
		if len(arr) < 2 {
			return nil, ErrInvalidMessage
		}
		subID, ok := parseSubID(arr[1])
		if !ok {
			return nil, ErrInvalidMessage
		}
		filters := make([]nostr.Filter, 0, len(arr)-2)
		for _, rawFilter := range arr[2:] {
			f, err := parseFilter(rawFilter)
			if err != nil {
				return nil, &FilterError{SubID: subID, Cause: err}
			}
			filters = append(filters, f)
		}
		return ReqFrame{SubID: subID, Filters: filters}, nil

	case "CLOSE":
		if len(arr) != 2 {
			return nil, ErrInvalidMessage
		}
		subID, ok := parseSubID(arr[1])
		if !ok {
			return nil, ErrInvalidMessage
		}
		return CloseFrame{SubID: subID}, nil

	case "AUTH":
		return AuthFrame{}, nil

	case "COUNT":
		if len(arr) < 2 {
			return nil, ErrInvalidMessage
		}
		subID, ok := parseSubID(arr[1])
		if !ok {
			return nil, ErrInvalidMessage
		}
		return CountFrame{SubID: subID}, nil

	default:
		return nil, ErrUnknownMessage
	}
}

func parseSubID(raw json.RawMessage) (string, bool) {
	var subID string
	if err := json.Unmarshal(raw, &subID); err != nil {
		return "", false
	}
	return subID, true
}

// encode marshals a top-level array like ["NOTICE", "xyz"].
func encode(label string, args ...interface{}) []byte {
	data := append([]interface{}{label}, args...)
	raw, err := json.Marshal(data)
	if err != nil {
		// Only reachable with an unencodable event; drop the frame.
		return nil
	}
	return raw
}

func encodeOK(eventID string, accepted bool, reason string) []byte {
	return encode("OK", eventID, accepted, reason)
}

func encodeNotice(message string) []byte {
	return encode("NOTICE", message)
}

func encodeClosed(subID, reason string) []byte {
	return encode("CLOSED", subID, reason)
}

func encodeEOSE(subID string) []byte {
	return encode("EOSE", subID)
}

func encodeEvent(subID string, evt *nostr.Event) []byte {
	return encode("EVENT", subID, evt)
}
