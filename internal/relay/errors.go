package relay

import (
	"strings"

	"github.com/Shugur-Network/edge-relay/internal/errors"
)

// Client-facing rejections. Message is the exact reason string sent in OK,
// CLOSED or NOTICE frames.
var (
	// Admission
	ErrBadEventID        = errors.Reject(errors.ErrorTypeValidation, "BAD_EVENT_ID", "invalid: bad event id")
	ErrBadSignature      = errors.Reject(errors.ErrorTypeValidation, "BAD_SIGNATURE", "invalid: bad signature")
	ErrEventFromFuture   = errors.Reject(errors.ErrorTypeValidation, "FUTURE", "invalid: event too far in future")
	ErrEventTooOld       = errors.Reject(errors.ErrorTypeValidation, "TOO_OLD", "invalid: event too old")
	ErrEventExpired      = errors.Reject(errors.ErrorTypeValidation, "EXPIRED", "invalid: event expired")
	ErrBadExpiration     = errors.Reject(errors.ErrorTypeValidation, "BAD_EXPIRATION", "invalid: malformed expiration tag")
	ErrBadKind           = errors.Reject(errors.ErrorTypeValidation, "BAD_KIND", "invalid: kind out of range")
	ErrEmptyTag          = errors.Reject(errors.ErrorTypeValidation, "EMPTY_TAG", "invalid: empty tag")
	ErrContentTooLarge   = errors.Reject(errors.ErrorTypeValidation, "CONTENT_TOO_LARGE", "invalid: content too long")
	ErrTooManyTags       = errors.Reject(errors.ErrorTypeValidation, "TOO_MANY_TAGS", "invalid: too many tags")
	ErrBadPubkey         = errors.Reject(errors.ErrorTypeValidation, "BAD_PUBKEY", "invalid: bad pubkey")
	ErrInsufficientPoW   = errors.Reject(errors.ErrorTypePolicy, "POW", "pow: insufficient proof of work")
	ErrPubkeyBlacklisted = errors.Reject(errors.ErrorTypeAuthorization, "BLACKLISTED", "blocked: pubkey is not allowed")
	ErrCouldNotSave      = errors.Reject(errors.ErrorTypeStorage, "SAVE_FAILED", "error: could not save event")

	// Limits
	ErrEventRateLimited     = errors.Reject(errors.ErrorTypeRateLimit, "EVENT_RATE", "rate-limited: too many events")
	ErrReqRateLimited       = errors.Reject(errors.ErrorTypeRateLimit, "REQ_RATE", "rate-limited: too many requests")
	ErrFrameRateLimited     = errors.Reject(errors.ErrorTypeRateLimit, "FRAME_RATE", "rate-limited: slow down")
	ErrTooManySubscriptions = errors.Reject(errors.ErrorTypePolicy, "TOO_MANY_SUBS", "error: too many subscriptions")
	ErrInvalidSubID         = errors.Reject(errors.ErrorTypeValidation, "BAD_SUB_ID", "error: invalid subscription id")
	ErrTooManyFilters       = errors.Reject(errors.ErrorTypePolicy, "TOO_MANY_FILTERS", "error: too many filters")
	ErrInvalidFilter        = errors.Reject(errors.ErrorTypeValidation, "BAD_FILTER", "invalid: malformed filter")
	ErrCountUnsupported     = errors.Reject(errors.ErrorTypePolicy, "COUNT", "unsupported: COUNT not implemented")

	// Framing
	ErrInvalidMessage  = errors.Reject(errors.ErrorTypeValidation, "BAD_FRAME", "invalid message format")
	ErrUnknownMessage  = errors.Reject(errors.ErrorTypeValidation, "UNKNOWN_FRAME", "unknown message type")
	ErrAuthUnsupported = errors.Reject(errors.ErrorTypePolicy, "AUTH", "AUTH not implemented")
	ErrInternal        = errors.Reject(errors.ErrorTypeInternal, "INTERNAL", "error: internal error")
)

// Reason returns the wire reason for err. Errors that are not rejections
// collapse to the internal error reason.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := errors.As(err); ok && appErr.Severity == errors.SeverityLow {
		return appErr.Message
	}
	return ErrInternal.Message
}

// reasonClass is the machine-readable prefix of a reason, e.g. "invalid".
func reasonClass(reason string) string {
	if i := strings.IndexByte(reason, ':'); i > 0 {
		return reason[:i]
	}
	return reason
}
