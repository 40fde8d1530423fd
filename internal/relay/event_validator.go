package relay

import (
	"fmt"
	"strings"
	"time"

	"github.com/Shugur-Network/edge-relay/internal/config"
	"github.com/Shugur-Network/edge-relay/internal/domain"
	"github.com/Shugur-Network/edge-relay/internal/logger"
	"github.com/Shugur-Network/edge-relay/internal/relay/nips"
	"github.com/benbjohnson/clock"
	nostr "github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"
)

// ValidationLimits holds the admission bounds applied to every event.
type ValidationLimits struct {
	MaxFuture        time.Duration
	MaxAge           time.Duration
	MaxContentLength int
	MaxEventTags     int
	MinPowDifficulty int
}

// EventValidator runs admission checks in a fixed order; the first failure wins.
type EventValidator struct {
	clock     clock.Clock
	limits    ValidationLimits
	blacklist map[string]struct{}
}

// Ensure EventValidator implements domain.EventValidator
var _ domain.EventValidator = (*EventValidator)(nil)

// NewEventValidator builds a validator from the policy section.
func NewEventValidator(clk clock.Clock, policy config.PolicyConfig) *EventValidator {
	if clk == nil {
		clk = clock.New()
	}
	blacklist := make(map[string]struct{}, len(policy.Blacklist.PubKeys))
	for _, pk := range policy.Blacklist.PubKeys {
		blacklist[strings.ToLower(pk)] = struct{}{}
	}
	return &EventValidator{
		clock: clk,
		limits: ValidationLimits{
			MaxFuture:        policy.MaxFuture,
			MaxAge:           policy.MaxAge,
			MaxContentLength: policy.MaxContentLength,
			MaxEventTags:     policy.MaxEventTags,
			MinPowDifficulty: policy.MinPowDifficulty,
		},
		blacklist: blacklist,
	}
}

// Validate returns nil when evt may be admitted, or a rejection whose
// reason is suitable for an OK frame. It has no side effects.
func (v *EventValidator) Validate(evt *nostr.Event) error {
	if err := v.checkIdentity(evt); err != nil {
		return err
	}

	now := v.clock.Now()
	created := time.Unix(int64(evt.CreatedAt), 0)
	if created.After(now.Add(v.limits.MaxFuture)) {
		return ErrEventFromFuture
	}
	if now.Sub(created) > v.limits.MaxAge {
		return ErrEventTooOld
	}

	exp, hasExp, err := nips.GetExpiration(evt)
	if err != nil {
		return ErrBadExpiration
	}
	if hasExp && int64(exp) <= now.Unix() {
		return ErrEventExpired
	}

	if err := v.checkStructure(evt); err != nil {
		return err
	}

	if _, blocked := v.blacklist[evt.PubKey]; blocked {
		return ErrPubkeyBlacklisted
	}

	if err := nips.ValidatePoW(evt, v.limits.MinPowDifficulty); err != nil {
		logger.Debug("Proof of work rejected",
			zap.String("event_id", evt.ID),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrInsufficientPoW, err)
	}
	return nil
}

// checkIdentity recomputes the id and verifies the schnorr signature.
func (v *EventValidator) checkIdentity(evt *nostr.Event) error {
	if !isLowerHex(evt.PubKey, 64) {
		return ErrBadPubkey
	}
	if !isLowerHex(evt.ID, 64) || evt.GetID() != evt.ID {
		return ErrBadEventID
	}
	if !isLowerHex(evt.Sig, 128) {
		return ErrBadSignature
	}
	ok, err := evt.CheckSignature()
	if err != nil || !ok {
		return ErrBadSignature
	}
	return nil
}

func (v *EventValidator) checkStructure(evt *nostr.Event) error {
	if evt.Kind < 0 || evt.Kind > 65535 {
		return ErrBadKind
	}
	if len(evt.Content) > v.limits.MaxContentLength {
		return ErrContentTooLarge
	}
	if len(evt.Tags) > v.limits.MaxEventTags {
		return ErrTooManyTags
	}
	for _, tag := range evt.Tags {
		if len(tag) == 0 {
			return ErrEmptyTag
		}
	}
	return nil
}

func isLowerHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
