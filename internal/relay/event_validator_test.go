package relay

import (
	"strconv"
	"strings"
	"testing"

	nostr "github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventValidatorChecks(t *testing.T) {
	cfg := testConfig(t)
	cfg.Policy.MaxContentLength = 16
	cfg.Policy.MaxEventTags = 3
	blocked := newSigner(t)
	cfg.Policy.Blacklist.PubKeys = []string{blocked.pk}
	v := NewEventValidator(testClock(), cfg.Policy)
	alice := newSigner(t)

	minute := int64(60)
	expiration := func(offset int64) nostr.Tags {
		return nostr.Tags{{"expiration", strconv.FormatInt(testNow+offset, 10)}}
	}

	tests := []struct {
		name  string
		build func() *nostr.Event
		want  error
	}{
		{
			name:  "valid",
			build: func() *nostr.Event { return alice.event(t, 1, testNow, nil, "hi") },
		},
		{
			name: "tampered content",
			build: func() *nostr.Event {
				evt := alice.event(t, 1, testNow, nil, "hi")
				evt.Content = "bye"
				return evt
			},
			want: ErrBadEventID,
		},
		{
			name: "tampered signature",
			build: func() *nostr.Event {
				evt := alice.event(t, 1, testNow, nil, "hi")
				evt.Sig = strings.Repeat("0", 128)
				return evt
			},
			want: ErrBadSignature,
		},
		{
			name: "unsigned",
			build: func() *nostr.Event {
				evt := &nostr.Event{PubKey: alice.pk, CreatedAt: testNow, Kind: 1, Tags: nostr.Tags{}}
				evt.ID = evt.GetID()
				return evt
			},
			want: ErrBadSignature,
		},
		{
			name:  "missing pubkey",
			build: func() *nostr.Event { return &nostr.Event{Kind: 1} },
			want:  ErrBadPubkey,
		},
		{
			name:  "five minutes ahead",
			build: func() *nostr.Event { return alice.event(t, 1, testNow+5*minute, nil, "") },
		},
		{
			name:  "twenty minutes ahead",
			build: func() *nostr.Event { return alice.event(t, 1, testNow+20*minute, nil, "") },
			want:  ErrEventFromFuture,
		},
		{
			name:  "twenty two days old",
			build: func() *nostr.Event { return alice.event(t, 1, testNow-22*24*60*minute, nil, "") },
			want:  ErrEventTooOld,
		},
		{
			name:  "expired an hour ago",
			build: func() *nostr.Event { return alice.event(t, 1, testNow, expiration(-60*minute), "") },
			want:  ErrEventExpired,
		},
		{
			name:  "expires in an hour",
			build: func() *nostr.Event { return alice.event(t, 1, testNow, expiration(60*minute), "") },
		},
		{
			name: "malformed expiration",
			build: func() *nostr.Event {
				return alice.event(t, 1, testNow, nostr.Tags{{"expiration", "soon"}}, "")
			},
			want: ErrBadExpiration,
		},
		{
			name:  "kind out of range",
			build: func() *nostr.Event { return alice.event(t, 70000, testNow, nil, "") },
			want:  ErrBadKind,
		},
		{
			name:  "empty tag",
			build: func() *nostr.Event { return alice.event(t, 1, testNow, nostr.Tags{{}}, "") },
			want:  ErrEmptyTag,
		},
		{
			name:  "content too long",
			build: func() *nostr.Event { return alice.event(t, 1, testNow, nil, strings.Repeat("x", 17)) },
			want:  ErrContentTooLarge,
		},
		{
			name: "too many tags",
			build: func() *nostr.Event {
				return alice.event(t, 1, testNow, nostr.Tags{{"t", "a"}, {"t", "b"}, {"t", "c"}, {"t", "d"}}, "")
			},
			want: ErrTooManyTags,
		},
		{
			name:  "blacklisted",
			build: func() *nostr.Event { return blocked.event(t, 1, testNow, nil, "") },
			want:  ErrPubkeyBlacklisted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.build())
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, Reason(tt.want), Reason(err))
		})
	}
}

func TestEventValidatorOrder(t *testing.T) {
	v := NewEventValidator(testClock(), testConfig(t).Policy)
	alice := newSigner(t)

	// Both future and expired: the future check runs first.
	evt := alice.event(t, 1, testNow+3600, nostr.Tags{{"expiration", "1"}}, "")
	assert.ErrorIs(t, v.Validate(evt), ErrEventFromFuture)
}

func TestEventValidatorProofOfWork(t *testing.T) {
	cfg := testConfig(t)
	cfg.Policy.MinPowDifficulty = 40
	v := NewEventValidator(testClock(), cfg.Policy)

	evt := newSigner(t).event(t, 1, testNow, nil, "no work done")
	err := v.Validate(evt)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientPoW)
	assert.Equal(t, "pow: insufficient proof of work", Reason(err))
}

func TestReasonClass(t *testing.T) {
	assert.Equal(t, "invalid", reasonClass(ErrBadSignature.Message))
	assert.Equal(t, "rate-limited", reasonClass(ErrEventRateLimited.Message))
	assert.Equal(t, "unknown message type", reasonClass(ErrUnknownMessage.Message))
}
