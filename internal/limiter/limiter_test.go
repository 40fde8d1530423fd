package limiter

import (
	"testing"
	"time"

	"github.com/Shugur-Network/edge-relay/internal/config"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func newMock() *clock.Mock {
	mock := clock.NewMock()
	mock.Set(time.Unix(1_700_000_000, 0))
	return mock
}

func TestAllowFixedWindow(t *testing.T) {
	mock := newMock()
	rl := NewFromConfig(mock, config.RateLimitConfig{EventsPerWindow: 3, ReqsPerWindow: 1, Window: time.Minute})

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow(ActionEvent), "attempt %d", i+1)
	}
	assert.False(t, rl.Allow(ActionEvent))
	assert.Contains(t, rl.String(), "event: 3/3")

	// REQ has its own budget.
	assert.True(t, rl.Allow(ActionReq))
	assert.False(t, rl.Allow(ActionReq))

	mock.Add(59 * time.Second)
	assert.False(t, rl.Allow(ActionEvent))

	mock.Add(time.Second)
	assert.True(t, rl.Allow(ActionEvent))
	assert.Contains(t, rl.String(), "event: 1/3")
	assert.True(t, rl.Allow(ActionReq))
}

func TestRejectedAttemptsAreNotCounted(t *testing.T) {
	mock := newMock()
	rl := New(mock, map[Action]RateLimit{ActionEvent: {MaxEvents: 1, WindowSize: time.Minute}})

	assert.True(t, rl.Allow(ActionEvent))
	for i := 0; i < 10; i++ {
		assert.False(t, rl.Allow(ActionEvent))
	}
	mock.Add(time.Minute)
	assert.True(t, rl.Allow(ActionEvent))
}

func TestUnlimitedAndUnknownActions(t *testing.T) {
	rl := New(newMock(), map[Action]RateLimit{ActionEvent: {MaxEvents: 0, WindowSize: time.Minute}})
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow(ActionEvent))
		assert.True(t, rl.Allow(ActionReq))
	}
}

func TestCountersArePerInstance(t *testing.T) {
	mock := newMock()
	limits := map[Action]RateLimit{ActionReq: {MaxEvents: 1, WindowSize: time.Hour}}
	first, second := New(mock, limits), New(mock, limits)

	assert.True(t, first.Allow(ActionReq))
	assert.False(t, first.Allow(ActionReq))
	assert.True(t, second.Allow(ActionReq))
	assert.Contains(t, first.String(), "req: 1/1")
}
