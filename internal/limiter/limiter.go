package limiter

import (
	"fmt"
	"sync"
	"time"

	"github.com/Shugur-Network/edge-relay/internal/config"
	"github.com/Shugur-Network/edge-relay/internal/logger"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Action names a rate limited client operation.
type Action string

const (
	ActionEvent Action = "event"
	ActionReq   Action = "req"
)

// RateLimit defines the limits for a specific action
type RateLimit struct {
	MaxEvents  int           // Maximum number of attempts allowed per window, <= 0 means unlimited
	WindowSize time.Duration // Time window for the limit
}

// Counter tracks fixed-window state for one action
type Counter struct {
	count     int       // Accepted attempts in the current window
	lastReset time.Time // Start of the current window
}

// RateLimiter is a per-connection fixed-window limiter. Each connection owns
// its own instance, so nothing here is shared between clients.
type RateLimiter struct {
	clock  clock.Clock
	limits map[Action]RateLimit
	counts map[Action]*Counter
	mutex  sync.Mutex
}

// New creates a limiter with the given per-action limits.
func New(clk clock.Clock, limits map[Action]RateLimit) *RateLimiter {
	if clk == nil {
		clk = clock.New()
	}
	rl := &RateLimiter{
		clock:  clk,
		limits: make(map[Action]RateLimit, len(limits)),
		counts: make(map[Action]*Counter, len(limits)),
	}
	for action, limit := range limits {
		rl.limits[action] = limit
	}
	return rl
}

// NewFromConfig creates a limiter for EVENT and REQ using the configured windows.
func NewFromConfig(clk clock.Clock, cfg config.RateLimitConfig) *RateLimiter {
	return New(clk, map[Action]RateLimit{
		ActionEvent: {MaxEvents: cfg.EventsPerWindow, WindowSize: cfg.Window},
		ActionReq:   {MaxEvents: cfg.ReqsPerWindow, WindowSize: cfg.Window},
	})
}

// Allow counts one attempt of action and reports whether it fits the window.
// Rejected attempts are not counted.
func (rl *RateLimiter) Allow(action Action) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	limit, ok := rl.limits[action]
	if !ok || limit.MaxEvents <= 0 {
		return true
	}

	counter := rl.counter(action)
	if counter.count < limit.MaxEvents {
		counter.count++
		return true
	}

	logger.Debug("Rate limit exceeded",
		zap.String("action", string(action)),
		zap.Int("count", counter.count),
		zap.Duration("window", limit.WindowSize),
	)
	return false
}

// counter returns the counter for action, starting a fresh window when the
// previous one elapsed. Caller holds the mutex.
func (rl *RateLimiter) counter(action Action) *Counter {
	now := rl.clock.Now()
	counter, exists := rl.counts[action]
	if !exists {
		counter = &Counter{lastReset: now}
		rl.counts[action] = counter
	}
	if now.Sub(counter.lastReset) >= rl.limits[action].WindowSize {
		counter.count = 0
		counter.lastReset = now
	}
	return counter
}

// String returns a string representation of the rate limiter state
func (rl *RateLimiter) String() string {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	var out string
	for action, limit := range rl.limits {
		count := 0
		if c, ok := rl.counts[action]; ok {
			count = c.count
		}
		out += fmt.Sprintf("%s: %d/%d per %v\n", action, count, limit.MaxEvents, limit.WindowSize)
	}
	return out
}
