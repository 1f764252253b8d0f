// Package client is the client side of a room: the RPC wrapper, the socket
// subscription and the countdown that keeps local completion in step with
// the server even when timers are throttled.
package client

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// CompletionBuffer delays the local fallback so it lands after endsAt.
const CompletionBuffer = 100 * time.Millisecond

// Countdown derives the remaining time of a wave from its absolute endsAt and
// schedules one local completion as a fallback for the server push.
type Countdown struct {
	clock      clockwork.Clock
	guard      *CompletionGuard
	onComplete func(sessionID string)

	mu        sync.Mutex
	sessionID string
	endsAt    *time.Time
	timer     clockwork.Timer
}

// NewCountdown creates an idle countdown. onComplete runs at most once per
// wave, shared with whoever else completes through guard.
func NewCountdown(clock clockwork.Clock, guard *CompletionGuard, onComplete func(sessionID string)) *Countdown {
	return &Countdown{
		clock:      clock,
		guard:      guard,
		onComplete: onComplete,
	}
}

// Set points the countdown at a wave, or clears it when endsAt is nil. Any
// change cancels the pending local completion and resets the guard.
func (c *Countdown) Set(sessionID string, endsAt *time.Time) {
	c.mu.Lock()
	if c.sessionID == sessionID && sameTime(c.endsAt, endsAt) {
		c.mu.Unlock()
		return
	}

	c.stopLocked()
	c.guard.Reset()
	c.sessionID = sessionID
	if endsAt == nil {
		c.endsAt = nil
		c.mu.Unlock()
		return
	}

	end := *endsAt
	c.endsAt = &end
	due := c.armLocked()
	c.mu.Unlock()

	if due {
		c.complete(sessionID)
	}
}

// Remaining returns max(0, endsAt-now). ok is false when no wave is set.
func (c *Countdown) Remaining() (remaining time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.endsAt == nil {
		return 0, false
	}
	return c.remainingLocked(), true
}

// Resync re-derives the remaining time, typically when the app returns to
// the foreground. An elapsed wave completes now, otherwise the local
// completion is re-armed in case the old one was delayed.
func (c *Countdown) Resync() {
	c.mu.Lock()
	if c.endsAt == nil {
		c.mu.Unlock()
		return
	}
	sessionID := c.sessionID
	c.stopLocked()
	due := c.armLocked()
	c.mu.Unlock()

	if due {
		c.complete(sessionID)
	}
}

// Stop cancels the pending local completion.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// armLocked schedules the local completion. It reports true when the wave
// has already elapsed and should complete immediately.
func (c *Countdown) armLocked() bool {
	remaining := c.remainingLocked()
	if remaining <= 0 {
		return true
	}

	sessionID := c.sessionID
	endsAt := *c.endsAt
	c.timer = c.clock.AfterFunc(remaining+CompletionBuffer, func() {
		c.fire(sessionID, endsAt)
	})
	return false
}

func (c *Countdown) fire(sessionID string, endsAt time.Time) {
	c.mu.Lock()
	current := c.sessionID == sessionID && c.endsAt != nil && c.endsAt.Equal(endsAt)
	if current {
		c.timer = nil
	}
	c.mu.Unlock()

	if current {
		c.complete(sessionID)
	}
}

func (c *Countdown) complete(sessionID string) {
	if !c.guard.TryComplete(sessionID) {
		return
	}
	if c.onComplete != nil {
		c.onComplete(sessionID)
	}
}

func (c *Countdown) remainingLocked() time.Duration {
	remaining := c.endsAt.Sub(c.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (c *Countdown) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
