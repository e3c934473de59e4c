// Package ratelimit enforces the search service's minimum spacing between
// group submissions. A Pacer serializes attempts within one process; an
// optional Redis-backed Tracker shares the last attempt time between
// processes that use the same API token.
package ratelimit

import (
	"time"
)

// Redis key suffixes for shared pacing state. Keys are prefixed with the
// tracker namespace, e.g. "fssp:ratelimit:last_attempt".
const (
	RedisKeyLastAttempt  = "ratelimit:last_attempt"
	RedisKeyLastThrottle = "ratelimit:last_throttle"
	RedisKeyThrottles    = "ratelimit:throttles"
)

// MinInterval is the documented minimum spacing between search calls.
const MinInterval = 5 * time.Second

// State is the shared pacing state.
type State struct {
	// LastAttempt is when the most recent submission attempt started.
	// Zero if no attempt has been recorded.
	LastAttempt time.Time `json:"last_attempt"`

	// LastThrottle is when the service last answered "wait for previous
	// group request".
	LastThrottle time.Time `json:"last_throttle"`

	// Throttles counts rate-limited answers seen since the state was created.
	Throttles int64 `json:"throttles"`
}

// NextAllowed returns the earliest time the next attempt may start.
func (s *State) NextAllowed(interval time.Duration) time.Time {
	if s.LastAttempt.IsZero() {
		return time.Time{}
	}
	return s.LastAttempt.Add(interval)
}

// WaitFrom returns how long an attempt starting at now has to wait.
// Returns 0 if no wait is needed.
func (s *State) WaitFrom(now time.Time, interval time.Duration) time.Duration {
	next := s.NextAllowed(interval)
	if next.IsZero() || !next.After(now) {
		return 0
	}
	return next.Sub(now)
}

// IsThrottled reports whether the service signalled backpressure within the
// given window before now.
func (s *State) IsThrottled(now time.Time, window time.Duration) bool {
	if s.LastThrottle.IsZero() {
		return false
	}
	return now.Sub(s.LastThrottle) < window
}
