package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Profile    string
	Limit      int           // MaxRequests of the profile
	Remaining  int           // requests left in the current window
	ResetAt    time.Time     // when the oldest request in the window falls out of it
	RetryAfter time.Duration // zero when allowed
}

// Window is the state of one key's sliding window after a Record call.
type Window struct {
	Allowed bool
	Count   int       // timestamps in the window, including the one just recorded
	Oldest  time.Time // oldest timestamp still in the window; zero if empty
}

// Store holds per-key sliding windows.
type Store interface {
	// Record drops timestamps at or before now-window, then records now if
	// fewer than limit remain. The check and the record are atomic per key.
	Record(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (Window, error)

	// Reset forgets all timestamps for key.
	Reset(ctx context.Context, key string) error
}

// Recorder observes limiter decisions, e.g. for metrics.
type Recorder interface {
	RateLimitDecision(profile string, allowed bool)
}
