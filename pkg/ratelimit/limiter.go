package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/memorialkit/pkg/logger"
)

// Limiter checks keys against named profiles.
// A single Limiter is shared by all requests; it holds no per-key state itself.
type Limiter struct {
	store    Store
	profiles *Profiles
	now      func() time.Time
	log      *slog.Logger
	recorder Recorder
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now. Used by tests to step through windows.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Limiter) {
		if log != nil {
			l.log = log
		}
	}
}

// WithRecorder reports every decision to r.
func WithRecorder(r Recorder) Option {
	return func(l *Limiter) { l.recorder = r }
}

// New creates a Limiter over store with the given profiles.
func New(store Store, profiles *Profiles, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if profiles == nil {
		profiles = DefaultProfiles()
	}

	l := &Limiter{
		store:    store,
		profiles: profiles,
		now:      time.Now,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Profiles returns the profile registry the limiter was built with.
func (l *Limiter) Profiles() *Profiles {
	return l.profiles
}

// Check records one request for key under profile and reports whether it is allowed.
// Errors are returned only for an empty key, an unknown profile, or a store failure;
// a denial is a normal Result with Allowed false.
func (l *Limiter) Check(ctx context.Context, key, profile string) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	p, err := l.profiles.Get(profile)
	if err != nil {
		return nil, err
	}

	// One clock sample per check: the recorded timestamp and the retry hint
	// must agree.
	now := l.now()

	w, err := l.store.Record(ctx, p.Name+":"+key, now, p.Window, p.MaxRequests)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Allowed:   w.Allowed,
		Profile:   p.Name,
		Limit:     p.MaxRequests,
		Remaining: max(0, p.MaxRequests-w.Count),
		ResetAt:   now.Add(p.Window),
	}
	if !w.Oldest.IsZero() {
		res.ResetAt = w.Oldest.Add(p.Window)
	}
	if !w.Allowed {
		res.Remaining = 0
		res.RetryAfter = max(0, res.ResetAt.Sub(now))
		l.log.DebugContext(ctx, "rate limit exceeded",
			logger.Component("ratelimit"),
			logger.Profile(p.Name),
			logger.RateKey(key),
			slog.Duration("retry_after", res.RetryAfter),
		)
	}

	if l.recorder != nil {
		l.recorder.RateLimitDecision(p.Name, w.Allowed)
	}

	return res, nil
}

// Reset clears the window for key under profile.
func (l *Limiter) Reset(ctx context.Context, key, profile string) error {
	if key == "" {
		return ErrKeyRequired
	}
	p, err := l.profiles.Get(profile)
	if err != nil {
		return err
	}
	return l.store.Reset(ctx, p.Name+":"+key)
}
