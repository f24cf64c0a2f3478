package memorial

import (
	"log/slog"
	"time"
)

// ServiceOption configures the service.
type ServiceOption func(*service)

// WithSessionSnapshots makes Create evaluate entitlements from the plan and
// trial fields carried by the caller's session instead of reading the
// account. The snapshot may be stale by up to one session refresh.
func WithSessionSnapshots() ServiceOption {
	return func(s *service) { s.useSnapshot = true }
}

// WithClock replaces time.Now for CreatedAt timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMaxNameLength overrides DefaultMaxNameLength.
func WithMaxNameLength(n int) ServiceOption {
	return func(s *service) {
		if n > 0 {
			s.maxNameLen = n
		}
	}
}
