package subscription

import "log/slog"

// ServiceOption configures the service.
type ServiceOption func(*service)

func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *service) {
		if log != nil {
			s.log = log
		}
	}
}
