package logger

import (
	"log/slog"
	"time"
)

// Error records err under "error". A nil error yields an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func AccountID(id string) slog.Attr {
	return slog.String("account_id", id)
}

// PlanID accepts plan.ID and other string kinds without importing pkg/plan.
func PlanID[T ~string](id T) slog.Attr {
	return slog.String("plan_id", string(id))
}

func MemorialID(id any) slog.Attr {
	return slog.Any("memorial_id", id)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// RateKey records a rate limit key. Keys may be IPs so they only appear at debug/warn level.
func RateKey(key string) slog.Attr {
	return slog.String("rate_key", key)
}

func Profile(name string) slog.Attr {
	return slog.String("profile", name)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Group creates a slog group attribute.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}
