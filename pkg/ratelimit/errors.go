package ratelimit

import "errors"

var (
	ErrKeyRequired      = errors.New("rate limit key is required")
	ErrStoreRequired    = errors.New("rate limit store is required")
	ErrInvalidLimit     = errors.New("invalid rate limit: max requests must be positive")
	ErrInvalidWindow    = errors.New("invalid rate limit: window must be positive")
	ErrInvalidProfile   = errors.New("invalid rate limit profile")
	ErrUnknownProfile   = errors.New("unknown rate limit profile")
	ErrDuplicateProfile = errors.New("duplicate rate limit profile")
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
)
