package entitlement

import "errors"

var (
	ErrUpstreamUnavailable = errors.New("entitlement: usage source unavailable")
	ErrRemediationFailed   = errors.New("entitlement: failed to flag over-quota memorial")
)
