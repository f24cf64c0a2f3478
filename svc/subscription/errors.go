package subscription

import "errors"

var (
	ErrUnknownPrice = errors.New("subscription: webhook references an unknown price")
	ErrUpdateFailed = errors.New("subscription: failed to update subscription")
)
