package billing

import "errors"

var (
	ErrInvalidPlan        = errors.New("billing: plan is not available for purchase")
	ErrInvalidRequest     = errors.New("billing: invalid checkout request")
	ErrAccountNotFound    = errors.New("billing: account not found")
	ErrGatewayUnavailable = errors.New("billing: payment gateway unavailable")
	ErrStoreUnavailable   = errors.New("billing: account store unavailable")

	ErrMissingAPIKey        = errors.New("billing: paddle API key is required")
	ErrMissingWebhookSecret = errors.New("billing: paddle webhook secret is required")
	ErrInvalidEnvironment   = errors.New("billing: invalid paddle environment")
	ErrInvalidSignature     = errors.New("billing: webhook signature verification failed")
	ErrInvalidPayload       = errors.New("billing: invalid webhook payload")
)
