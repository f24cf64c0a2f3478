package billing

import (
	"context"

	"github.com/dmitrymomot/memorialkit/pkg/plan"
)

// Gateway is the external payment provider.
type Gateway interface {
	// CreateCustomer registers a customer and returns the gateway's ID for it.
	CreateCustomer(ctx context.Context, email, accountID string) (string, error)
	// CreateCheckoutSession opens a hosted checkout for one price.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// CheckoutRequest is what the Orchestrator asks the gateway for.
type CheckoutRequest struct {
	CustomerID string
	PriceID    string
	AccountID  string
	PlanID     plan.ID
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the gateway's answer: a session ID and where to send the user.
type CheckoutSession struct {
	ID  string
	URL string
}
