// Package account holds the account record the entitlement and billing code
// reads, and the narrow store interfaces through which it is reached.
//
// Accounts are owned by the identity and billing collaborators. Code in pkg/
// only reads them; writes (customer ID persistence, webhook updates) happen in
// svc/subscription.
package account

import (
	"time"

	"github.com/dmitrymomot/memorialkit/pkg/plan"
)

// Status is the subscription state of an account.
type Status string

const (
	StatusActive   Status = "active"
	StatusTrialing Status = "trialing"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusTrialing, StatusPastDue, StatusCanceled:
		return true
	}
	return false
}

// Account is an account as stored by the document store.
type Account struct {
	ID                string     `json:"id" bson:"_id"`
	Email             string     `json:"email,omitempty" bson:"email,omitempty"`
	PlanID            plan.ID    `json:"planId" bson:"plan_id"`
	Status            Status     `json:"subscriptionStatus" bson:"status"`
	TrialEndsAt       *time.Time `json:"trialEndsAt,omitempty" bson:"trial_ends_at,omitempty"`
	GatewayCustomerID string     `json:"-" bson:"gateway_customer_id,omitempty"` // set on first billing interaction
	MemorialCount     int64      `json:"memorialCount" bson:"memorial_count"`
	CreatedAt         time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt         time.Time  `json:"updatedAt" bson:"updated_at"`
}

func (a *Account) IsTrialing() bool {
	return a.Status == StatusTrialing
}

// HasGatewayCustomer reports whether billing already created an identity for the account.
func (a *Account) HasGatewayCustomer() bool {
	return a.GatewayCustomerID != ""
}

// Snapshot is the denormalized copy of plan and trial fields the identity
// provider carries in a session. It may lag the stored account by up to one
// session refresh.
type Snapshot struct {
	AccountID   string
	PlanID      plan.ID
	Status      Status
	TrialEndsAt *time.Time
}

// Snapshot returns the plan and trial fields of a as a Snapshot.
func (a *Account) Snapshot() Snapshot {
	return Snapshot{
		AccountID:   a.ID,
		PlanID:      a.PlanID,
		Status:      a.Status,
		TrialEndsAt: a.TrialEndsAt,
	}
}

// SubscriptionUpdate carries billing-side changes applied to an account.
// Nil fields are left unchanged.
type SubscriptionUpdate struct {
	PlanID            *plan.ID
	Status            *Status
	TrialEndsAt       *time.Time
	ClearTrial        bool
	GatewayCustomerID *string
}
