package account

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Reader reads accounts from the document store.
// Returns ErrAccountNotFound if the account does not exist; any other error
// means the store could not be reached.
type Reader interface {
	Account(ctx context.Context, id string) (*Account, error)
}

// UsageCounter reads the per-account memorial counter.
// The read is not atomic with the increment performed by the creation path.
type UsageCounter interface {
	MemorialCount(ctx context.Context, accountID string) (int64, error)
}

// Writer persists billing-side changes onto accounts.
type Writer interface {
	SetGatewayCustomerID(ctx context.Context, accountID, customerID string) error
	UpdateSubscription(ctx context.Context, accountID string, upd SubscriptionUpdate) error
}

// ModerationStatus is the review state of a memorial.
type ModerationStatus string

const (
	ModerationNone    ModerationStatus = ""
	ModerationFlagged ModerationStatus = "flagged_over_quota"
)

// Memorial is the resource whose count is capped by the plan.
type Memorial struct {
	ID         uuid.UUID        `json:"id"`
	AccountID  string           `json:"accountId"`
	Name       string           `json:"name"`
	Moderation ModerationStatus `json:"moderation,omitempty"`
	FlagReason string           `json:"flagReason,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// MemorialStore creates memorials and maintains the usage counter.
type MemorialStore interface {
	CreateMemorial(ctx context.Context, m *Memorial) (uuid.UUID, error)
	IncrementMemorialCount(ctx context.Context, accountID string) (int64, error)
	FlagMemorial(ctx context.Context, id uuid.UUID, reason string) error
}

// Store is everything the document store offers to this application.
type Store interface {
	Reader
	UsageCounter
	Writer
	MemorialStore
}
