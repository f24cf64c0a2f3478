package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrymomot/memorialkit/pkg/account"
	"github.com/dmitrymomot/memorialkit/pkg/plan"
)

// Claims is the token payload.
type Claims struct {
	Email       string           `json:"email,omitempty"`
	Plan        string           `json:"plan"`
	Status      string           `json:"status"`
	TrialEndsAt *jwt.NumericDate `json:"trial_ends_at,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller.
type Identity struct {
	AccountID string
	Email     string
	Snapshot  account.Snapshot
	ExpiresAt time.Time
}

func (c *Claims) identity() Identity {
	snap := account.Snapshot{
		AccountID: c.Subject,
		PlanID:    plan.ID(c.Plan),
		Status:    account.Status(c.Status),
	}
	if c.TrialEndsAt != nil {
		t := c.TrialEndsAt.UTC()
		snap.TrialEndsAt = &t
	}

	id := Identity{
		AccountID: c.Subject,
		Email:     c.Email,
		Snapshot:  snap,
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id
}
