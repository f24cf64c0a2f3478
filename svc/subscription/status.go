package subscription

import (
	"time"

	"github.com/dmitrymomot/memorialkit/pkg/account"
	"github.com/dmitrymomot/memorialkit/pkg/plan"
)

// Limits is the static memorial cap of each plan. plan.NoLimit (-1) marks
// the unlimited tier.
type Limits struct {
	Base      int64 `json:"base"`
	Extended  int64 `json:"extended"`
	Unlimited int64 `json:"unlimited"`
}

func limitsFrom(catalog *plan.Catalog) Limits {
	m := catalog.Limits()
	return Limits{
		Base:      m[plan.Base],
		Extended:  m[plan.Extended],
		Unlimited: m[plan.Unlimited],
	}
}

// SubscriptionStatus is the account's plan, trial and quota state.
type SubscriptionStatus struct {
	PlanID             plan.ID        `json:"planId"`
	SubscriptionStatus account.Status `json:"subscriptionStatus"`
	TrialEndsAt        *time.Time     `json:"trialEndsAt"`
	MemorialCount      int64          `json:"memorialCount"`
	MaxMemorials       int64          `json:"maxMemorials"`
	CanCreate          bool           `json:"canCreate"`
	PlanName           string         `json:"planName"`
	IsTrialActive      bool           `json:"isTrialActive"`
	TrialDaysRemaining int            `json:"trialDaysRemaining"`
	Limits             Limits         `json:"limits"`
}
