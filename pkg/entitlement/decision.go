package entitlement

import (
	"fmt"

	"github.com/dmitrymomot/memorialkit/pkg/plan"
	"github.com/dmitrymomot/memorialkit/pkg/trial"
)

// Reason explains a Decision.
type Reason string

const (
	ReasonAllowed             Reason = "allowed"
	ReasonQuotaExceeded       Reason = "quota_exceeded"
	ReasonTrialExpired        Reason = "trial_expired"
	ReasonUpstreamUnavailable Reason = "upstream_unavailable"
	ReasonUnknownPlan         Reason = "unknown_plan"
)

// Decision is the outcome of an evaluation. A denial is a Decision with
// CanCreate false, not an error.
type Decision struct {
	CanCreate    bool         `json:"canCreate"`
	CurrentCount int64        `json:"currentCount"`
	MaxAllowed   int64        `json:"maxAllowed"` // plan.NoLimit for unlimited plans
	PlanID       plan.ID      `json:"planId"`
	PlanName     string       `json:"planName"`
	Reason       Reason       `json:"reason"`
	Trial        trial.Status `json:"-"`
}

// Unlimited reports whether the decision was made for a plan without a cap.
func (d Decision) Unlimited() bool {
	return d.MaxAllowed == plan.NoLimit
}

func trialExpiredName(name string) string {
	return fmt.Sprintf("%s (trial expired)", name)
}
