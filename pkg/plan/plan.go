package plan

import "fmt"

// ID identifies a plan. The set is closed: see Base, Extended and Unlimited.
type ID string

const (
	Base      ID = "base"
	Extended  ID = "extended"
	Unlimited ID = "unlimited"
)

// IDs lists every valid plan identifier in display order.
var IDs = []ID{Base, Extended, Unlimited}

// NoLimit marks a plan without a memorial cap (-1 keeps it storable as a number).
const NoLimit int64 = -1

// Valid reports whether id belongs to the closed plan enumeration.
func (id ID) Valid() bool {
	switch id {
	case Base, Extended, Unlimited:
		return true
	}
	return false
}

// ParseID converts s to an ID, rejecting anything outside the enumeration.
func ParseID(s string) (ID, error) {
	id := ID(s)
	if !id.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlanID, s)
	}
	return id, nil
}

// Plan describes a tier and the memorial cap it grants.
type Plan struct {
	ID           ID     `yaml:"id" json:"id"`
	Name         string `yaml:"name" json:"name"`
	MaxMemorials int64  `yaml:"max_memorials" json:"maxMemorials"` // NoLimit for uncapped plans
	PriceID      string `yaml:"price_id" json:"-"`                 // gateway price; empty means not purchasable
	TrialGated   bool   `yaml:"trial_gated" json:"-"`              // trialing accounts may only create inside the trial window
}

// IsUnlimited reports whether the plan has no memorial cap.
func (p Plan) IsUnlimited() bool {
	return p.MaxMemorials == NoLimit
}

// Purchasable reports whether a checkout session can be opened for the plan.
func (p Plan) Purchasable() bool {
	return p.PriceID != ""
}

// Allows reports whether an account owning current memorials may create one more.
func (p Plan) Allows(current int64) bool {
	if p.IsUnlimited() {
		return true
	}
	return current < p.MaxMemorials
}

// Exceeded reports whether current is over the cap. Used after creation, where
// reaching the cap exactly is fine but going past it is an overshoot.
func (p Plan) Exceeded(current int64) bool {
	if p.IsUnlimited() {
		return false
	}
	return current > p.MaxMemorials
}
