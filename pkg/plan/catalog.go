package plan

import (
	"context"
	"errors"
	"fmt"
)

// Catalog is the immutable set of plans loaded at process start.
type Catalog struct {
	plans map[ID]Plan
}

// Load reads plans from src and validates them into a Catalog.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	if src == nil {
		panic("plan: Source is required")
	}

	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	if err := validatePlans(plans); err != nil {
		return nil, err
	}

	return &Catalog{plans: plans}, nil
}

// MustLoad is Load that panics on error, for wiring at startup.
func MustLoad(ctx context.Context, src Source) *Catalog {
	c, err := Load(ctx, src)
	if err != nil {
		panic(fmt.Sprintf("plan: %v", err))
	}
	return c
}

// Get returns the plan for id.
func (c *Catalog) Get(id ID) (Plan, error) {
	p, ok := c.plans[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrPlanNotFound, id)
	}
	return p, nil
}

// Lookup parses a raw plan identifier and returns its plan.
func (c *Catalog) Lookup(raw string) (Plan, error) {
	id, err := ParseID(raw)
	if err != nil {
		return Plan{}, err
	}
	return c.Get(id)
}

// Plans returns the plans in display order.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, id := range IDs {
		if p, ok := c.plans[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Limits returns the memorial cap per plan, NoLimit for uncapped plans.
func (c *Catalog) Limits() map[ID]int64 {
	out := make(map[ID]int64, len(c.plans))
	for id, p := range c.plans {
		out[id] = p.MaxMemorials
	}
	return out
}

// ByPriceID returns the plan sold under the gateway price priceID.
func (c *Catalog) ByPriceID(priceID string) (Plan, error) {
	if priceID != "" {
		for _, p := range c.plans {
			if p.PriceID == priceID {
				return p, nil
			}
		}
	}
	return Plan{}, fmt.Errorf("%w: price %q", ErrPlanNotFound, priceID)
}

// validatePlans catches configuration errors before the service starts serving.
func validatePlans(plans map[ID]Plan) error {
	if len(plans) == 0 {
		return errors.Join(ErrInvalidPlanConfiguration, errors.New("no plans defined"))
	}

	prices := make(map[string]ID, len(plans))
	for key, p := range plans {
		if key != p.ID {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan ID mismatch: map key %s != plan.ID %s", key, p.ID))
		}
		if !p.ID.Valid() {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %q is not a known plan identifier", p.ID))
		}
		if p.Name == "" {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has no display name", p.ID))
		}
		if p.MaxMemorials < NoLimit {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has invalid memorial cap: %d", p.ID, p.MaxMemorials))
		}
		if p.PriceID != "" {
			if other, dup := prices[p.PriceID]; dup {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plans %s and %s share price %s", other, p.ID, p.PriceID))
			}
			prices[p.PriceID] = p.ID
		}
	}
	return nil
}
