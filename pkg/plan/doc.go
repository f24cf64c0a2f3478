// Package plan defines the closed set of subscription plans and the immutable
// catalog they are served from.
//
// A plan caps how many memorials an account may own. The catalog is loaded once
// at process start from a Source (built-in defaults, an in-memory list or a YAML
// file) and never mutated afterwards, so it is safe for concurrent reads without
// locking.
//
// # Usage
//
//	catalog, err := plan.Load(ctx, plan.NewYAMLSource("plans.yaml"))
//	if err != nil {
//		return err
//	}
//	p, err := catalog.Get(plan.Extended)
//
// # YAML format
//
//	plans:
//	  - id: base
//	    name: Base
//	    max_memorials: 1
//	  - id: unlimited
//	    name: Unlimited
//	    max_memorials: -1
//	    price_id: pri_01h...
//	    trial_gated: true
package plan
