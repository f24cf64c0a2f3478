package api

import (
	"time"

	"github.com/dmitrymomot/memorialkit/pkg/billing"
	"github.com/dmitrymomot/memorialkit/pkg/httpserver"
	"github.com/dmitrymomot/memorialkit/pkg/plan"
	"github.com/dmitrymomot/memorialkit/pkg/ratelimit"
	"github.com/dmitrymomot/memorialkit/pkg/session"
)

// Entitlement sources accepted by Config.EntitlementSource.
const (
	EntitlementFromAccount = "account"
	EntitlementFromSession = "session"
)

// Config is the API process configuration read from the environment.
type Config struct {
	HTTP      httpserver.Config
	Session   session.Config
	Billing   billing.Config
	Checkout  CheckoutConfig
	RateLimit RateLimitConfig
	Plans     PlansConfig

	// EntitlementSource selects whether creation is evaluated against the
	// stored account or the session's copy of it.
	EntitlementSource string `env:"ENTITLEMENT_SOURCE" envDefault:"account"`
}

// UseSessionSnapshots reports whether creation checks read the session copy.
func (c Config) UseSessionSnapshots() bool {
	return c.EntitlementSource == EntitlementFromSession
}

// CheckoutConfig holds the fallback redirect targets for checkout sessions.
type CheckoutConfig struct {
	SuccessURL string `env:"CHECKOUT_SUCCESS_URL"`
	CancelURL  string `env:"CHECKOUT_CANCEL_URL"`
}

// RateLimitConfig sizes the general, strict and checkout profiles.
type RateLimitConfig struct {
	Backend       string        `env:"RATE_LIMIT_BACKEND" envDefault:"memory"` // memory or redis
	GeneralMax    int           `env:"RATE_LIMIT_GENERAL_MAX" envDefault:"120"`
	GeneralWindow time.Duration `env:"RATE_LIMIT_GENERAL_WINDOW" envDefault:"1m"`
	StrictMax     int           `env:"RATE_LIMIT_STRICT_MAX" envDefault:"10"`
	StrictWindow  time.Duration `env:"RATE_LIMIT_STRICT_WINDOW" envDefault:"1m"`

	CheckoutMax    int           `env:"RATE_LIMIT_CHECKOUT_MAX" envDefault:"5"`
	CheckoutWindow time.Duration `env:"RATE_LIMIT_CHECKOUT_WINDOW" envDefault:"1m"`
}

// Profiles builds the limiter profiles described by c.
func (c RateLimitConfig) Profiles() (*ratelimit.Profiles, error) {
	return ratelimit.NewProfiles(
		ratelimit.Profile{Name: ratelimit.ProfileGeneral, Window: c.GeneralWindow, MaxRequests: c.GeneralMax},
		ratelimit.Profile{Name: ratelimit.ProfileStrict, Window: c.StrictWindow, MaxRequests: c.StrictMax},
		ratelimit.Profile{Name: ratelimit.ProfileCheckout, Window: c.CheckoutWindow, MaxRequests: c.CheckoutMax},
	)
}

// PlansConfig points at the plan catalog. Without a file the built-in plans
// are used with the configured price IDs.
type PlansConfig struct {
	File           string `env:"PLANS_FILE"`
	ExtendedPrice  string `env:"PADDLE_PRICE_EXTENDED"`
	UnlimitedPrice string `env:"PADDLE_PRICE_UNLIMITED"`
}

// Source returns the plan source described by c.
func (c PlansConfig) Source() plan.Source {
	if c.File != "" {
		return plan.NewYAMLSource(c.File)
	}
	return plan.NewInMemSource(plan.WithPriceIDs(plan.DefaultPlans(), map[plan.ID]string{
		plan.Extended:  c.ExtendedPrice,
		plan.Unlimited: c.UnlimitedPrice,
	})...)
}
