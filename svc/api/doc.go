// Package api is the HTTP surface of memorialkit.
//
// Each resource is a module exposing Handle() and mounted by Router under
// /api. Every /api request passes through the session middleware; modules
// require an identity and apply their rate limit profile before reaching the
// services in svc/memorial and svc/subscription.
//
//	r := api.Router(api.RouterOptions{
//		Log:          log,
//		Sessions:     sessions,
//		Metrics:      m,
//		Checks:       checks,
//		Memorials:    api.NewMemorialModule(memorials, limiter, errorHandler),
//		Subscription: api.NewSubscriptionModule(subscriptions, limiter, errorHandler),
//		Billing:      api.NewBillingModule(subscriptions, gateway, limiter, errorHandler, cfg.Checkout),
//	})
//
// Denied creations answer 403 with the quota state, throttled requests 429
// with Retry-After, and a failed usage lookup 503.
package api
