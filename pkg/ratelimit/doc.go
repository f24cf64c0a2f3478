// Package ratelimit throttles requests per client key with a sliding window.
//
// A request is allowed iff the number of requests recorded for its key inside
// the trailing window is strictly less than the profile's MaxRequests. Allowed
// requests are recorded before Check returns. A denied request carries a
// RetryAfter derived from the oldest timestamp still in the window.
//
// Limits are grouped into named profiles (for example a lenient "general"
// profile and a "strict" one for sensitive write endpoints); callers choose the
// profile per route.
//
// Two stores are provided. MemoryStore keeps per-key timestamp lists in a
// sharded map: mutation happens under a per-key lock, and a background sweep
// drops keys with no timestamps left in the window so memory tracks live
// traffic rather than every client ever seen. RedisStore keeps the same data in
// sorted sets for deployments running more than one instance.
//
// Throttling is best-effort: the HTTP middleware lets requests through, with a
// warning in the log, when no key can be derived or the store fails.
//
// # Usage
//
//	store := ratelimit.NewMemoryStore()
//	defer store.Close()
//
//	limiter, err := ratelimit.New(store, ratelimit.DefaultProfiles())
//	if err != nil {
//		return err
//	}
//
//	r.With(ratelimit.Middleware(limiter, ratelimit.ProfileStrict, keyFunc)).Post("/memorials", h)
package ratelimit
