// Package session verifies the signed session tokens issued by the identity
// provider and exposes the caller's identity to handlers.
//
// Tokens are HS256 JWTs. Besides the registered claims ("sub" is the account
// ID) they carry a copy of the account's plan, subscription status and trial
// end. That copy is a read-through cache of the account record: it may be
// stale by up to one token refresh, and callers that evaluate entitlements
// from it accept that staleness.
//
//	tokens := session.NewManager(cfg)
//
//	r.Use(session.Middleware(tokens))
//	r.With(session.Require()).Post("/api/memorials", create)
//
// Middleware attaches an Identity when the request carries a valid token and
// passes the request on unchanged otherwise; Require rejects requests without
// an Identity with 401.
package session
