// Package entitlement decides whether an account may create another memorial.
//
// An Evaluator resolves the account's plan from the static catalog, applies the
// trial gate, and compares the stored memorial counter against the plan's cap.
// Unlimited plans are allowed without reading the counter. A counter or account
// read that fails for any reason other than "not found" yields a denying
// Decision: over-permitting a billing limit is worse than a transient refusal.
//
// The counter read and the increment done by the creation path are separate
// operations against the document store, so two concurrent evaluations at
// cap-1 can both be allowed. The evaluator does not lock to prevent this.
// Instead every creation path calls Reconcile with the post-increment count;
// when the count exceeds the cap, the memorial just created is flagged for
// review through the configured Remediator. Memorials are never deleted by
// reconciliation.
//
// Evaluations can run against the live account (Evaluate) or against the plan
// and trial fields carried in the session token (EvaluateSnapshot). The
// snapshot may be stale by up to one session refresh.
package entitlement
