// Package memorial creates memorials under plan quotas.
//
// Create runs the entitlement check, creates the memorial, increments the
// account's memorial counter and reconciles the post-increment count against
// the plan cap. The check and the increment are not atomic, so two concurrent
// creations at cap-1 may both succeed; reconciliation flags the one that
// overshot instead of failing the request.
package memorial
