// Package billing opens payment-gateway checkout sessions for plan upgrades.
//
// The Orchestrator validates the requested plan and the account before making
// any external call, reuses the account's stored gateway customer when there is
// one, and otherwise asks the gateway to create a customer. A newly created
// customer ID is returned in the Session so the caller can persist it.
//
// Gateway calls are bounded by a timeout and never retried: a billing action
// visible to the user is not repeated without the user knowing. Each call
// creates a new gateway session; repeated requests are not deduplicated.
//
// PaddleGateway implements Gateway on top of the Paddle Billing API and also
// verifies and decodes Paddle webhooks.
package billing
