// Package subscription serves the account-facing subscription flows: the
// subscription status view, upgrade checkout, and applying billing webhooks
// to the stored account.
package subscription
