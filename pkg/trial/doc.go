// Package trial computes the state of a time-bounded trial window.
//
// The window is never stored: callers derive it from the account's trial end
// timestamp and a single "now" each time they need it. Caching the result would
// let a request observe a stale trial across a day boundary.
//
// # Usage
//
//	st := trial.Compute(acct.TrialEndsAt, time.Now())
//	if st.IsActive {
//		fmt.Printf("%d days left\n", st.DaysRemaining)
//	}
package trial
