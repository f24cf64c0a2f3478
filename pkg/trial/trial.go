package trial

import "time"

// Day is the unit DaysRemaining is measured in.
const Day = 24 * time.Hour

// Status is the trial window state at a given instant.
type Status struct {
	IsActive      bool `json:"isActive"`
	DaysRemaining int  `json:"daysRemaining"`
}

// Compute returns the trial status at now. Both fields are derived from the
// same now so the result is internally consistent.
// A nil trialEndsAt means the account never had a trial.
func Compute(trialEndsAt *time.Time, now time.Time) Status {
	if trialEndsAt == nil || !now.Before(*trialEndsAt) {
		return Status{}
	}

	remaining := trialEndsAt.Sub(now)

	// Partial days count as a whole day: 5d12h left reads as 6 days.
	days := remaining / Day
	if remaining%Day != 0 {
		days++
	}

	return Status{
		IsActive:      true,
		DaysRemaining: int(days),
	}
}
