package store

import "time"

// Breakdown is a time-until-expiry split into whole days and the sub-day
// remainder. Hours, Minutes and Seconds never carry into Days.
type Breakdown struct {
	Days    int64
	Hours   int64
	Minutes int64
	Seconds int64
}

// Sentinel breakdowns.
var (
	// Unregistered is returned for a UID the store has never seen (or has swept).
	Unregistered = Breakdown{Days: 999, Hours: 23, Minutes: 59, Seconds: 59}
	// Forever is returned for a permanent UID.
	Forever = Breakdown{Days: 99999, Hours: 23, Minutes: 59, Seconds: 59}
	// Elapsed is returned once the expiry instant has passed.
	Elapsed = Breakdown{}
)

// Remaining computes the breakdown for p at now.
func Remaining(p Policy, now time.Time) Breakdown {
	if p.Permanent {
		return Forever
	}
	if now.After(p.ExpiresAt) {
		return Elapsed
	}
	return split(p.ExpiresAt.Sub(now))
}

// split truncates d to whole seconds and decomposes it.
func split(d time.Duration) Breakdown {
	days := int64(d / day)
	rest := int64((d % day) / time.Second)
	return Breakdown{
		Days:    days,
		Hours:   rest / 3600,
		Minutes: rest % 3600 / 60,
		Seconds: rest % 60,
	}
}
