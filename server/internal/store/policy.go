package store

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Durable encoding of a policy.
const (
	PermanentMarker = "permanent"
	TimeLayout      = "2006-01-02 15:04:05"
)

// Policy is the expiry rule attached to a UID: either Permanent or an
// absolute ExpiresAt instant.
type Policy struct {
	Permanent bool
	ExpiresAt time.Time
}

// PermanentPolicy returns a policy that never expires.
func PermanentPolicy() Policy { return Policy{Permanent: true} }

// ExpiringPolicy returns a policy that expires at t, truncated to the second.
func ExpiringPolicy(t time.Time) Policy {
	return Policy{ExpiresAt: t.Truncate(time.Second)}
}

// Expired reports whether the policy has reached its expiry instant at now.
// Permanent policies never expire.
func (p Policy) Expired(now time.Time) bool {
	return !p.Permanent && !p.ExpiresAt.After(now)
}

// Format returns the durable record for p, with timestamps rendered in loc.
func (p Policy) Format(loc *time.Location) string {
	if p.Permanent {
		return PermanentMarker
	}
	return p.ExpiresAt.In(loc).Format(TimeLayout)
}

// ParsePolicy decodes a durable record produced by Format.
func ParsePolicy(raw string, loc *time.Location) (Policy, error) {
	if raw == PermanentMarker {
		return PermanentPolicy(), nil
	}
	t, err := time.ParseInLocation(TimeLayout, raw, loc)
	if err != nil {
		return Policy{}, fmt.Errorf("parse expiry %q: %w", raw, err)
	}
	return Policy{ExpiresAt: t}, nil
}

// Unit is a time-to-live unit accepted by Upsert.
type Unit string

// Recognised units.
const (
	Seconds Unit = "seconds"
	Days    Unit = "days"
	Months  Unit = "months" // 30 days
	Years   Unit = "years"  // 365 days
)

const day = 24 * time.Hour

// size returns the fixed length of one unit, or false if u is not recognised.
func (u Unit) size() (time.Duration, bool) {
	switch u {
	case Seconds:
		return time.Second, true
	case Days:
		return day, true
	case Months:
		return 30 * day, true
	case Years:
		return 365 * day, true
	}
	return 0, false
}

// Duration converts amount units to a time.Duration.
func (u Unit) Duration(amount int64) (time.Duration, error) {
	size, ok := u.size()
	if !ok {
		return 0, ErrInvalidType
	}
	if amount <= 0 || amount > int64(math.MaxInt64/size) {
		return 0, ErrInvalidTime
	}
	return time.Duration(amount) * size, nil
}

// Spec is a registration request: permanent, or Amount units from now.
type Spec struct {
	Permanent bool
	Amount    int64
	Unit      Unit
}

// ParseSpec builds a Spec from the raw boundary values. amount and unit are
// ignored when permanent is set.
func ParseSpec(permanent bool, amount, unit string) (Spec, error) {
	if permanent {
		return Spec{Permanent: true}, nil
	}
	// Surrounding blanks are tolerated in the amount only; units match exactly.
	amount = strings.TrimSpace(amount)
	if amount == "" || unit == "" {
		return Spec{}, ErrMissingTime
	}
	n, err := strconv.ParseInt(amount, 10, 64)
	if err != nil || n <= 0 {
		return Spec{}, ErrInvalidTime
	}
	u := Unit(unit)
	if _, ok := u.size(); !ok {
		return Spec{}, ErrInvalidType
	}
	return Spec{Amount: n, Unit: u}, nil
}

// policy resolves s against now.
func (s Spec) policy(now time.Time) (Policy, error) {
	if s.Permanent {
		return PermanentPolicy(), nil
	}
	if s.Unit == "" {
		return Policy{}, ErrMissingTime
	}
	d, err := s.Unit.Duration(s.Amount)
	if err != nil {
		return Policy{}, err
	}
	return ExpiringPolicy(now.Add(d)), nil
}
