package util

import "time"

// All stored and compared timestamps use one canonical representation: UTC.
// Conversion happens on read, never ad hoc at comparison sites, so a naive
// value from one source can never meet a zoned value from another.

// NowUTC returns the current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// ToUTC normalizes any timestamp to UTC. A zero value stays zero.
func ToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// ToUTCPtr normalizes an optional timestamp to UTC.
func ToUTCPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// SinceUTC returns the elapsed time between a stored timestamp and now, with
// both sides normalized to UTC first.
func SinceUTC(t time.Time) time.Duration {
	return NowUTC().Sub(ToUTC(t))
}

// StartOfDayUTC returns midnight UTC of the given timestamp's day. Daily
// notional windows are anchored here.
func StartOfDayUTC(t time.Time) time.Time {
	u := ToUTC(t)
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
