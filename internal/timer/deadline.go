package timer

import "time"

// Remaining returns the whole seconds left until deadline, rounded up and never negative.
// A zero deadline means no timer is running and yields 0.
//
// Countdowns are always recomputed from the absolute deadline instead of counting ticks,
// so a process that was suspended shows the right value on its next tick.
func Remaining(deadline, now time.Time) int {
	if deadline.IsZero() {
		return 0
	}
	ms := deadline.Sub(now).Milliseconds()
	if ms <= 0 {
		return 0
	}
	return int((ms + 999) / 1000)
}

// RemainingMillis is Remaining for epoch-millisecond deadlines as carried on the wire.
func RemainingMillis(deadlineMs int64, now time.Time) int {
	return Remaining(FromMillis(deadlineMs), now)
}

// ToMillis converts t to epoch milliseconds; the zero time maps to 0.
func ToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromMillis converts epoch milliseconds to a time; 0 maps to the zero time.
func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
