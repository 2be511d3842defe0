// Package clock holds the pure countdown arithmetic for timed games.
// Time is tracked as a duration with millisecond precision and surfaced
// to clients rounded up to whole seconds, so a display showing "0:01"
// always still has time on the clock.
package clock

import "time"

// Elapse charges used wall time against a side's remaining time and
// credits its increment, clamped at zero.
func Elapse(remaining, used, increment time.Duration) time.Duration {
	r := remaining - used + increment
	if r < 0 {
		return 0
	}
	return r
}

func Expired(remaining time.Duration) bool {
	return remaining <= 0
}

// Seconds converts remaining time to the displayed value, rounding up.
func Seconds(remaining time.Duration) int {
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Second - 1) / time.Second)
}
