package queue

import "time"

// Backoff returns the sleep duration after the given number of consecutive
// empty polls: the initial delay after the first, doubling per empty poll,
// capped at max. Zero consecutive empty polls means no sleep. Kept as a pure
// function of the counter so it is testable without real delays.
func Backoff(initial, max time.Duration, consecutiveEmpty int) time.Duration {
	if consecutiveEmpty <= 0 || initial <= 0 {
		return 0
	}

	d := initial
	for i := 1; i < consecutiveEmpty; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
