package worker

import (
	"time"
)

// Event-level redelivery delays, indexed by attempt number (1-based). These
// are spaced far wider than the in-request HTTP retries; they cover outages
// that outlive a single attempt.
var backoffDelays = []time.Duration{
	0,
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	1 * time.Hour,
	3 * time.Hour,
	8 * time.Hour,
	24 * time.Hour,
}

// CalculateBackoffDelay returns the wait before the given attempt number.
// Attempts beyond the table reuse the last delay.
func CalculateBackoffDelay(attemptCount int) time.Duration {
	index := attemptCount - 1
	if index < 0 {
		index = 0
	}
	if index >= len(backoffDelays) {
		index = len(backoffDelays) - 1
	}
	return backoffDelays[index]
}
