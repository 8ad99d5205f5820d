package worker

import (
	"time"
)

// RetryPolicy controls the wait between attempts of a failing operation.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay computes the wait before the given attempt (counted from 1).
// The first attempt waits InitialDelay; every further one multiplies by
// BackoffFactor and never exceeds MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	base := r.InitialDelay
	if base <= 0 {
		base = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	d := float64(base)
	for i := 1; i < attempt; i++ {
		d *= factor
		if r.MaxDelay > 0 && d >= float64(r.MaxDelay) {
			return r.MaxDelay
		}
	}

	out := time.Duration(d)
	if out <= 0 {
		out = time.Second
	}
	if r.MaxDelay > 0 && out > r.MaxDelay {
		out = r.MaxDelay
	}
	return out
}
