package worker

import (
	"math/rand/v2"
	"time"
)

// RetryPolicy describes how failed sheet tasks are retried. Zero fields take defaults.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// Jitter spreads each delay by ±Jitter of its value, 0..1.
	Jitter float64
}

// withDefaults fills the zero fields: 5 attempts, 2s doubling up to a minute.
func (r RetryPolicy) withDefaults() RetryPolicy {
	if r.MaxRetries <= 0 {
		r.MaxRetries = 5
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = 2 * time.Second
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = time.Minute
	}
	if r.BackoffFactor < 1 {
		r.BackoffFactor = 2
	}
	return r
}

// Exhausted reports whether a task failing on the given attempt (1-based) should be dead-lettered.
func (r RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= r.MaxRetries
}

// NextDelay is InitialDelay·BackoffFactor^(attempt-1), jittered, capped at MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := float64(r.InitialDelay)
	if delay <= 0 {
		delay = float64(time.Second)
	}
	factor := r.BackoffFactor
	if factor < 1 {
		factor = 2
	}
	for i := 1; i < attempt; i++ {
		delay *= factor
		if r.MaxDelay > 0 && delay >= float64(r.MaxDelay) {
			break
		}
	}
	if r.Jitter > 0 && r.Jitter <= 1 {
		delay += delay * r.Jitter * (2*rand.Float64() - 1)
	}

	d := time.Duration(delay)
	if r.MaxDelay > 0 && d > r.MaxDelay {
		return r.MaxDelay
	}
	return max(d, time.Millisecond)
}
