package helper

import (
	"math/rand/v2"
	"time"
)

// Backoff is exponential backoff between Min and Max with optional jitter
// (fraction of the wait, 0..1).
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64
}

// Next returns the wait before the given attempt (1-based).
func (b Backoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	min := b.Min
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	max := b.Max
	if max < min {
		max = min
	}
	factor := b.Factor
	if factor <= 1 {
		factor = 2.0
	}

	wait := min
	for i := 1; i < attempt; i++ {
		next := time.Duration(float64(wait) * factor)
		if next > max {
			wait = max
			break
		}
		wait = next
	}

	if b.Jitter <= 0 {
		return wait
	}
	jitter := min64(b.Jitter, 1)
	delta := float64(wait) * jitter
	return wait - time.Duration(delta) + time.Duration(rand.Float64()*2*delta)
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Retry counts consecutive failures and hands out the matching backoff.
// Not safe for concurrent use.
type Retry struct {
	Backoff  Backoff
	failures int
}

// Fail records a failure and returns how long to wait.
func (r *Retry) Fail() time.Duration {
	r.failures++
	return r.Backoff.Next(r.failures)
}

func (r *Retry) Reset() { r.failures = 0 }

func (r *Retry) Failures() int { return r.failures }

// Sleep waits d or until ctx-like done fires; false when done fired first.
func Sleep(done <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-done:
		return false
	case <-t.C:
		return true
	}
}
