// Package backoff implements the exponential delay policy used by the
// reconnection supervisor.
package backoff

import (
	"context"
	"math"
	"time"
)

// Policy holds backoff configuration
type Policy struct {
	InitialDelay       time.Duration // First delay after a failure
	MaxDelay           time.Duration // Cap on the computed delay
	Multiplier         float64       // Exponential growth factor (typically 2.0)
	StabilityThreshold time.Duration // Uninterrupted run time after which the delay resets
}

// DefaultPolicy returns the relay defaults: 1s doubling up to 30s, reset
// after 60s of sustained running.
func DefaultPolicy() Policy {
	return Policy{
		InitialDelay:       1 * time.Second,
		MaxDelay:           30 * time.Second,
		Multiplier:         2.0,
		StabilityThreshold: 60 * time.Second,
	}
}

// Backoff tracks consecutive failures for one session. Not safe for
// concurrent use; each supervisor owns its own instance.
type Backoff struct {
	policy  Policy
	attempt int
}

// New creates a Backoff at the initial delay.
func New(policy Policy) *Backoff {
	return &Backoff{policy: policy}
}

// Next returns the delay for the current failure and advances the attempt
// counter. Delays are non-decreasing up to the policy cap.
func (b *Backoff) Next() time.Duration {
	delay := float64(b.policy.InitialDelay) * math.Pow(b.policy.Multiplier, float64(b.attempt))
	if delay > float64(b.policy.MaxDelay) {
		delay = float64(b.policy.MaxDelay)
	} else {
		b.attempt++
	}
	return time.Duration(delay)
}

// ObserveRun resets the attempt counter when the preceding run was long
// enough to count as stable. A single blip after a long healthy run restarts
// from the initial delay instead of compounding.
func (b *Backoff) ObserveRun(runtime time.Duration) {
	if runtime >= b.policy.StabilityThreshold {
		b.Reset()
	}
}

// Reset returns the backoff to the initial delay.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Sleep waits for d or until ctx is done, whichever comes first. Returns
// ctx.Err() when cancelled during the wait.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
