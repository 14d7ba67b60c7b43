package domain

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryPolicy decides what happens after a job fails.
type RetryPolicy struct {
	// MaxAttempts is the attempt count at which failure becomes terminal.
	MaxAttempts int

	// BaseDelay is the backoff after the first failure.
	BaseDelay time.Duration

	// MaxDelay caps the backoff.
	MaxDelay time.Duration

	// Jitter is the relative spread applied to the backoff, in [0, 1).
	// A delay d becomes a value in [d*(1-Jitter), min(MaxDelay, d*(1+Jitter))].
	Jitter float64
}

// DefaultRetryPolicy returns five attempts with 30s base and 30m cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   30 * time.Second,
		MaxDelay:    30 * time.Minute,
		Jitter:      0.2,
	}
}

// Validate checks the policy is usable.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry max attempts must be at least 1", ErrInvalidInput)
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("%w: retry delays must not be negative", ErrInvalidInput)
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		return fmt.Errorf("%w: retry jitter must be in [0, 1)", ErrInvalidInput)
	}
	return nil
}

// RetryDecision is the outcome of applying a RetryPolicy.
type RetryDecision struct {
	// Terminal means the job must not run again.
	Terminal bool

	// Delay is how long to wait before the job is claimable again.
	Delay time.Duration
}

// String returns a short description.
func (d RetryDecision) String() string {
	if d.Terminal {
		return "terminal failure"
	}
	return "retry after " + d.Delay.String()
}

// Backoff returns the un-jittered delay after the given number of attempts.
func (p RetryPolicy) Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= p.MaxDelay || delay <= 0 {
			return p.MaxDelay
		}
	}
	return min(delay, p.MaxDelay)
}

// Bounds returns the range a jittered delay falls in after the given
// number of attempts.
func (p RetryPolicy) Bounds(attempts int) (lo, hi time.Duration) {
	d := p.Backoff(attempts)
	lo = time.Duration(float64(d) * (1 - p.Jitter))
	hi = min(time.Duration(float64(d)*(1+p.Jitter)), p.MaxDelay)
	return lo, hi
}

// DecideWith applies the policy using r in [0, 1) as the jitter sample.
// Attempts counts every claim so far, including the one that just failed.
func (p RetryPolicy) DecideWith(attempts int, r float64) RetryDecision {
	if attempts >= p.MaxAttempts {
		return RetryDecision{Terminal: true}
	}
	lo, hi := p.Bounds(attempts)
	delay := lo + time.Duration(r*float64(hi-lo))
	return RetryDecision{Delay: max(delay, 0)}
}

// Decide applies the policy with a random jitter sample.
func (p RetryPolicy) Decide(attempts int) RetryDecision {
	return p.DecideWith(attempts, rand.Float64()) //nolint:gosec // jitter does not need crypto randomness
}
