package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 30*time.Second, p.BaseDelay)
	assert.Equal(t, 30*time.Minute, p.MaxDelay)
	assert.NoError(t, p.Validate())
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.Equal(t, 30*time.Second, p.Backoff(0))
	assert.Equal(t, 30*time.Second, p.Backoff(1))
	assert.Equal(t, time.Minute, p.Backoff(2))
	assert.Equal(t, 2*time.Minute, p.Backoff(3))
	assert.Equal(t, 4*time.Minute, p.Backoff(4))
	assert.Equal(t, 30*time.Minute, p.Backoff(7))
	assert.Equal(t, 30*time.Minute, p.Backoff(100))
}

func TestRetryPolicy_DelayWithinJitterBounds(t *testing.T) {
	p := DefaultRetryPolicy()

	for attempts := 1; attempts < p.MaxAttempts; attempts++ {
		lo, hi := p.Bounds(attempts)
		for _, r := range []float64{0, 0.25, 0.5, 0.75, 0.999999} {
			d := p.DecideWith(attempts, r)
			assert.False(t, d.Terminal)
			assert.GreaterOrEqual(t, d.Delay, lo, "attempts=%d r=%v", attempts, r)
			assert.LessOrEqual(t, d.Delay, hi, "attempts=%d r=%v", attempts, r)
		}
		for i := 0; i < 50; i++ {
			d := p.Decide(attempts)
			assert.GreaterOrEqual(t, d.Delay, lo)
			assert.LessOrEqual(t, d.Delay, hi)
		}
	}
}

func TestRetryPolicy_BoundsNeverExceedCap(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 20, BaseDelay: time.Minute, MaxDelay: 10 * time.Minute, Jitter: 0.5}

	lo, hi := p.Bounds(10)
	assert.Equal(t, 5*time.Minute, lo)
	assert.Equal(t, 10*time.Minute, hi)
}

func TestRetryPolicy_TerminalOnceBudgetSpent(t *testing.T) {
	p := DefaultRetryPolicy()

	for attempts := p.MaxAttempts; attempts < p.MaxAttempts+10; attempts++ {
		for _, r := range []float64{0, 0.5, 0.99} {
			assert.True(t, p.DecideWith(attempts, r).Terminal, "attempts=%d", attempts)
		}
	}
	assert.False(t, p.DecideWith(p.MaxAttempts-1, 0).Terminal)
}

func TestRetryPolicy_NonDecreasingBackoff(t *testing.T) {
	p := DefaultRetryPolicy()
	prev := time.Duration(0)
	for attempts := 1; attempts < 30; attempts++ {
		d := p.Backoff(attempts)
		assert.GreaterOrEqual(t, d, prev)
		prev = d
	}
}

func TestRetryPolicy_Validate(t *testing.T) {
	tests := []struct {
		name   string
		policy RetryPolicy
		valid  bool
	}{
		{"default", DefaultRetryPolicy(), true},
		{"zero attempts", RetryPolicy{MaxAttempts: 0}, false},
		{"negative delay", RetryPolicy{MaxAttempts: 1, BaseDelay: -time.Second}, false},
		{"jitter too large", RetryPolicy{MaxAttempts: 1, Jitter: 1}, false},
		{"no delay", RetryPolicy{MaxAttempts: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidInput)
			}
		})
	}
}

func TestRetryDecision_String(t *testing.T) {
	assert.Equal(t, "terminal failure", RetryDecision{Terminal: true}.String())
	assert.Equal(t, "retry after 30s", RetryDecision{Delay: 30 * time.Second}.String())
}
