package worker

import (
	"math"
	"time"

	"courtside/internal/config"
)

// RetryPolicy defines exponential backoff parameters.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// RetryPolicyFromConfig converts the YAML retry block; unparsable durations
// are left zero so the consumer's defaults apply.
func RetryPolicyFromConfig(cfg config.RetryPolicyConfig) RetryPolicy {
	policy := RetryPolicy{MaxRetries: cfg.MaxRetries, BackoffFactor: cfg.BackoffFactor}
	if d, err := time.ParseDuration(cfg.InitialDelay); err == nil {
		policy.InitialDelay = d
	}
	if d, err := time.ParseDuration(cfg.MaxDelay); err == nil {
		policy.MaxDelay = d
	}
	return policy
}

// NextDelay returns delay for a given attempt (1-based) with clamping.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = time.Second
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}

	delay := float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1))
	d := time.Duration(delay)
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	if d <= 0 {
		d = time.Second
	}
	return d
}
