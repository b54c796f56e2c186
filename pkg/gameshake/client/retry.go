package client

import (
	"context"
	"math"
	"time"
)

// RetryConfig controls the retry loop for retryable API errors.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the first retry, before jitter.
	BaseDelay time.Duration
	// MaxDelay caps every delay.
	MaxDelay time.Duration
}

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 30 * time.Second

	jitterLow  = 0.8
	jitterSpan = 0.4
)

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   defaultBaseDelay,
		MaxDelay:    defaultMaxDelay,
	}
}

// WithDefaults fills zero fields from DefaultRetryConfig.
func (r RetryConfig) WithDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = def.MaxAttempts
	}
	if r.BaseDelay <= 0 {
		r.BaseDelay = def.BaseDelay
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = def.MaxDelay
	}
	return r
}

// Delay returns the wait before retry n (n >= 1):
// min(BaseDelay * 2^(n-1) * jitter, MaxDelay) with jitter in [0.8, 1.2).
// random must be in [0, 1).
func (r RetryConfig) Delay(n int, random float64) time.Duration {
	if n < 1 {
		n = 1
	}
	factor := jitterLow + jitterSpan*random
	d := float64(r.BaseDelay) * math.Pow(2, float64(n-1)) * factor
	if math.IsInf(d, 0) || d >= float64(r.MaxDelay) {
		return r.MaxDelay
	}
	return time.Duration(d)
}

// Sleeper waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
