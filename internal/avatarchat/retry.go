package avatarchat

import (
	"context"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultDelayBase   = time.Second
)

// RetryPolicy bounds the login retry loop. Backoff is linear: the wait
// before retry n (1-based) is DelayBase*n.
type RetryPolicy struct {
	MaxAttempts int
	DelayBase   time.Duration
}

// DefaultRetryPolicy returns 3 retries with a 1s linear step.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, DelayBase: DefaultDelayBase}
}

// Delay returns the wait before retry n.
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 || p.DelayBase <= 0 {
		return 0
	}
	return p.DelayBase * time.Duration(n)
}

// Schedule lists every wait the policy would perform before giving up, one
// per retry. A non-positive MaxAttempts yields no retries.
func (p RetryPolicy) Schedule() []time.Duration {
	delays := make([]time.Duration, 0, max(p.MaxAttempts, 0))
	for n := 1; n <= p.MaxAttempts; n++ {
		delays = append(delays, p.Delay(n))
	}
	return delays
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext is the default SleepFunc.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
