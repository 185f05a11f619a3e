package stream

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff configures exponential reconnect delays with jitter.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	// Jitter spreads each delay by up to +/- Jitter of its value.
	Jitter float64
	// MaxRetries is the number of consecutive failures tolerated. Zero means
	// unlimited.
	MaxRetries int
}

// Retrier hands out the delays for one run of consecutive failures. It is not
// safe for concurrent use.
type Retrier struct {
	max    time.Duration
	policy backoff.BackOff
}

// NewRetrier builds a retrier from b. Delays double from Initial up to Max and
// never exceed Max, jitter included.
func (b Backoff) NewRetrier() *Retrier {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = b.Initial
	if b.Max > 0 {
		exp.MaxInterval = b.Max
	}
	exp.RandomizationFactor = b.Jitter
	exp.Multiplier = 2
	exp.MaxElapsedTime = 0
	exp.Reset()

	var policy backoff.BackOff = exp
	if b.MaxRetries > 0 {
		policy = backoff.WithMaxRetries(exp, uint64(b.MaxRetries))
	}
	return &Retrier{max: b.Max, policy: policy}
}

// Next returns the wait before the next attempt. ok is false once the retry
// budget is spent.
func (r *Retrier) Next() (d time.Duration, ok bool) {
	d = r.policy.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	if r.max > 0 && d > r.max {
		d = r.max
	}
	return d, true
}

// Reset starts a fresh run, restoring the initial delay and the full budget.
func (r *Retrier) Reset() { r.policy.Reset() }

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
