package textgen

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// retryPolicy is a small retry combinator: a fixed short delay with jitter
// between attempts, gated by a transient-error predicate. The low attempt
// count makes exponential backoff unnecessary.
type retryPolicy struct {
	attempts int
	delay    time.Duration
	sleep    func(context.Context, time.Duration) error
}

func newRetryPolicy(attempts int, delay time.Duration) retryPolicy {
	if attempts <= 0 {
		attempts = 1
	}
	return retryPolicy{attempts: attempts, delay: delay, sleep: sleepContext}
}

// run executes op until it succeeds, a permanent error occurs, or attempts
// are exhausted.
func (p retryPolicy) run(ctx context.Context, transient func(error) bool, op func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !transient(err) || ctx.Err() != nil {
			return "", err
		}
		if attempt == p.attempts {
			break
		}
		if err := p.sleep(ctx, p.jittered()); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("after %d attempts: %w", p.attempts, lastErr)
}

func (p retryPolicy) jittered() time.Duration {
	if p.delay <= 0 {
		return 0
	}
	return p.delay + time.Duration(rand.Int63n(int64(p.delay/2)+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
