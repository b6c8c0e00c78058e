// Package poll implements the fixed-delay retry loop used by health checks
// and log sentinel waits. The number of attempts is bounded only by the
// wall-clock deadline.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrDeadline is returned by Until when the condition was not met in time.
var ErrDeadline = errors.New("deadline elapsed")

// Condition reports whether the awaited state has been reached. A non-nil
// error is treated as "not yet" and retried; the last one is reported if the
// deadline elapses.
type Condition func(ctx context.Context) (bool, error)

// Until evaluates cond immediately and then every interval until it returns
// true, the timeout elapses or ctx is cancelled. cond receives a context that
// expires with the timeout, so a blocking attempt cannot outlive it.
func Until(ctx context.Context, timeout, interval time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for {
		ok, err := cond(dctx)
		if ok {
			return nil
		}
		if err != nil && dctx.Err() == nil {
			lastErr = err
		}

		select {
		case <-dctx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if lastErr != nil {
				return fmt.Errorf("%w: last attempt: %v", ErrDeadline, lastErr)
			}
			return ErrDeadline
		case <-time.After(interval):
		}
	}
}
