package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutError is returned when the deadline elapses before the operation
// succeeds. It carries the operation name and the last attempt's error.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
	Last    error
}

func (e *TimeoutError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("%s: timed out after %s: %v", e.Op, e.Timeout, e.Last)
	}
	return fmt.Sprintf("%s: timed out after %s", e.Op, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return e.Last
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// Until polls fn every interval until it returns nil, the timeout elapses,
// or ctx is cancelled. The first attempt runs immediately on entry.
// Cancellation is checked every iteration so an operator abort never waits
// out a full interval.
func Until(ctx context.Context, op string, interval, timeout time.Duration, fn func() error) error {
	_, err := UntilValue(ctx, op, interval, timeout, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// UntilValue is Until for operations that produce a value on success.
func UntilValue[T any](ctx context.Context, op string, interval, timeout time.Duration, fn func() (T, error)) (T, error) {
	var zero T

	deadline := time.After(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%s: cancelled: %w", op, ctx.Err())
		case <-deadline:
			return zero, &TimeoutError{Op: op, Timeout: timeout, Last: lastErr}
		case <-ticker.C:
		}
	}
}

// Sleep waits for d or until ctx is cancelled, whichever comes first.
// Settle delays between lifecycle steps go through this so they stay
// interruptible.
func Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
