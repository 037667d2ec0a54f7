package helper

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// GetTypedValueOf2 asserts the result of a comma-ok getter to T.
// ok is false when the getter found nothing or the value is not a T.
func GetTypedValueOf2[T any](getFn func() (any, bool)) (res T, ok bool) {
	var raw any
	if raw, ok = getFn(); ok {
		res, ok = raw.(T)
	}
	return
}

var ErrMaxAttempts = errors.New("max attempts reached")

// Retry calls fn until it succeeds, up to maxAttempts times, sleeping
// backoff between attempts. The last failure is wrapped with ErrMaxAttempts.
func Retry(ctx context.Context, maxAttempts int, backoff time.Duration, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= maxAttempts {
			return fmt.Errorf("%w: %d, %w", ErrMaxAttempts, attempt, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry interrupted after %d attempts: %w", attempt, errors.Join(ctx.Err(), err))
		case <-time.After(backoff):
		}
	}
}
