// Package timeout bounds asynchronous operations with a labeled
// deadline. The underlying operation is not cancelled on expiry, only
// abandoned: its late result is discarded, never applied.
package timeout

import (
	"errors"
	"fmt"
	"log"
	"time"

	"context"
)

// TimedOutError reports that an operation did not settle within its
// budget. It is a soft failure: callers fall back to cache or defaults.
type TimedOutError struct {
	Label  string
	Budget time.Duration
}

func (e *TimedOutError) Error() string {
	return fmt.Sprintf("operation %q timed out after %s", e.Label, e.Budget)
}

// IsTimeout reports whether err is (or wraps) a TimedOutError.
func IsTimeout(err error) bool {
	var te *TimedOutError
	return errors.As(err, &te)
}

type result[T any] struct {
	val T
	err error
}

// Run starts op and races it against a timer of the given budget.
// Whichever settles first determines the outcome. The result channel is
// buffered so an abandoned op still completes its goroutine; the timer
// is stopped on every path.
func Run[T any](ctx context.Context, budget time.Duration, label string, op func(context.Context) (T, error)) (T, error) {
	timer := time.NewTimer(budget)
	defer timer.Stop()

	ch := make(chan result[T], 1)
	go func() {
		val, err := op(ctx)
		ch <- result[T]{val: val, err: err}
	}()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-timer.C:
		log.Printf("[warn] operation=%s timed out after %s", label, budget)
		var zero T
		return zero, &TimedOutError{Label: label, Budget: budget}
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
