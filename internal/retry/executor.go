package retry

import (
	"context"
	"time"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// Executor runs an operation until it succeeds, fails permanently or runs
// out of retries. It is safe for concurrent use.
type Executor struct {
	classifier pgbulk.ErrorClassifier
	backoff    pgbulk.BackoffStrategy
	onRetry    func(attempt int, err error, delay time.Duration)
}

// NewExecutor panics if either dependency is nil.
func NewExecutor(classifier pgbulk.ErrorClassifier, backoff pgbulk.BackoffStrategy) *Executor {
	if classifier == nil {
		panic("classifier cannot be nil")
	}
	if backoff == nil {
		panic("backoff cannot be nil")
	}
	return &Executor{classifier: classifier, backoff: backoff}
}

// WithOnRetry returns a copy that calls fn before each wait.
func (e *Executor) WithOnRetry(fn func(attempt int, err error, delay time.Duration)) *Executor {
	clone := *e
	clone.onRetry = fn
	return &clone
}

// Execute returns nil on the first success, or the last error seen.
func (e *Executor) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Do(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Do is Execute for operations that produce a value.
func Do[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	limit := e.backoff.MaxAttempts()
	for attempt := 0; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if !e.classifier.IsTransient(err) || (limit >= 0 && attempt >= limit) {
			return v, err
		}

		delay := e.backoff.NextDelay(attempt)
		if e.onRetry != nil {
			e.onRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}
