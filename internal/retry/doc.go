// Package retry retries connection attempts that fail for transient reasons.
//
// A Classifier decides which errors are worth another attempt and an
// Exponential backoff decides how long to wait between them:
//
//	exec := retry.NewExecutor(retry.NewClassifier(), retry.NewExponential(3))
//	pool, err := retry.Do(ctx, exec, func(ctx context.Context) (*pgxpool.Pool, error) {
//	    return pgxpool.NewWithConfig(ctx, cfg)
//	})
//
// Only connection establishment is retried. Once rows have been streamed into
// a staging table the transaction cannot be replayed, so failures inside an
// upsert are reported rather than retried.
package retry
