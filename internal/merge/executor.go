package merge

import (
	"context"
	"fmt"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// Executor runs merge plans.
type Executor struct {
	logger pgbulk.Logger
}

// NewExecutor creates an Executor. Panics if logger is nil.
func NewExecutor(logger pgbulk.Logger) *Executor {
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Executor{logger: logger}
}

// Execute runs plan in exec, which must be the transaction holding the
// staging table. It returns the number of target rows inserted or updated.
func (e *Executor) Execute(ctx context.Context, exec pgbulk.Executor, plan *Plan) (int64, error) {
	e.logger.Verbose("Merge statement:\n%s", plan.SQL)
	if plan.Condition != "" {
		e.logger.Verbose("Merge condition: %s", plan.Condition)
	}

	tag, err := exec.Exec(ctx, plan.SQL, plan.Args...)
	if err != nil {
		e.logger.Error("Merge failed: %v\nStatement: %s", err, preview(plan.SQL))
		return 0, fmt.Errorf("%w: %w", pgbulk.ErrMergeFailed, err)
	}

	affected := tag.RowsAffected()
	e.logger.Info("Merged %d rows", affected)

	if plan.CountTarget && plan.Target != "" {
		var total int64
		if err := exec.QueryRow(ctx, "SELECT COUNT(*) FROM "+plan.Target).Scan(&total); err != nil {
			return 0, fmt.Errorf("%w: count rows in %s: %w", pgbulk.ErrMergeFailed, plan.Target, err)
		}
		e.logger.Verbose("%s holds %d rows after merge", plan.Target, total)
	}
	return affected, nil
}

func preview(sql string) string {
	if len(sql) <= pgbulk.MaxErrorPreviewLength {
		return sql
	}
	return sql[:pgbulk.MaxErrorPreviewLength] + "..."
}
