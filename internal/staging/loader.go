package staging

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// Loader creates and fills staging tables.
type Loader struct {
	logger pgbulk.Logger
	onRow  func(n int64)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithRowObserver calls fn with the running row count after each row is
// handed to COPY.
func WithRowObserver(fn func(n int64)) LoaderOption {
	return func(l *Loader) {
		l.onRow = fn
	}
}

// NewLoader creates a Loader. Panics if logger is nil.
func NewLoader(logger pgbulk.Logger, opts ...LoaderOption) *Loader {
	if logger == nil {
		panic("logger cannot be nil")
	}
	l := &Loader{logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewName returns a fresh staging table name, unique per call.
func NewName() string {
	return pgbulk.StagingTablePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateStatement returns the DDL creating the staging table for table.
// The table is dropped automatically when the transaction ends.
func CreateStatement(table *pgbulk.Table, name string) string {
	return fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING ALL) ON COMMIT DROP",
		pgx.Identifier{name}.Sanitize(), table.Qualified())
}

// DropIdentityStatements returns one ALTER per key or identity column.
func DropIdentityStatements(table *pgbulk.Table, name string) []string {
	var stmts []string
	staging := pgx.Identifier{name}.Sanitize()
	for _, c := range table.Columns {
		if !c.PrimaryKey && !c.Identity {
			continue
		}
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP IDENTITY IF EXISTS",
			staging, pgx.Identifier{c.Name}.Sanitize()))
	}
	return stmts
}

// Stage creates the staging table and streams rows into it.
// It returns the row count read back from the staging table.
// exec must be the transaction the merge will run in.
func (l *Loader) Stage(ctx context.Context, exec pgbulk.Executor, table *pgbulk.Table, name string, rows iter.Seq2[any, error]) (int64, error) {
	create := CreateStatement(table, name)
	l.logger.Verbose("Creating staging table: %s", create)
	if _, err := exec.Exec(ctx, create); err != nil {
		return 0, fmt.Errorf("%w: create staging table %s: %w", pgbulk.ErrStagingFailed, name, err)
	}

	for _, stmt := range DropIdentityStatements(table, name) {
		l.logger.Verbose("%s", stmt)
		if _, err := exec.Exec(ctx, stmt); err != nil {
			return 0, fmt.Errorf("%w: drop identity on %s: %w", pgbulk.ErrStagingFailed, name, err)
		}
	}

	src := newRowSource(rows, table.Columns)
	src.onRow = l.onRow
	defer src.stop()

	copied, err := exec.CopyFrom(ctx, pgx.Identifier{name}, table.ColumnNames(), src)
	if err != nil {
		return 0, fmt.Errorf("%w: copy rows into %s: %w", pgbulk.ErrStagingFailed, name, err)
	}
	l.logger.Verbose("Copied %d rows into %s", copied, name)

	var staged int64
	if err := exec.QueryRow(ctx, "SELECT COUNT(*) FROM "+pgx.Identifier{name}.Sanitize()).Scan(&staged); err != nil {
		return 0, fmt.Errorf("%w: count rows in %s: %w", pgbulk.ErrStagingFailed, name, err)
	}
	l.logger.Info("Staged %d rows for %s", staged, table)

	return staged, nil
}
