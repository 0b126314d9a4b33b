package pgbulk

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Beginner opens the transaction a bulk upsert runs in.
//
// *pgxpool.Pool, *pgxpool.Conn, *pgx.Conn and pgx.Tx all satisfy it. Passing a
// pgx.Tx nests the upsert in a savepoint of the caller's transaction.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Acquirer is implemented by connection pools. The staging table lives in the
// session's pg_temp schema, so when the caller hands over a pool one dedicated
// connection is acquired for the whole call and released exactly once.
type Acquirer interface {
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
}

// Executor is the subset of pgx.Tx used by the staging and merge components.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Connector is a unified interface for establishing database connections.
// Different implementations handle various authentication methods
// (standard credentials, cloud IAM, etc.).
type Connector interface {
	// Connect establishes a connection pool to the database.
	// The returned pool should be closed by the caller when done.
	Connect(ctx context.Context) (*pgxpool.Pool, error)
}

// MetadataProvider resolves table metadata for a row shape.
// shape is a sample value of the row type (for example a zero struct).
type MetadataProvider interface {
	TableFor(shape any) (*Table, error)
}
