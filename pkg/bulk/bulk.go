// Package bulk is the entry point for bulk upserts into PostgreSQL.
//
//	type Person struct {
//		ID   int64  `db:"Id,pk"`
//		Name string `db:"Name"`
//	}
//
//	res, err := bulk.UpsertSlice(ctx, pool, people, &pgbulk.Options{
//		MergeCondition: pgbulk.When(pgbulk.Ne(pgbulk.Existing("Name"), pgbulk.Incoming("Name"))),
//	})
//
// Rows are staged with binary COPY into a temporary table and merged with a
// single INSERT ... ON CONFLICT statement, all in one transaction.
package bulk

import (
	"context"
	"iter"
	"slices"

	"github.com/vvka-141/pgbulk/internal/logging"
	"github.com/vvka-141/pgbulk/internal/services"
	"github.com/vvka-141/pgbulk/internal/tablemeta"
	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

var structs = services.NewBulkService(
	tablemeta.NewReflectProvider(),
	logging.NewNullLogger(),
	pgbulk.NoopMetricsReporter{},
)

// Upsert merges rows of struct type T into the table T maps to.
// rows is consumed once, one row at a time.
func Upsert[T any](ctx context.Context, db pgbulk.Beginner, rows iter.Seq[T], opts *pgbulk.Options) (pgbulk.Result, error) {
	var shape T
	return structs.Upsert(ctx, db, shape, erase(rows), opts)
}

// UpsertSlice is Upsert over a slice.
func UpsertSlice[T any](ctx context.Context, db pgbulk.Beginner, rows []T, opts *pgbulk.Options) (pgbulk.Result, error) {
	return Upsert(ctx, db, slices.Values(rows), opts)
}

// UpsertWithConnector opens a pool with connector, upserts and closes the pool.
func UpsertWithConnector[T any](ctx context.Context, connector pgbulk.Connector, rows iter.Seq[T], opts *pgbulk.Options) (pgbulk.Result, error) {
	var shape T
	return structs.UpsertWithConnector(ctx, connector, shape, erase(rows), opts)
}

// UpsertRows merges rows described by an explicit table, such as one loaded
// with LoadTable. Each row is read through the table's column accessors; an
// error yielded by rows aborts the call.
func UpsertRows(ctx context.Context, db pgbulk.Beginner, table *pgbulk.Table, rows iter.Seq2[any, error], opts *pgbulk.Options) (pgbulk.Result, error) {
	svc := services.NewBulkService(tablemeta.Static{Table: table}, logging.NewNullLogger(), pgbulk.NoopMetricsReporter{})
	return svc.Upsert(ctx, db, nil, rows, opts)
}

// LoadTable describes schema.name from the database catalog. Rows for the
// returned table are map[string]any keyed by column name.
func LoadTable(ctx context.Context, q tablemeta.Querier, schema, name string) (*pgbulk.Table, error) {
	return tablemeta.LoadCatalog(ctx, q, schema, name)
}

func erase[T any](rows iter.Seq[T]) iter.Seq2[any, error] {
	if rows == nil {
		return nil
	}
	return func(yield func(any, error) bool) {
		for r := range rows {
			if !yield(r, nil) {
				return
			}
		}
	}
}
