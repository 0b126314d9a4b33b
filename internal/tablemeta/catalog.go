package tablemeta

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Generated columns are left out: they cannot be written by COPY or INSERT.
const catalogQuery = `
SELECT a.attname,
       pg_catalog.format_type(a.atttypid, a.atttypmod),
       a.attidentity <> '' AS is_identity,
       COALESCE(a.attnum = ANY(i.indkey), false) AS is_pk
FROM pg_catalog.pg_attribute a
JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
LEFT JOIN pg_catalog.pg_index i ON i.indrelid = c.oid AND i.indisprimary
WHERE c.relname = $1::text
  AND n.nspname = COALESCE(NULLIF($2::text, ''), current_schema())
  AND c.relkind IN ('r', 'p')
  AND a.attnum > 0
  AND NOT a.attisdropped
  AND a.attgenerated = ''
ORDER BY a.attnum`

// LoadCatalog describes schema.name from the database catalog. An empty
// schema means the connection's current schema. Rows for the returned table
// are map[string]any keyed by column name; absent keys read as NULL.
func LoadCatalog(ctx context.Context, q Querier, schema, name string) (*pgbulk.Table, error) {
	rows, err := q.Query(ctx, catalogQuery, name, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog for %s: %w", displayName(schema, name), err)
	}
	defer rows.Close()

	tbl := &pgbulk.Table{Schema: schema, Name: name}
	for rows.Next() {
		var col pgbulk.Column
		if err := rows.Scan(&col.Name, &col.DataType, &col.Identity, &col.PrimaryKey); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		col.Value = mapAccessor(col.Name)
		tbl.Columns = append(tbl.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read catalog for %s: %w", displayName(schema, name), err)
	}

	if len(tbl.Columns) == 0 {
		return nil, fmt.Errorf("table %s not found: %w", displayName(schema, name), pgbulk.ErrSchemaMismatch)
	}
	if err := tbl.Validate(); err != nil {
		return nil, err
	}
	return tbl, nil
}

func mapAccessor(column string) func(any) (any, error) {
	return func(row any) (any, error) {
		m, ok := row.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("row of type %T, want map[string]any: %w", row, pgbulk.ErrInvalidInput)
		}
		return m[column], nil
	}
}

func displayName(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}
