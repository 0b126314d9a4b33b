// Package rowsource streams rows for catalog-described tables from CSV and
// newline-delimited JSON files. Rows are map[string]any keyed by column name,
// with values coerced to Go types pgx can encode for the column's PostgreSQL
// type. Files are read lazily: one row is decoded per iteration step.
package rowsource
