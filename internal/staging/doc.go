// Package staging loads a row set into a transaction-scoped temporary table
// shaped like the target table.
//
// The staging table is created with LIKE ... INCLUDING ALL so column types,
// defaults and constraints match the target. Identity is dropped from key and
// identity columns so the caller's key values are stored as given. Rows are
// streamed with the binary COPY protocol one at a time.
package staging
