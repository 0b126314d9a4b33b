// Package db turns connection settings into pgx pools.
//
// Connection strings are accepted as PostgreSQL URIs, libpq keyword/value
// strings and ADO.NET strings. ResolveConnectionParams merges a connection
// string, libpq-style flags, PG* environment variables and pgbulk.yaml into a
// single pgbulk.ConnectionConfig. NewConnector then picks a connector for its
// AuthMethod: plain password, AWS RDS IAM and Azure Entra ID tokens, or the
// Google Cloud SQL dialer. Connection attempts are retried on transient
// failures.
package db
