package testing

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/pgbulk/internal/testinfra"
)

// TestConnEnvVar names the environment variable that points integration
// tests at an existing server instead of a testcontainer.
const TestConnEnvVar = "PGBULK_TEST_CONN"

var (
	testContainerOnce sync.Once
	testContainerConn string
	testContainerErr  error
)

func getOrStartTestContainer() (string, error) {
	testContainerOnce.Do(func() {
		container, err := testinfra.StartPostgres(context.Background())
		if err != nil {
			testContainerErr = err
			return
		}
		testContainerConn = container.ConnString
	})
	return testContainerConn, testContainerErr
}

// GetTestConnectionString returns the test database connection string.
// Priority: PGBULK_TEST_CONN env var > auto-started testcontainer > skip test.
func GetTestConnectionString(t *testing.T) string {
	t.Helper()

	if connString := os.Getenv(TestConnEnvVar); connString != "" {
		return connString
	}

	connString, err := getOrStartTestContainer()
	if err != nil {
		t.Skipf("%s not set and Docker unavailable: %v", TestConnEnvVar, err)
	}
	return connString
}

// SkipIfShort skips the test if running in short mode (-short flag).
func SkipIfShort(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// RequireDatabase combines SkipIfShort and GetTestConnectionString for convenience.
// Returns the test connection string if available, otherwise skips the test.
func RequireDatabase(t *testing.T) string {
	t.Helper()

	SkipIfShort(t)
	return GetTestConnectionString(t)
}

// NewIsolatedPool connects to the test database with a private schema first
// on the search_path, so tests can create tables with fixed names without
// colliding. The schema is dropped and the pool closed when the test ends.
// It returns the pool and the schema name.
func NewIsolatedPool(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()
	return newIsolatedPool(t, nil)
}

// NewTracedPool is NewIsolatedPool with every statement and COPY recorded in capture.
func NewTracedPool(t *testing.T, capture *StatementCapture) (*pgxpool.Pool, string) {
	t.Helper()
	return newIsolatedPool(t, capture)
}

func newIsolatedPool(t *testing.T, tracer pgx.QueryTracer) (*pgxpool.Pool, string) {
	t.Helper()

	connString := RequireDatabase(t)
	ctx := context.Background()
	schema := "pgbulk_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	admin, err := pgx.Connect(ctx, connString)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+pgx.Identifier{schema}.Sanitize()); err != nil {
		admin.Close(ctx)
		t.Fatalf("Failed to create test schema %s: %v", schema, err)
	}
	admin.Close(ctx)

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		t.Fatalf("Failed to parse connection string: %v", err)
	}
	config.ConnConfig.RuntimeParams["search_path"] = schema
	config.MaxConns = 4
	if tracer != nil {
		config.ConnConfig.Tracer = tracer
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		t.Fatalf("Failed to create connection pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		conn, err := pgx.Connect(context.Background(), connString)
		if err != nil {
			t.Logf("Warning: Failed to connect for cleanup: %v", err)
			return
		}
		defer conn.Close(context.Background())
		if _, err := conn.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+pgx.Identifier{schema}.Sanitize()+" CASCADE"); err != nil {
			t.Logf("Warning: Failed to drop schema %s: %v", schema, err)
		}
	})

	return pool, schema
}

// Exec runs statements on pool and fails the test on the first error.
func Exec(t *testing.T, pool *pgxpool.Pool, statements ...string) {
	t.Helper()

	for _, stmt := range statements {
		if _, err := pool.Exec(context.Background(), stmt); err != nil {
			t.Fatalf("Failed to execute %q: %v", stmt, err)
		}
	}
}

// Count returns SELECT COUNT(*) for the given table.
func Count(t *testing.T, pool *pgxpool.Pool, table string) int64 {
	t.Helper()

	var n int64
	if err := pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+pgx.Identifier{table}.Sanitize()).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}
