// Package testinfra starts throwaway PostgreSQL servers for integration tests.
package testinfra

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DefaultImage is the server image used unless PGBULK_TEST_IMAGE names another.
// Identity columns require PostgreSQL 10 or newer.
const DefaultImage = "postgres:17-alpine"

// ImageEnvVar overrides DefaultImage, e.g. PGBULK_TEST_IMAGE=postgres:12-alpine.
const ImageEnvVar = "PGBULK_TEST_IMAGE"

const (
	superuser = "postgres"
	password  = "postgres"
	database  = "pgbulk"
)

// Postgres is a running server and a connection string for it.
type Postgres struct {
	container  *postgres.PostgresContainer
	Image      string
	ConnString string
}

// StartPostgres starts a disposable server without TLS. Callers own it and
// must call Stop.
func StartPostgres(ctx context.Context) (*Postgres, error) {
	image := os.Getenv(ImageEnvVar)
	if image == "" {
		image = DefaultImage
	}

	ctr, err := postgres.Run(ctx, image,
		postgres.WithUsername(superuser),
		postgres.WithPassword(password),
		postgres.WithDatabase(database),
		testcontainers.WithWaitStrategy(
			// The entrypoint restarts the server once after initdb.
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", image, err)
	}

	connString, err := ctr.ConnectionString(ctx, "sslmode=disable", "application_name=pgbulk_test")
	if err != nil {
		_ = testcontainers.TerminateContainer(ctr)
		return nil, fmt.Errorf("connection string for %s: %w", image, err)
	}

	return &Postgres{container: ctr, Image: image, ConnString: connString}, nil
}

// Stop terminates the container.
func (p *Postgres) Stop() error {
	return testcontainers.TerminateContainer(p.container)
}
