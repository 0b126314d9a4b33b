package db

import (
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// Pool sizing for a CLI process. Each upsert holds one connection for its
// whole transaction, so a handful of connections covers concurrent callers.
const (
	DefaultMaxConns        = 4
	DefaultMinConns        = 1
	DefaultMaxConnIdleTime = 30 * time.Minute
)

// ApplicationName identifies pgbulk sessions in pg_stat_activity when the
// connection string does not name one.
const ApplicationName = "pgbulk"

func configurePool(poolConfig *pgxpool.Config, logger pgbulk.Logger) {
	poolConfig.MaxConns = DefaultMaxConns
	poolConfig.MinConns = DefaultMinConns
	poolConfig.MaxConnIdleTime = DefaultMaxConnIdleTime

	if _, ok := poolConfig.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}

	poolConfig.ConnConfig.OnNotice = func(_ *pgconn.PgConn, notice *pgconn.Notice) {
		logger.Verbose("%s: %s", notice.Severity, notice.Message)
	}
}
