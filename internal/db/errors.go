package db

import (
	"fmt"
	"strings"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// explainConnectionError adds likely causes to common connection failures.
// The result always wraps both pgbulk.ErrConnectionFailed and err.
func explainConnectionError(err error, cfg *pgbulk.ConnectionConfig) error {
	msg := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var hint string
	switch {
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "actively refused"):
		hint = fmt.Sprintf(`connection refused by %s

Possible causes:
  - PostgreSQL is not running (check: pg_isready -h %s -p %d)
  - Wrong host or port`, addr, cfg.Host, cfg.Port)

	case strings.Contains(msg, "no such host"):
		hint = fmt.Sprintf(`cannot resolve host %q

Possible causes:
  - Hostname is misspelled
  - DNS is not reachable`, cfg.Host)

	case strings.Contains(msg, "password authentication failed"):
		hint = fmt.Sprintf(`password authentication failed for user %q

Possible causes:
  - Wrong password (check $PGPASSWORD or ~/.pgpass)
  - Expired cloud token (auth method %s)`, cfg.Username, cfg.AuthMethod)

	case strings.Contains(msg, "database") && strings.Contains(msg, "does not exist"):
		hint = fmt.Sprintf(`database %q does not exist

pgbulk never creates databases; create it first with: createdb %s`, cfg.Database, cfg.Database)

	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		hint = fmt.Sprintf(`connection to %s timed out

Possible causes:
  - Server is overloaded or a firewall drops packets
  - Wrong host or port`, addr)

	case strings.Contains(msg, "ssl") || strings.Contains(msg, "tls"):
		hint = `SSL/TLS negotiation failed

Possible causes:
  - Server requires SSL but --sslmode is disable
  - Certificate verification failed (try --sslmode=require)`

	case strings.Contains(msg, "too many connections"):
		hint = fmt.Sprintf(`too many connections to database %q

max_connections is exhausted; retry later or lower client pool sizes`, cfg.Database)

	default:
		return fmt.Errorf("%w to %s: %w", pgbulk.ErrConnectionFailed, addr, err)
	}

	return fmt.Errorf("%w: %s\n\nOriginal error: %w", pgbulk.ErrConnectionFailed, hint, err)
}
