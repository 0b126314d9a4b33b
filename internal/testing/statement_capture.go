package testing

import (
	"context"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
)

// StatementCapture records the SQL a connection sends, including COPY
// operations, so integration tests can assert on the statement sequence.
// Thread-safe for concurrent use.
type StatementCapture struct {
	mu         sync.Mutex
	statements []string
}

var (
	_ pgx.QueryTracer    = (*StatementCapture)(nil)
	_ pgx.CopyFromTracer = (*StatementCapture)(nil)
)

// NewStatementCapture creates an empty StatementCapture.
func NewStatementCapture() *StatementCapture {
	return &StatementCapture{}
}

func (sc *StatementCapture) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	sc.record(strings.TrimSpace(data.SQL))
	return ctx
}

func (sc *StatementCapture) TraceQueryEnd(context.Context, *pgx.Conn, pgx.TraceQueryEndData) {}

func (sc *StatementCapture) TraceCopyFromStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceCopyFromStartData) context.Context {
	sc.record("COPY " + data.TableName.Sanitize() + " FROM STDIN")
	return ctx
}

func (sc *StatementCapture) TraceCopyFromEnd(context.Context, *pgx.Conn, pgx.TraceCopyFromEndData) {}

func (sc *StatementCapture) record(stmt string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.statements = append(sc.statements, stmt)
}

// Statements returns a copy of all recorded statements in order.
func (sc *StatementCapture) Statements() []string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	out := make([]string, len(sc.statements))
	copy(out, sc.statements)
	return out
}

// Matching returns recorded statements that start with prefix.
func (sc *StatementCapture) Matching(prefix string) []string {
	var out []string
	for _, s := range sc.Statements() {
		if strings.HasPrefix(s, prefix) {
			out = append(out, s)
		}
	}
	return out
}

// Reset discards everything recorded so far.
func (sc *StatementCapture) Reset() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.statements = nil
}
