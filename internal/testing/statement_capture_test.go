package testing

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestStatementCapture_RecordsInOrder(t *testing.T) {
	sc := NewStatementCapture()
	ctx := context.Background()

	sc.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "  CREATE TEMP TABLE x ()\n"})
	sc.TraceCopyFromStart(ctx, nil, pgx.TraceCopyFromStartData{TableName: pgx.Identifier{"x"}})
	sc.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "INSERT INTO y SELECT * FROM x"})

	assert.Equal(t, []string{
		"CREATE TEMP TABLE x ()",
		`COPY "x" FROM STDIN`,
		"INSERT INTO y SELECT * FROM x",
	}, sc.Statements())
	assert.Equal(t, []string{"INSERT INTO y SELECT * FROM x"}, sc.Matching("INSERT"))

	sc.Reset()
	assert.Empty(t, sc.Statements())
}
