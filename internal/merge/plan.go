package merge

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/pgbulk/internal/predicate"
	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// Plan is a fully rendered merge statement.
type Plan struct {
	SQL  string
	Args []any

	// Target is the sanitized, schema-qualified target table.
	Target string

	// CountTarget requests a row count of Target after the merge.
	CountTarget bool

	// Action is the conflict action the statement performs. It is DoNothing
	// when DoUpdate was requested for a table without non-key columns.
	Action pgbulk.ConflictAction

	// Degraded is set when the requested DoUpdate became DoNothing.
	Degraded bool

	// Condition is the merge condition with constants inlined, for logs.
	// Empty when no condition applies.
	Condition string
}

// Build renders the merge statement for staging into table.
// The merge condition is translated even under DoNothing, where it is not
// applied, so an invalid condition is always reported.
func Build(table *pgbulk.Table, staging string, opts *pgbulk.Options) (*Plan, error) {
	if opts == nil {
		opts = &pgbulk.Options{}
	}
	keys := table.KeyColumns()
	if len(keys) == 0 {
		return nil, fmt.Errorf("table %s has no primary key: %w", table, pgbulk.ErrSchemaMismatch)
	}

	tr := predicate.NewTranslator(table)
	where, args, err := tr.Translate(opts.MergeCondition)
	if err != nil {
		return nil, fmt.Errorf("merge condition: %w", err)
	}

	plan := &Plan{Action: opts.OnConflict, Target: table.Qualified(), CountTarget: opts.CountTarget}
	updates := table.NonKeyColumns()
	if plan.Action == pgbulk.DoUpdate && len(updates) == 0 {
		plan.Action = pgbulk.DoNothing
		plan.Degraded = true
	}

	cols := joinIdentifiers(table.ColumnNames())

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s AS %s (%s)\n", table.Qualified(), pgbulk.TargetAlias, cols)
	b.WriteString("OVERRIDING SYSTEM VALUE\n")
	fmt.Fprintf(&b, "SELECT %s FROM %s\n", cols, pgx.Identifier{staging}.Sanitize())
	fmt.Fprintf(&b, "ON CONFLICT (%s) ", joinIdentifiers(columnNames(keys)))

	if plan.Action == pgbulk.DoNothing {
		b.WriteString("DO NOTHING")
		plan.SQL = b.String()
		return plan, nil
	}

	sets := make([]string, len(updates))
	for i, c := range updates {
		col := pgx.Identifier{c.Name}.Sanitize()
		sets[i] = col + " = " + pgbulk.ExcludedAlias + "." + col
	}
	fmt.Fprintf(&b, "DO UPDATE SET %s\nWHERE %s", strings.Join(sets, ", "), where)

	plan.SQL = b.String()
	plan.Args = args
	if opts.MergeCondition != nil {
		plan.Condition, _ = tr.Literal(opts.MergeCondition)
	}
	return plan, nil
}

func columnNames(cols []pgbulk.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func joinIdentifiers(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = pgx.Identifier{n}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
