package predicate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// ColumnResolver maps a field name used in a condition to a table column.
// *pgbulk.Table satisfies it.
type ColumnResolver interface {
	Lookup(name string) (pgbulk.Column, bool)
}

// Translator converts conditions to SQL. It holds no per-call state and is
// safe for concurrent use.
type Translator struct {
	columns ColumnResolver
}

// NewTranslator creates a Translator resolving field names through columns.
// With a nil resolver field names are used as column names verbatim.
func NewTranslator(columns ColumnResolver) *Translator {
	return &Translator{columns: columns}
}

// Translate renders the condition body as a parenthesized SQL fragment.
// Constants become $1, $2, ... placeholders and are returned in args.
// A nil condition translates to "TRUE".
func (t *Translator) Translate(cond *pgbulk.Condition) (string, []any, error) {
	if cond == nil {
		return "TRUE", nil, nil
	}
	p := &printer{translator: t, cond: cond}
	p.bind = p.placeholder
	if err := p.print(cond.Body); err != nil {
		return "", nil, err
	}
	return p.sb.String(), p.args, nil
}

// Literal renders the condition with constants inlined. The output is for
// logs and error messages; statements sent to the server use Translate.
func (t *Translator) Literal(cond *pgbulk.Condition) (string, error) {
	if cond == nil {
		return "TRUE", nil
	}
	p := &printer{translator: t, cond: cond}
	p.bind = inline
	if err := p.print(cond.Body); err != nil {
		return "", err
	}
	return p.sb.String(), nil
}

type printer struct {
	translator *Translator
	cond       *pgbulk.Condition
	sb         strings.Builder
	args       []any
	bind       func(v any) string
}

func (p *printer) print(e pgbulk.Expr) error {
	switch n := e.(type) {
	case nil:
		return fmt.Errorf("empty expression node: %w", pgbulk.ErrUnsupportedExpression)
	case *pgbulk.Binary:
		return p.printBinary(n)
	case *pgbulk.Field:
		return p.printField(n)
	case *pgbulk.Const:
		if n == nil {
			return fmt.Errorf("empty constant node: %w", pgbulk.ErrUnsupportedExpression)
		}
		if n.Value == nil {
			p.sb.WriteString("NULL")
			return nil
		}
		p.sb.WriteString(p.bind(n.Value))
		return nil
	default:
		return fmt.Errorf("expression node %T: %w", e, pgbulk.ErrUnsupportedExpression)
	}
}

func (p *printer) printBinary(n *pgbulk.Binary) error {
	if n == nil {
		return fmt.Errorf("empty binary node: %w", pgbulk.ErrUnsupportedExpression)
	}
	op, ok := sqlOperator(n.Op)
	if !ok {
		return fmt.Errorf("operator %s has no SQL translation: %w", n.Op, pgbulk.ErrUnsupportedExpression)
	}
	p.sb.WriteByte('(')
	if err := p.print(n.Left); err != nil {
		return err
	}
	p.sb.WriteByte(' ')
	p.sb.WriteString(op)
	p.sb.WriteByte(' ')
	if err := p.print(n.Right); err != nil {
		return err
	}
	p.sb.WriteByte(')')
	return nil
}

func (p *printer) printField(f *pgbulk.Field) error {
	if f == nil {
		return fmt.Errorf("empty field node: %w", pgbulk.ErrUnsupportedExpression)
	}

	var alias string
	switch f.Var {
	case p.cond.Existing:
		alias = pgbulk.TargetAlias
	case p.cond.Incoming:
		alias = pgbulk.ExcludedAlias
	default:
		return fmt.Errorf("field %s.%s is not rooted at %q or %q: %w",
			f.Var, f.Name, p.cond.Existing, p.cond.Incoming, pgbulk.ErrUnsupportedExpression)
	}

	column := f.Name
	if p.translator.columns != nil {
		col, ok := p.translator.columns.Lookup(f.Name)
		if !ok {
			return fmt.Errorf("field %s.%s does not map to a column: %w", f.Var, f.Name, pgbulk.ErrUnsupportedExpression)
		}
		column = col.Name
	}
	if column == "" {
		return fmt.Errorf("field of %s has no name: %w", f.Var, pgbulk.ErrUnsupportedExpression)
	}

	p.sb.WriteString(alias)
	p.sb.WriteByte('.')
	p.sb.WriteString(pgx.Identifier{column}.Sanitize())
	return nil
}

func (p *printer) placeholder(v any) string {
	p.args = append(p.args, v)
	return "$" + strconv.Itoa(len(p.args))
}

func sqlOperator(op pgbulk.Op) (string, bool) {
	switch op {
	case pgbulk.OpEq, pgbulk.OpNe, pgbulk.OpLt, pgbulk.OpLe,
		pgbulk.OpGt, pgbulk.OpGe, pgbulk.OpAnd, pgbulk.OpOr:
		return op.String(), true
	default:
		return "", false
	}
}

func inline(v any) string {
	switch x := v.(type) {
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return quote(x)
	case time.Time:
		return quote(x.Format(time.RFC3339Nano))
	case fmt.Stringer:
		return quote(x.String())
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(x)
	default:
		return quote(fmt.Sprint(x))
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
