// Package condition parses textual merge conditions such as
//
//	existing.updated_at < incoming.updated_at && existing.name != "locked"
//
// into pgbulk expression trees. The syntax is that of CUE expressions:
// comparison operators ==, !=, <, <=, >, >=, logical && and ||, parentheses,
// and string, number, bool and null literals. Field references are
// variable.field selectors; quoted selectors (existing."first name") allow
// arbitrary column names.
package condition

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/literal"
	"cuelang.org/go/cue/parser"
	"cuelang.org/go/cue/token"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// Parse parses src as a condition over the variables "existing" and "incoming".
func Parse(src string) (*pgbulk.Condition, error) {
	return ParseWithVars(src, pgbulk.DefaultExistingVar, pgbulk.DefaultIncomingVar)
}

// ParseWithVars parses src as a condition over custom variable names.
// Syntax errors wrap pgbulk.ErrInvalidOptions; operators without a SQL form
// wrap pgbulk.ErrUnsupportedExpression.
func ParseWithVars(src, existing, incoming string) (*pgbulk.Condition, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty merge condition: %w", pgbulk.ErrInvalidOptions)
	}
	expr, err := parser.ParseExpr("condition", src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse merge condition %q: %v: %w", src, err, pgbulk.ErrInvalidOptions)
	}
	body, err := convert(expr)
	if err != nil {
		return nil, fmt.Errorf("merge condition %q: %w", src, err)
	}
	return pgbulk.WhenVars(existing, incoming, body), nil
}

var binaryOps = map[token.Token]pgbulk.Op{
	token.EQL:  pgbulk.OpEq,
	token.NEQ:  pgbulk.OpNe,
	token.LSS:  pgbulk.OpLt,
	token.LEQ:  pgbulk.OpLe,
	token.GTR:  pgbulk.OpGt,
	token.GEQ:  pgbulk.OpGe,
	token.LAND: pgbulk.OpAnd,
	token.LOR:  pgbulk.OpOr,
	token.ADD:  pgbulk.OpAdd,
	token.SUB:  pgbulk.OpSub,
	token.MUL:  pgbulk.OpMul,
	token.QUO:  pgbulk.OpDiv,
	token.IQUO: pgbulk.OpDiv,
	token.IDIV: pgbulk.OpDiv,
	token.IMOD: pgbulk.OpMod,
	token.IREM: pgbulk.OpMod,
}

func convert(e ast.Expr) (pgbulk.Expr, error) {
	switch n := e.(type) {
	case *ast.ParenExpr:
		return convert(n.X)

	case *ast.BinaryExpr:
		op, ok := binaryOps[n.Op]
		if !ok {
			return nil, fmt.Errorf("operator %s: %w", n.Op, pgbulk.ErrUnsupportedExpression)
		}
		left, err := convert(n.X)
		if err != nil {
			return nil, err
		}
		right, err := convert(n.Y)
		if err != nil {
			return nil, err
		}
		return &pgbulk.Binary{Op: op, Left: left, Right: right}, nil

	case *ast.SelectorExpr:
		root, ok := n.X.(*ast.Ident)
		if !ok {
			return nil, fmt.Errorf("field references must have the form variable.field: %w", pgbulk.ErrUnsupportedExpression)
		}
		name, _, err := ast.LabelName(n.Sel)
		if err != nil {
			return nil, fmt.Errorf("field of %s: %v: %w", root.Name, err, pgbulk.ErrUnsupportedExpression)
		}
		return pgbulk.Ref(root.Name, name), nil

	case *ast.Ident:
		return nil, fmt.Errorf("bare identifier %q, expected variable.field: %w", n.Name, pgbulk.ErrUnsupportedExpression)

	case *ast.UnaryExpr:
		if n.Op == token.SUB {
			if lit, ok := n.X.(*ast.BasicLit); ok && (lit.Kind == token.INT || lit.Kind == token.FLOAT) {
				return number("-"+lit.Value, lit.Kind)
			}
		}
		return nil, fmt.Errorf("unary operator %s: %w", n.Op, pgbulk.ErrUnsupportedExpression)

	case *ast.BasicLit:
		return basicLit(n)

	default:
		return nil, fmt.Errorf("expression %T: %w", e, pgbulk.ErrUnsupportedExpression)
	}
}

func basicLit(lit *ast.BasicLit) (pgbulk.Expr, error) {
	switch lit.Kind {
	case token.TRUE:
		return pgbulk.Value(true), nil
	case token.FALSE:
		return pgbulk.Value(false), nil
	case token.NULL:
		return pgbulk.Value(nil), nil
	case token.INT, token.FLOAT:
		return number(lit.Value, lit.Kind)
	case token.STRING:
		s, err := literal.Unquote(lit.Value)
		if err != nil {
			return nil, fmt.Errorf("string literal %s: %v: %w", lit.Value, err, pgbulk.ErrInvalidOptions)
		}
		return pgbulk.Value(s), nil
	default:
		return nil, fmt.Errorf("literal %s: %w", lit.Value, pgbulk.ErrUnsupportedExpression)
	}
}

func number(text string, kind token.Token) (pgbulk.Expr, error) {
	clean := strings.ReplaceAll(text, "_", "")
	if kind == token.INT {
		if n, err := strconv.ParseInt(clean, 0, 64); err == nil {
			return pgbulk.Value(n), nil
		}
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return nil, fmt.Errorf("numeric literal %s: %w", text, pgbulk.ErrInvalidOptions)
	}
	return pgbulk.Value(f), nil
}
