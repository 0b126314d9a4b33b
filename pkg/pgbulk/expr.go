package pgbulk

import "fmt"

// Expr is a node of a merge condition expression tree.
// The set of node types is closed: *Binary, *Field and *Const.
type Expr interface {
	exprNode()
}

// Op is a binary operator.
type Op int

const (
	OpEq Op = iota + 1
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr

	// Arithmetic operators can be expressed in a tree but have no
	// translation; the translator rejects them.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpNe:
		return "<>"
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Binary applies Op to two operands.
type Binary struct {
	Op    Op
	Left  Expr
	Right Expr
}

// Field references a column of one of the two row variables.
type Field struct {
	Var  string
	Name string
}

// Const is a literal value.
type Const struct {
	Value any
}

func (*Binary) exprNode() {}
func (*Field) exprNode()  {}
func (*Const) exprNode()  {}

// Condition is a merge predicate over the existing and incoming rows.
type Condition struct {
	// Existing names the variable bound to the row already in the target table.
	Existing string

	// Incoming names the variable bound to the row proposed for insertion.
	Incoming string

	Body Expr
}

// When declares a condition over the conventional variables "existing" and "incoming".
func When(body Expr) *Condition {
	return &Condition{Existing: DefaultExistingVar, Incoming: DefaultIncomingVar, Body: body}
}

// WhenVars declares a condition with custom variable names.
func WhenVars(existing, incoming string, body Expr) *Condition {
	return &Condition{Existing: existing, Incoming: incoming, Body: body}
}

// Existing references a field of the stored row.
func Existing(name string) *Field { return &Field{Var: DefaultExistingVar, Name: name} }

// Incoming references a field of the proposed row.
func Incoming(name string) *Field { return &Field{Var: DefaultIncomingVar, Name: name} }

// Ref references a field of an arbitrary variable, for use with WhenVars.
func Ref(variable, name string) *Field { return &Field{Var: variable, Name: name} }

// Value wraps a literal.
func Value(v any) *Const { return &Const{Value: v} }

func Eq(l, r Expr) *Binary  { return &Binary{Op: OpEq, Left: l, Right: r} }
func Ne(l, r Expr) *Binary  { return &Binary{Op: OpNe, Left: l, Right: r} }
func Lt(l, r Expr) *Binary  { return &Binary{Op: OpLt, Left: l, Right: r} }
func Le(l, r Expr) *Binary  { return &Binary{Op: OpLe, Left: l, Right: r} }
func Gt(l, r Expr) *Binary  { return &Binary{Op: OpGt, Left: l, Right: r} }
func Ge(l, r Expr) *Binary  { return &Binary{Op: OpGe, Left: l, Right: r} }
func And(l, r Expr) *Binary { return &Binary{Op: OpAnd, Left: l, Right: r} }
func Or(l, r Expr) *Binary  { return &Binary{Op: OpOr, Left: l, Right: r} }

// AllOf folds operands into a left-nested AND chain. Returns nil for no operands.
func AllOf(exprs ...Expr) Expr {
	return fold(OpAnd, exprs)
}

// AnyOf folds operands into a left-nested OR chain. Returns nil for no operands.
func AnyOf(exprs ...Expr) Expr {
	return fold(OpOr, exprs)
}

func fold(op Op, exprs []Expr) Expr {
	if len(exprs) == 0 {
		return nil
	}
	acc := exprs[0]
	for _, e := range exprs[1:] {
		acc = &Binary{Op: op, Left: acc, Right: e}
	}
	return acc
}
