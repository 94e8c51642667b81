package mir

import (
	"fmt"

	"github.com/malphas-lang/ifconv/internal/diag"
)

// Condition is a boolean-valued operand attached to a Branch. The set of
// kinds is closed: Compare, Compound and Not.
type Condition interface {
	Operand
	conditionNode()
}

// CmpOp is one of the six relational comparators.
type CmpOp uint8

const (
	Eq CmpOp = iota + 1
	Ne
	Lt
	Le
	Gt
	Ge
)

var cmpOpNames = [...]string{Eq: "==", Ne: "!=", Lt: "<", Le: "<=", Gt: ">", Ge: ">="}

func (op CmpOp) String() string {
	if op.Valid() {
		return cmpOpNames[op]
	}
	return fmt.Sprintf("CmpOp(%d)", uint8(op))
}

// Valid reports whether op is one of the six comparators.
func (op CmpOp) Valid() bool {
	return op >= Eq && op <= Ge
}

// ParseCmpOp maps an operator spelling to its comparator.
func ParseCmpOp(s string) (CmpOp, bool) {
	for op := Eq; op <= Ge; op++ {
		if cmpOpNames[op] == s {
			return op, true
		}
	}
	return 0, false
}

// Negate returns the comparator that holds exactly when op does not.
func (op CmpOp) Negate() CmpOp {
	switch op {
	case Eq:
		return Ne
	case Ne:
		return Eq
	case Lt:
		return Ge
	case Le:
		return Gt
	case Gt:
		return Le
	case Ge:
		return Lt
	}
	return 0
}

// LogicOp joins two conditions of a Compound.
type LogicOp uint8

const (
	And LogicOp = iota + 1
	Or
)

func (op LogicOp) String() string {
	switch op {
	case And:
		return "&&"
	case Or:
		return "||"
	}
	return fmt.Sprintf("LogicOp(%d)", uint8(op))
}

// Compare is a relational comparison X op Y.
type Compare struct {
	Op CmpOp
	X  Operand
	Y  Operand
}

// Compound is X && Y or X || Y, produced by compound-condition merging.
type Compound struct {
	Op LogicOp
	X  Condition
	Y  Condition
}

// Not is the negation of a condition, produced by NOT-pattern collapsing.
type Not struct {
	X Condition
}

func (*Compare) operandNode()    {}
func (*Compare) conditionNode()  {}
func (*Compound) operandNode()   {}
func (*Compound) conditionNode() {}
func (*Not) operandNode()        {}
func (*Not) conditionNode()      {}

// Invert returns a condition that holds exactly when c does not.
// Comparators are flipped, compounds follow De Morgan's law and Not is
// unwrapped. Anything else is an inversion error.
func Invert(c Condition) (Condition, error) {
	switch c := c.(type) {
	case *Compare:
		if !c.Op.Valid() {
			return nil, inversionError(c)
		}
		return &Compare{Op: c.Op.Negate(), X: c.X, Y: c.Y}, nil
	case *Compound:
		x, err := Invert(c.X)
		if err != nil {
			return nil, err
		}
		y, err := Invert(c.Y)
		if err != nil {
			return nil, err
		}
		switch c.Op {
		case And:
			return &Compound{Op: Or, X: x, Y: y}, nil
		case Or:
			return &Compound{Op: And, X: x, Y: y}, nil
		}
		return nil, inversionError(c)
	case *Not:
		if c.X == nil {
			return nil, inversionError(c)
		}
		return c.X, nil
	}
	return nil, inversionError(c)
}

func inversionError(c Condition) error {
	return diag.Errorf(diag.StageCompaction, diag.CodeInversion,
		"cannot invert condition %s", OperandString(c))
}

// EqualOperands reports whether two operands are structurally equal.
func EqualOperands(a, b Operand) bool {
	switch a := a.(type) {
	case nil:
		return b == nil
	case *LocalRef:
		b, ok := b.(*LocalRef)
		return ok && a.Local.ID == b.Local.ID
	case *FieldRef:
		b, ok := b.(*FieldRef)
		return ok && a.Var() == b.Var()
	case *Literal:
		b, ok := b.(*Literal)
		return ok && a.Value == b.Value
	case *Op:
		b, ok := b.(*Op)
		if !ok || a.Name != b.Name || len(a.Args) != len(b.Args) {
			return false
		}
		for i := range a.Args {
			if !EqualOperands(a.Args[i], b.Args[i]) {
				return false
			}
		}
		return true
	case *Compare:
		b, ok := b.(*Compare)
		return ok && a.Op == b.Op && EqualOperands(a.X, b.X) && EqualOperands(a.Y, b.Y)
	case *Compound:
		b, ok := b.(*Compound)
		return ok && a.Op == b.Op && EqualOperands(a.X, b.X) && EqualOperands(a.Y, b.Y)
	case *Not:
		b, ok := b.(*Not)
		return ok && EqualOperands(a.X, b.X)
	}
	return false
}

// BoolConst reports the boolean value of op when it is a boolean constant.
// Integer 0 and 1 count, since bytecode front-ends lower booleans to ints.
func BoolConst(op Operand) (value, ok bool) {
	lit, isLit := op.(*Literal)
	if !isLit {
		return false, false
	}
	switch v := lit.Value.(type) {
	case bool:
		return v, true
	case int64:
		if v == 0 || v == 1 {
			return v == 1, true
		}
	case int:
		if v == 0 || v == 1 {
			return v == 1, true
		}
	}
	return false, false
}
