package optimize

import (
	"github.com/malphas-lang/ifconv/internal/mir"
)

// LatticeValue is the abstract value of a condition during folding.
type LatticeValue int

const (
	Unknown LatticeValue = iota // depends on run-time values
	AlwaysTrue
	AlwaysFalse
)

// FoldConstantBranches replaces every branch whose condition evaluates to a
// constant with a goto to the taken successor. Returns the number of folded
// branches. The untaken arm may become unreachable; run
// EliminateUnreachableBlocks afterwards.
func FoldConstantBranches(fn *mir.Function) int {
	folded := 0
	for _, block := range fn.Blocks {
		br, ok := block.Terminator.(*mir.Branch)
		if !ok {
			continue
		}
		switch EvaluateCondition(br.Condition) {
		case AlwaysTrue:
			block.Terminator = &mir.Goto{Target: br.True}
			folded++
		case AlwaysFalse:
			block.Terminator = &mir.Goto{Target: br.False}
			folded++
		}
	}
	return folded
}

// EvaluateCondition folds c over literal operands. Compound conditions are
// short-circuited, so "x > 0 || true" is AlwaysTrue.
func EvaluateCondition(c mir.Condition) LatticeValue {
	switch c := c.(type) {
	case *mir.Compare:
		return evaluateCompare(c)
	case *mir.Not:
		switch EvaluateCondition(c.X) {
		case AlwaysTrue:
			return AlwaysFalse
		case AlwaysFalse:
			return AlwaysTrue
		}
	case *mir.Compound:
		x, y := EvaluateCondition(c.X), EvaluateCondition(c.Y)
		switch c.Op {
		case mir.And:
			if x == AlwaysFalse || y == AlwaysFalse {
				return AlwaysFalse
			}
			if x == AlwaysTrue && y == AlwaysTrue {
				return AlwaysTrue
			}
		case mir.Or:
			if x == AlwaysTrue || y == AlwaysTrue {
				return AlwaysTrue
			}
			if x == AlwaysFalse && y == AlwaysFalse {
				return AlwaysFalse
			}
		}
	}
	return Unknown
}

func evaluateCompare(c *mir.Compare) LatticeValue {
	x, ok := c.X.(*mir.Literal)
	if !ok {
		return Unknown
	}
	y, ok := c.Y.(*mir.Literal)
	if !ok {
		return Unknown
	}

	cmp, ok := compareLiterals(x.Value, y.Value)
	if !ok {
		return Unknown
	}
	var holds bool
	switch c.Op {
	case mir.Eq:
		holds = cmp == 0
	case mir.Ne:
		holds = cmp != 0
	case mir.Lt:
		holds = cmp < 0
	case mir.Le:
		holds = cmp <= 0
	case mir.Gt:
		holds = cmp > 0
	case mir.Ge:
		holds = cmp >= 0
	default:
		return Unknown
	}
	if holds {
		return AlwaysTrue
	}
	return AlwaysFalse
}

// compareLiterals orders two literal values of the same kind. Booleans order
// false before true, matching their integer encoding.
func compareLiterals(a, b interface{}) (int, bool) {
	if av, ok := numericValue(a); ok {
		bv, ok := numericValue(b)
		if !ok {
			return 0, false
		}
		return order(av < bv, av > bv), true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return order(av < bv, av > bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		return order(!av && bv, av && !bv), true
	}
	return 0, false
}

func numericValue(v interface{}) (float64, bool) {
	switch v := v.(type) {
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func order(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}
