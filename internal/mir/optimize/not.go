package optimize

import (
	"github.com/malphas-lang/ifconv/internal/mir"
)

// notMatch is the four-unit idiom that materializes a condition as a
// boolean value.
type notMatch struct {
	head    *mir.BasicBlock
	target  *mir.BasicBlock
	fall    *mir.BasicBlock
	join    *mir.BasicBlock
	assign  *mir.Assign
	negated bool
}

// CollapseNotPatterns rewrites
//
//	P: if c goto T else F
//	F: x = true;  goto J
//	T: x = false; goto J
//
// into "P: x = !c; goto J", the shape a compiler emits for a negated
// boolean value. The opposite polarity (F stores false, T stores true)
// collapses into "x = c". T and F must be distinct blocks reached only
// from P. Run it after MergeCompoundConditions so that c may already be a
// compound condition. Returns the number of collapsed patterns.
func CollapseNotPatterns(fn *mir.Function) int {
	collapsed := 0
	for {
		m, ok := findNotMatch(fn)
		if !ok {
			return collapsed
		}
		commitRewrite(fn, map[*mir.BasicBlock]bool{m.target: true, m.fall: true}, func() {
			stmts := make([]mir.Statement, 0, len(m.head.Statements)+1)
			stmts = append(stmts, m.head.Statements...)
			m.head.Statements = append(stmts, m.assign)
			m.head.Terminator = &mir.Goto{Target: m.join}
		})
		collapsed++
	}
}

func findNotMatch(fn *mir.Function) (notMatch, bool) {
	blocks := snapshot(fn)
	preds := mir.Predecessors(fn)

	for _, p := range blocks {
		br, ok := p.Terminator.(*mir.Branch)
		if !ok || br.True == br.False || br.True == p || br.False == p {
			continue
		}
		t, f := br.True, br.False
		if t == fn.Entry || f == fn.Entry || len(preds[t]) != 1 || len(preds[f]) != 1 {
			continue
		}
		tAssign, tJoin, tValue, ok := constantStore(t)
		if !ok {
			continue
		}
		fAssign, fJoin, fValue, ok := constantStore(f)
		if !ok || tJoin != fJoin || tValue == fValue {
			continue
		}
		if tAssign.Dest.Var() != fAssign.Dest.Var() {
			continue
		}

		var rhs mir.Operand = br.Condition
		negated := fValue && !tValue
		if negated {
			rhs = &mir.Not{X: br.Condition}
		}
		return notMatch{
			head:    p,
			target:  t,
			fall:    f,
			join:    tJoin,
			assign:  &mir.Assign{Dest: fAssign.Dest, RHS: rhs},
			negated: negated,
		}, true
	}
	return notMatch{}, false
}

// constantStore matches a block holding exactly "x = <bool const>; goto J".
func constantStore(block *mir.BasicBlock) (*mir.Assign, *mir.BasicBlock, bool, bool) {
	if len(block.Statements) != 1 {
		return nil, nil, false, false
	}
	assign, ok := block.Statements[0].(*mir.Assign)
	if !ok {
		return nil, nil, false, false
	}
	value, ok := mir.BoolConst(assign.RHS)
	if !ok {
		return nil, nil, false, false
	}
	jump, ok := block.Terminator.(*mir.Goto)
	if !ok || jump.Target == block {
		return nil, nil, false, false
	}
	return assign, jump.Target, value, true
}
