package optimize

import (
	"github.com/malphas-lang/ifconv/internal/mir"
)

// compoundMatch is a conditional branch whose fall-through block is another
// conditional branch that can be folded into it.
type compoundMatch struct {
	head   *mir.BasicBlock
	next   *mir.BasicBlock
	branch *mir.Branch // replacement terminator for head
}

// MergeCompoundConditions folds a conditional branch A whose fall-through is
// another conditional branch B into a single branch on a compound condition:
//
//	A.True == B.False  =>  if !A.cond && B.cond goto B.True else B.False
//	A.True == B.True   =>  if A.cond || B.cond goto A.True else B.False
//
// B must be empty and reached only from A. The pass repeats until no pair
// matches and returns the number of merges; each merge removes one branch,
// so it terminates.
func MergeCompoundConditions(fn *mir.Function) int {
	merged := 0
	for {
		m, ok := findCompoundMatch(fn)
		if !ok {
			return merged
		}
		commitRewrite(fn, map[*mir.BasicBlock]bool{m.next: true}, func() {
			m.head.Terminator = m.branch
		})
		merged++
	}
}

// findCompoundMatch scans a snapshot of the block list for the first
// foldable pair.
func findCompoundMatch(fn *mir.Function) (compoundMatch, bool) {
	blocks := snapshot(fn)
	preds := mir.Predecessors(fn)

	for _, a := range blocks {
		first, ok := a.Terminator.(*mir.Branch)
		if !ok {
			continue
		}
		b := first.False
		if b == nil || b == first.True || b == fn.Entry || b == a {
			continue
		}
		if len(b.Statements) != 0 || len(preds[b]) != 1 {
			continue
		}
		second, ok := b.Terminator.(*mir.Branch)
		if !ok || second.True == second.False {
			continue
		}

		switch first.True {
		case second.False:
			// Control reaches second.True only if A failed and B held.
			inverted, err := mir.Invert(first.Condition)
			if err != nil {
				continue
			}
			return compoundMatch{head: a, next: b, branch: &mir.Branch{
				Condition: &mir.Compound{Op: mir.And, X: inverted, Y: second.Condition},
				True:      second.True,
				False:     second.False,
			}}, true
		case second.True:
			return compoundMatch{head: a, next: b, branch: &mir.Branch{
				Condition: &mir.Compound{Op: mir.Or, X: first.Condition, Y: second.Condition},
				True:      first.True,
				False:     second.False,
			}}, true
		}
	}
	return compoundMatch{}, false
}

// snapshot returns an immutable copy of the block list to scan.
func snapshot(fn *mir.Function) []*mir.BasicBlock {
	return append([]*mir.BasicBlock(nil), fn.Blocks...)
}

// commitRewrite applies a rewrite computed from a snapshot: it runs apply,
// then replaces the block list with one that omits the dropped blocks.
func commitRewrite(fn *mir.Function, dropped map[*mir.BasicBlock]bool, apply func()) {
	blocks := make([]*mir.BasicBlock, 0, len(fn.Blocks))
	for _, block := range fn.Blocks {
		if !dropped[block] {
			blocks = append(blocks, block)
		}
	}
	apply()
	fn.Blocks = blocks
}
