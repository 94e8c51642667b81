package optimize

import (
	"github.com/malphas-lang/ifconv/internal/mir"
)

// Stats counts the rewrites performed by Compact.
type Stats struct {
	Folded    int // constant branches turned into gotos
	Compounds int // branch pairs merged into compound conditions
	Nots      int // NOT idioms collapsed into assignments
	Removed   int // unreachable blocks dropped
}

// Changed reports whether any rewrite fired.
func (s Stats) Changed() bool {
	return s.Folded+s.Compounds+s.Nots+s.Removed > 0
}

// Compact runs boolean compaction on a copy of fn and returns the copy.
// Compound merging runs before NOT collapsing so the collapsed assignment
// can carry a compound condition. Locals no surviving block mentions are
// dropped. The input is never modified.
func Compact(fn *mir.Function) (*mir.Function, Stats) {
	out := fn.Clone()
	var stats Stats

	stats.Removed += EliminateUnreachableBlocks(out)
	stats.Folded = FoldConstantBranches(out)
	stats.Removed += EliminateUnreachableBlocks(out)
	stats.Compounds = MergeCompoundConditions(out)
	stats.Nots = CollapseNotPatterns(out)
	stats.Removed += EliminateUnreachableBlocks(out)
	EliminateUnusedLocals(out)

	return out, stats
}
