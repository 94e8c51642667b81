package optimize

import (
	"github.com/malphas-lang/ifconv/internal/mir"
)

// EliminateUnreachableBlocks drops blocks not reachable from the entry and
// returns how many were removed. Block order is preserved.
func EliminateUnreachableBlocks(fn *mir.Function) int {
	reachable := markReachableBlocks(fn)

	liveBlocks := make([]*mir.BasicBlock, 0, len(fn.Blocks))
	for _, block := range fn.Blocks {
		if reachable[block] {
			liveBlocks = append(liveBlocks, block)
		}
	}
	removed := len(fn.Blocks) - len(liveBlocks)
	fn.Blocks = liveBlocks
	return removed
}

// EliminateUnusedLocals drops locals that no live block mentions.
// Parameters are always kept.
func EliminateUnusedLocals(fn *mir.Function) {
	usedLocals := buildUsedLocals(fn.Blocks)

	paramIDs := make(map[int]bool)
	for _, param := range fn.Params {
		paramIDs[param.ID] = true
	}

	liveLocals := make([]mir.Local, 0, len(fn.Locals))
	for _, local := range fn.Locals {
		if usedLocals[local.ID] || paramIDs[local.ID] {
			liveLocals = append(liveLocals, local)
		}
	}
	fn.Locals = liveLocals
}

// markReachableBlocks performs a reachability analysis on the CFG
func markReachableBlocks(fn *mir.Function) map[*mir.BasicBlock]bool {
	reachable := make(map[*mir.BasicBlock]bool)
	if fn.Entry == nil {
		return reachable
	}

	worklist := []*mir.BasicBlock{fn.Entry}
	for len(worklist) > 0 {
		block := worklist[0]
		worklist = worklist[1:]

		if block == nil || reachable[block] {
			continue
		}
		reachable[block] = true
		worklist = append(worklist, mir.Successors(block)...)
	}

	return reachable
}

// buildUsedLocals finds all local slots mentioned in the given blocks,
// including the base slots of field references.
func buildUsedLocals(blocks []*mir.BasicBlock) map[int]bool {
	used := make(map[int]bool)
	mark := func(op mir.Operand) {
		mir.WalkOperand(op, func(o mir.Operand) bool {
			switch o := o.(type) {
			case *mir.LocalRef:
				used[o.Local.ID] = true
			case *mir.FieldRef:
				if !o.Static {
					used[o.Base.ID] = true
				}
			}
			return true
		})
	}

	for _, block := range blocks {
		for _, stmt := range block.Statements {
			switch s := stmt.(type) {
			case *mir.Assign:
				mark(s.Dest)
				mark(s.RHS)
			case *mir.Invoke:
				for _, arg := range s.Args {
					mark(arg)
				}
			}
		}
		switch t := block.Terminator.(type) {
		case *mir.Return:
			mark(t.Value)
		case *mir.Branch:
			mark(t.Condition)
		}
	}

	return used
}
