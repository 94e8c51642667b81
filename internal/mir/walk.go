package mir

// Visitor receives each statement and the terminator of a block through
// double dispatch (see Statement.Accept and Terminator.Accept).
type Visitor interface {
	VisitAssign(*Assign)
	VisitInvoke(*Invoke)
	VisitBranch(*Branch)
	VisitGoto(*Goto)
	VisitReturn(*Return)
}

// WalkBlock visits the statements of block in order, then its terminator.
func WalkBlock(block *BasicBlock, v Visitor) {
	for _, stmt := range block.Statements {
		stmt.Accept(v)
	}
	if block.Terminator != nil {
		block.Terminator.Accept(v)
	}
}

// WalkOperand traverses the operand tree rooted at op, calling fn for each
// operand. If fn returns false, WalkOperand stops traversing that branch.
func WalkOperand(op Operand, fn func(Operand) bool) {
	if op == nil || !fn(op) {
		return
	}

	switch o := op.(type) {
	case *Op:
		for _, arg := range o.Args {
			WalkOperand(arg, fn)
		}
	case *Compare:
		WalkOperand(o.X, fn)
		WalkOperand(o.Y, fn)
	case *Compound:
		WalkOperand(o.X, fn)
		WalkOperand(o.Y, fn)
	case *Not:
		WalkOperand(o.X, fn)
	}
}

// Uses returns the variables read by op, in first-occurrence order.
func Uses(op Operand) []Var {
	var vars []Var
	seen := make(map[Var]bool)
	WalkOperand(op, func(o Operand) bool {
		var v Var
		switch o := o.(type) {
		case *LocalRef:
			v = o.Var()
		case *FieldRef:
			v = o.Var()
		default:
			return true
		}
		if !seen[v] {
			seen[v] = true
			vars = append(vars, v)
		}
		return true
	})
	return vars
}
