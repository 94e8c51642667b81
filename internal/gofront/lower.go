package gofront

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strconv"

	"golang.org/x/tools/go/cfg"

	"github.com/malphas-lang/ifconv/internal/diag"
	"github.com/malphas-lang/ifconv/internal/mir"
)

type lowerer struct {
	fset   *token.FileSet
	fn     *mir.Function
	locals map[string]mir.Local
	nextID int

	// single named result, returned by a bare return
	result mir.Local
	named  bool

	block *mir.BasicBlock
}

func (l *lowerer) errorf(n ast.Node, format string, args ...interface{}) *diag.Error {
	s := span(l.fset.Position(n.Pos()), l.fn.Name)
	if l.block != nil {
		s.Block = l.block.Label
	}
	return diag.Errorf(diag.StageFrontend, diag.CodeFrontendUnsupported, format, args...).At(s)
}

func (l *lowerer) params(fields *ast.FieldList) {
	for _, field := range fields.List {
		for _, name := range field.Names {
			local := mir.Local{ID: l.nextID, Name: name.Name}
			l.nextID++
			l.locals[name.Name] = local
			l.fn.Params = append(l.fn.Params, local)
		}
	}
}

// local returns the local called name, declaring it on first use. The blank
// identifier gets a fresh local every time.
func (l *lowerer) local(name string) mir.Local {
	if local, ok := l.locals[name]; ok && name != "_" {
		return local
	}
	local := mir.Local{ID: l.nextID, Name: name}
	l.nextID++
	l.locals[name] = local
	l.fn.Locals = append(l.fn.Locals, local)
	return local
}

// lower translates the live blocks of g. Blocks[0] is the entry.
func (l *lowerer) lower(g *cfg.CFG) error {
	blocks := make(map[*cfg.Block]*mir.BasicBlock)
	for _, b := range g.Blocks {
		if !b.Live {
			continue
		}
		mb := &mir.BasicBlock{Label: fmt.Sprintf("b%d", b.Index)}
		blocks[b] = mb
		l.fn.Blocks = append(l.fn.Blocks, mb)
	}
	l.fn.Entry = blocks[g.Blocks[0]]

	for _, b := range g.Blocks {
		if !b.Live {
			continue
		}
		l.block = blocks[b]
		if err := l.lowerBlock(b, blocks); err != nil {
			return err
		}
	}
	l.block = nil
	return nil
}

func (l *lowerer) lowerBlock(b *cfg.Block, blocks map[*cfg.Block]*mir.BasicBlock) error {
	nodes := b.Nodes
	switch len(b.Succs) {
	case 0:
		ret := &mir.Return{}
		if n := len(nodes); n > 0 {
			if rs, ok := nodes[n-1].(*ast.ReturnStmt); ok {
				nodes = nodes[:n-1]
				value, err := l.returnValue(rs)
				if err != nil {
					return err
				}
				ret.Value = value
			}
		}
		l.block.Terminator = ret
	case 1:
		l.block.Terminator = &mir.Goto{Target: blocks[b.Succs[0]]}
	case 2:
		if len(nodes) == 0 {
			return diag.Errorf(diag.StageFrontend, diag.CodeFrontendUnsupported,
				"conditional block %s has no condition", l.block.Label)
		}
		expr, ok := nodes[len(nodes)-1].(ast.Expr)
		if !ok {
			return l.errorf(nodes[len(nodes)-1], "conditional block ends in a statement")
		}
		nodes = nodes[:len(nodes)-1]
		cond, err := l.condition(expr)
		if err != nil {
			return err
		}
		l.block.Terminator = &mir.Branch{
			Condition: cond,
			True:      blocks[b.Succs[0]],
			False:     blocks[b.Succs[1]],
		}
		// For a && b go/cfg puts the second test on the true edge. Move it
		// to the fall-through so compaction can merge the pair.
		if next := b.Succs[0]; len(next.Nodes) == 1 && len(next.Succs) == 2 && next.Succs[1] == b.Succs[1] {
			l.block.Terminator = &mir.Branch{
				Condition: &mir.Not{X: cond},
				True:      blocks[b.Succs[1]],
				False:     blocks[next],
			}
		}
	default:
		return diag.Errorf(diag.StageFrontend, diag.CodeFrontendUnsupported,
			"block %s has %d successors", l.block.Label, len(b.Succs))
	}

	for _, n := range nodes {
		if err := l.statement(n); err != nil {
			return err
		}
	}
	return nil
}

func (l *lowerer) returnValue(rs *ast.ReturnStmt) (mir.Operand, error) {
	switch len(rs.Results) {
	case 0:
		if l.named {
			return &mir.LocalRef{Local: l.result}, nil
		}
		return nil, nil
	case 1:
		return l.expr(rs.Results[0])
	}
	return nil, l.errorf(rs, "multiple return values are not supported")
}

func (l *lowerer) statement(n ast.Node) error {
	switch s := n.(type) {
	case *ast.EmptyStmt:
		return nil
	case *ast.AssignStmt:
		return l.assign(s)
	case *ast.IncDecStmt:
		place, err := l.place(s.X)
		if err != nil {
			return err
		}
		op := "+"
		if s.Tok == token.DEC {
			op = "-"
		}
		l.emit(&mir.Assign{Dest: place, RHS: &mir.Op{Name: op, Args: []mir.Operand{place, &mir.Literal{Value: int64(1)}}}})
		return nil
	case *ast.ExprStmt:
		call, ok := s.X.(*ast.CallExpr)
		if !ok {
			return l.errorf(s, "expression statement is not a call")
		}
		args, err := l.exprs(call.Args)
		if err != nil {
			return err
		}
		l.emit(&mir.Invoke{Func: types.ExprString(call.Fun), Args: args})
		return nil
	case *ast.DeclStmt:
		return l.decl(s)
	case *ast.ValueSpec:
		return l.valueSpec(s)
	}
	return l.errorf(n, "unsupported statement %T", n)
}

func (l *lowerer) emit(s mir.Statement) {
	l.block.Statements = append(l.block.Statements, s)
}

func (l *lowerer) assign(s *ast.AssignStmt) error {
	if len(s.Lhs) != 1 || len(s.Rhs) != 1 {
		return l.errorf(s, "only single assignments are supported")
	}
	rhs, err := l.expr(s.Rhs[0])
	if err != nil {
		return err
	}
	place, err := l.place(s.Lhs[0])
	if err != nil {
		return err
	}
	switch s.Tok {
	case token.ASSIGN, token.DEFINE:
	default:
		// x op= y
		op := s.Tok.String()
		rhs = &mir.Op{Name: op[:len(op)-1], Args: []mir.Operand{place, rhs}}
	}
	l.emit(&mir.Assign{Dest: place, RHS: rhs})
	return nil
}

func (l *lowerer) decl(s *ast.DeclStmt) error {
	gd, ok := s.Decl.(*ast.GenDecl)
	if !ok || gd.Tok != token.VAR {
		return l.errorf(s, "only var declarations are supported")
	}
	for _, spec := range gd.Specs {
		if err := l.valueSpec(spec.(*ast.ValueSpec)); err != nil {
			return err
		}
	}
	return nil
}

// valueSpec lowers one var specification. go/cfg lists the specs of a var
// declaration as separate nodes.
func (l *lowerer) valueSpec(vs *ast.ValueSpec) error {
	if len(vs.Values) != 0 && len(vs.Values) != len(vs.Names) {
		return l.errorf(vs, "declaration must have one value per name")
	}
	for i, name := range vs.Names {
		var value mir.Operand = zero(vs.Type)
		if len(vs.Values) > 0 {
			v, err := l.expr(vs.Values[i])
			if err != nil {
				return err
			}
			value = v
		}
		l.emit(&mir.Assign{Dest: &mir.LocalRef{Local: l.local(name.Name)}, RHS: value})
	}
	return nil
}

// zero returns the zero value of a declared type.
func zero(typ ast.Expr) mir.Operand {
	if id, ok := typ.(*ast.Ident); ok {
		switch id.Name {
		case "int", "int8", "int16", "int32", "int64",
			"uint", "uint8", "uint16", "uint32", "uint64", "uintptr", "byte", "rune":
			return &mir.Literal{Value: int64(0)}
		case "float32", "float64":
			return &mir.Literal{Value: float64(0)}
		case "bool":
			return &mir.Literal{Value: false}
		case "string":
			return &mir.Literal{Value: ""}
		}
	}
	return &mir.Literal{}
}

func (l *lowerer) place(e ast.Expr) (mir.Place, error) {
	switch x := e.(type) {
	case *ast.ParenExpr:
		return l.place(x.X)
	case *ast.Ident:
		return &mir.LocalRef{Local: l.local(x.Name)}, nil
	case *ast.SelectorExpr:
		base, ok := x.X.(*ast.Ident)
		if !ok {
			return nil, l.errorf(x, "field access through %s is not supported", types.ExprString(x.X))
		}
		return &mir.FieldRef{Base: l.local(base.Name), Field: x.Sel.Name}, nil
	case *ast.StarExpr:
		base, ok := x.X.(*ast.Ident)
		if !ok {
			return nil, l.errorf(x, "indirection through %s is not supported", types.ExprString(x.X))
		}
		return &mir.FieldRef{Base: l.local(base.Name), Field: "*"}, nil
	}
	return nil, l.errorf(e, "cannot assign to %s", types.ExprString(e))
}

func (l *lowerer) exprs(list []ast.Expr) ([]mir.Operand, error) {
	ops := make([]mir.Operand, 0, len(list))
	for _, e := range list {
		op, err := l.expr(e)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

var comparisons = map[token.Token]mir.CmpOp{
	token.EQL: mir.Eq,
	token.NEQ: mir.Ne,
	token.LSS: mir.Lt,
	token.LEQ: mir.Le,
	token.GTR: mir.Gt,
	token.GEQ: mir.Ge,
}

func (l *lowerer) expr(e ast.Expr) (mir.Operand, error) {
	switch x := e.(type) {
	case *ast.ParenExpr:
		return l.expr(x.X)
	case *ast.Ident:
		switch x.Name {
		case "true":
			return &mir.Literal{Value: true}, nil
		case "false":
			return &mir.Literal{Value: false}, nil
		case "nil":
			return &mir.Literal{}, nil
		}
		return &mir.LocalRef{Local: l.local(x.Name)}, nil
	case *ast.BasicLit:
		return l.literal(x)
	case *ast.SelectorExpr, *ast.StarExpr:
		return l.place(x)
	case *ast.BinaryExpr:
		switch x.Op {
		case token.LAND, token.LOR:
			return l.condition(x)
		}
		lhs, err := l.expr(x.X)
		if err != nil {
			return nil, err
		}
		rhs, err := l.expr(x.Y)
		if err != nil {
			return nil, err
		}
		if op, ok := comparisons[x.Op]; ok {
			return &mir.Compare{Op: op, X: lhs, Y: rhs}, nil
		}
		return &mir.Op{Name: x.Op.String(), Args: []mir.Operand{lhs, rhs}}, nil
	case *ast.UnaryExpr:
		if x.Op == token.NOT {
			return l.condition(x)
		}
		if x.Op != token.SUB && x.Op != token.XOR {
			return nil, l.errorf(x, "unary %s is not supported", x.Op)
		}
		arg, err := l.expr(x.X)
		if err != nil {
			return nil, err
		}
		return &mir.Op{Name: x.Op.String(), Args: []mir.Operand{arg}}, nil
	case *ast.CallExpr:
		args, err := l.exprs(x.Args)
		if err != nil {
			return nil, err
		}
		return &mir.Op{Name: types.ExprString(x.Fun), Args: args}, nil
	case *ast.IndexExpr:
		base, err := l.expr(x.X)
		if err != nil {
			return nil, err
		}
		index, err := l.expr(x.Index)
		if err != nil {
			return nil, err
		}
		return &mir.Op{Name: "index", Args: []mir.Operand{base, index}}, nil
	}
	return nil, l.errorf(e, "unsupported expression %s", types.ExprString(e))
}

func (l *lowerer) literal(lit *ast.BasicLit) (mir.Operand, error) {
	switch lit.Kind {
	case token.INT:
		v, err := strconv.ParseInt(lit.Value, 0, 64)
		if err != nil {
			return nil, l.errorf(lit, "integer %s out of range", lit.Value)
		}
		return &mir.Literal{Value: v}, nil
	case token.FLOAT:
		v, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return nil, l.errorf(lit, "invalid float %s", lit.Value)
		}
		return &mir.Literal{Value: v}, nil
	case token.STRING:
		v, err := strconv.Unquote(lit.Value)
		if err != nil {
			return nil, l.errorf(lit, "invalid string %s", lit.Value)
		}
		return &mir.Literal{Value: v}, nil
	case token.CHAR:
		v, _, _, err := strconv.UnquoteChar(lit.Value[1:len(lit.Value)-1], '\'')
		if err != nil {
			return nil, l.errorf(lit, "invalid character %s", lit.Value)
		}
		return &mir.Literal{Value: int64(v)}, nil
	}
	return nil, l.errorf(lit, "unsupported literal %s", lit.Value)
}

// condition lowers a boolean expression. Values that are not conditions
// are compared against false.
func (l *lowerer) condition(e ast.Expr) (mir.Condition, error) {
	switch x := e.(type) {
	case *ast.ParenExpr:
		return l.condition(x.X)
	case *ast.UnaryExpr:
		if x.Op == token.NOT {
			c, err := l.condition(x.X)
			if err != nil {
				return nil, err
			}
			return &mir.Not{X: c}, nil
		}
	case *ast.BinaryExpr:
		var op mir.LogicOp
		switch x.Op {
		case token.LAND:
			op = mir.And
		case token.LOR:
			op = mir.Or
		}
		if op != 0 {
			lhs, err := l.condition(x.X)
			if err != nil {
				return nil, err
			}
			rhs, err := l.condition(x.Y)
			if err != nil {
				return nil, err
			}
			return &mir.Compound{Op: op, X: lhs, Y: rhs}, nil
		}
	}
	op, err := l.expr(e)
	if err != nil {
		return nil, err
	}
	if c, ok := op.(mir.Condition); ok {
		return c, nil
	}
	return &mir.Compare{Op: mir.Ne, X: op, Y: &mir.Literal{Value: false}}, nil
}
