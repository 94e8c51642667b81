// Package mirtest builds small procedures for tests.
package mirtest

import (
	"github.com/malphas-lang/ifconv/internal/mir"
)

// Builder assembles a procedure block by block. The first block mentioned
// becomes the entry.
type Builder struct {
	fn     *mir.Function
	locals map[string]mir.Local
	blocks map[string]*mir.BasicBlock
	nextID int
}

// New starts a procedure with the given parameters.
func New(name string, params ...string) *Builder {
	b := &Builder{
		fn:     &mir.Function{Name: name},
		locals: make(map[string]mir.Local),
		blocks: make(map[string]*mir.BasicBlock),
	}
	for _, p := range params {
		l := b.newLocal(p)
		b.fn.Params = append(b.fn.Params, l)
	}
	return b
}

func (b *Builder) newLocal(name string) mir.Local {
	l := mir.Local{ID: b.nextID, Name: name}
	b.nextID++
	b.locals[name] = l
	return l
}

// Local returns the local called name, declaring it on first use.
func (b *Builder) Local(name string) mir.Local {
	if l, ok := b.locals[name]; ok {
		return l
	}
	l := b.newLocal(name)
	b.fn.Locals = append(b.fn.Locals, l)
	return l
}

// Ref returns a reference to the local called name.
func (b *Builder) Ref(name string) *mir.LocalRef {
	return &mir.LocalRef{Local: b.Local(name)}
}

// Field returns a reference to field of the object held in base.
func (b *Builder) Field(base, field string) *mir.FieldRef {
	return &mir.FieldRef{Base: b.Local(base), Field: field}
}

// Block returns the block called label, creating it on first use.
func (b *Builder) Block(label string) *mir.BasicBlock {
	if block, ok := b.blocks[label]; ok {
		return block
	}
	block := &mir.BasicBlock{Label: label}
	b.blocks[label] = block
	b.fn.Blocks = append(b.fn.Blocks, block)
	if b.fn.Entry == nil {
		b.fn.Entry = block
	}
	return block
}

// Assign appends "dest = rhs" to the block.
func (b *Builder) Assign(label string, dest mir.Place, rhs mir.Operand) *Builder {
	block := b.Block(label)
	block.Statements = append(block.Statements, &mir.Assign{Dest: dest, RHS: rhs})
	return b
}

// Set appends "name = rhs" to the block.
func (b *Builder) Set(label, name string, rhs mir.Operand) *Builder {
	return b.Assign(label, b.Ref(name), rhs)
}

// Goto ends the block with a jump.
func (b *Builder) Goto(label, target string) *Builder {
	b.Block(label).Terminator = &mir.Goto{Target: b.Block(target)}
	return b
}

// Branch ends the block with "if cond goto t else f".
func (b *Builder) Branch(label string, cond mir.Condition, t, f string) *Builder {
	block := b.Block(label)
	block.Terminator = &mir.Branch{Condition: cond, True: b.Block(t), False: b.Block(f)}
	return b
}

// Return ends the block with a return of value, which may be nil.
func (b *Builder) Return(label string, value mir.Operand) *Builder {
	b.Block(label).Terminator = &mir.Return{Value: value}
	return b
}

// Func returns the assembled procedure.
func (b *Builder) Func() *mir.Function { return b.fn }

// Lit returns a literal operand.
func Lit(v interface{}) *mir.Literal { return &mir.Literal{Value: v} }

// Cmp returns the comparison x op y.
func Cmp(op mir.CmpOp, x, y mir.Operand) *mir.Compare {
	return &mir.Compare{Op: op, X: x, Y: y}
}
