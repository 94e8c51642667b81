package dfg

import (
	"testing"

	"github.com/malphas-lang/ifconv/internal/mir"
)

// TestValueMapScopes tests lookups through nested scopes
func TestValueMapScopes(t *testing.T) {
	x := mir.LocalVar(mir.Local{ID: 0, Name: "x"})
	f := mir.FieldVar(mir.Local{ID: 1, Name: "o"}, "f")
	in := &Node{id: 1, Kind: KindLiveIn, Var: x}
	d1 := &Node{id: 2, Kind: KindDef, Var: x}
	d2 := &Node{id: 3, Kind: KindDef, Var: x}

	root := NewValueMap()
	root.SetLiveIn(x, in)
	if n, ok := root.Lookup(x); !ok || n != in {
		t.Errorf("Expected the live-in, got %v", n)
	}
	root.Define(x, d1)
	if n, _ := root.Lookup(x); n != d1 {
		t.Errorf("Expected a definition to shadow the live-in, got %v", n)
	}

	child := root.Fork()
	if _, ok := child.Local(x); ok {
		t.Errorf("Did not expect a local definition in a fresh scope")
	}
	if n, _ := child.Lookup(x); n != d1 {
		t.Errorf("Expected the parent definition, got %v", n)
	}
	child.Define(x, d2)
	if n, _ := root.Lookup(x); n != d1 {
		t.Errorf("Expected the parent to be unaffected, got %v", n)
	}

	grand := child.Fork()
	grand.Define(f, d2)
	below := grand.DefinedBelow(root)
	if len(below) != 2 || below[0] != x || below[1] != f {
		t.Errorf("Expected [x o.f] below root, got %v", below)
	}
	if _, ok := grand.LookupBelow(child, x); ok {
		t.Errorf("Did not expect x between grand and child")
	}

	grand.SetLiveIn(f, in)
	if got := root.LiveIns(); len(got) != 2 {
		t.Errorf("Expected live-ins to be kept at the root, got %v", got)
	}
}

// TestValueMapClone tests that clones record definitions independently
func TestValueMapClone(t *testing.T) {
	x := mir.LocalVar(mir.Local{ID: 0})
	d1 := &Node{id: 1, Kind: KindDef}
	d2 := &Node{id: 2, Kind: KindDef}

	m := NewValueMap()
	m.Define(x, d1)
	c := m.Clone()
	c.Define(x, d2)

	if got := m.History(x); len(got) != 1 || got[0] != d1 {
		t.Errorf("Expected the original history to be untouched, got %v", got)
	}
	if got := c.History(x); len(got) != 2 || got[1] != d2 {
		t.Errorf("Expected the clone to record d2 last, got %v", got)
	}
}

// TestFieldIdentity tests that separate field references to the same base
// and field are one variable
func TestFieldIdentity(t *testing.T) {
	o := mir.Local{ID: 3, Name: "o"}
	first := &mir.FieldRef{Base: o, Field: "f"}
	second := &mir.FieldRef{Base: o, Field: "f"}
	d := &Node{id: 1, Kind: KindDef}

	m := NewValueMap()
	m.Define(first.Var(), d)
	if n, ok := m.Lookup(second.Var()); !ok || n != d {
		t.Errorf("Expected o.f to resolve through a fresh reference, got %v", n)
	}
	other := &mir.FieldRef{Base: mir.Local{ID: 4}, Field: "f"}
	if _, ok := m.Lookup(other.Var()); ok {
		t.Errorf("Did not expect a different base to match")
	}
}
