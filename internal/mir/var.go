package mir

import "fmt"

// VarKind distinguishes the storage a Var names.
type VarKind uint8

const (
	VarLocal VarKind = iota + 1
	VarField
	VarStatic
	VarReturn
)

// Var identifies an assignable storage location. It is comparable, so two
// field references naming the same base slot and field are the same
// variable even though the front-end creates a new FieldRef per occurrence.
type Var struct {
	Kind  VarKind
	Slot  int    // local slot, or base slot of a field
	Field string // field name for VarField and VarStatic
}

// LocalVar returns the variable of a local slot.
func LocalVar(l Local) Var {
	return Var{Kind: VarLocal, Slot: l.ID}
}

// FieldVar returns the variable of field on the object held in base.
func FieldVar(base Local, field string) Var {
	return Var{Kind: VarField, Slot: base.ID, Field: field}
}

// StaticVar returns the variable of a static field.
func StaticVar(field string) Var {
	return Var{Kind: VarStatic, Slot: -1, Field: field}
}

// ReturnVar is the reserved variable defined by Return terminators.
var ReturnVar = Var{Kind: VarReturn, Slot: -1}

// IsHeap reports whether v lives in the heap rather than a local slot.
func (v Var) IsHeap() bool {
	return v.Kind == VarField || v.Kind == VarStatic
}

func (v Var) String() string {
	switch v.Kind {
	case VarLocal:
		return fmt.Sprintf("_%d", v.Slot)
	case VarField:
		return fmt.Sprintf("_%d.%s", v.Slot, v.Field)
	case VarStatic:
		return "static." + v.Field
	case VarReturn:
		return "$return"
	}
	return "<?var>"
}

// Names maps variables to display names using the procedure's locals.
type Names map[Var]string

// VarNames collects display names for every local and parameter of fn.
func VarNames(fn *Function) Names {
	names := make(Names)
	for _, l := range append(append([]Local(nil), fn.Params...), fn.Locals...) {
		names[LocalVar(l)] = localString(l)
	}
	return names
}

// Name returns the display name of v.
func (n Names) Name(v Var) string {
	switch v.Kind {
	case VarLocal:
		if name, ok := n[v]; ok {
			return name
		}
	case VarField:
		if name, ok := n[Var{Kind: VarLocal, Slot: v.Slot}]; ok {
			return name + "." + v.Field
		}
	}
	return v.String()
}
