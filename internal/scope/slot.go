package scope

import "fmt"

// Slot is the closed sum of accessor kinds a Binding can resolve to after
// pass 2 (spec §3). There is no runtime scope-walk: every reference is
// statically lowered to exactly one of these five concrete accessors
// (spec §9 "Source dynamism → static lowering").
type Slot interface {
	slot()
	String() string
}

// LocalSlot is an operand-stack position within the current function.
type LocalSlot struct{ Index int }

// ArgumentSlot is an immutable incoming argument; index 0 is always `this`.
type ArgumentSlot struct{ ArgIndex int }

// ClosureSlot indexes into the enclosing function's closure vector.
type ClosureSlot struct{ Index int }

// GlobalSlot is a module-wide unique name, disambiguated by naming.go.
type GlobalSlot struct{ Name string }

// ModuleImportExportSlot accesses a property of another module's exported
// namespace object.
type ModuleImportExportSlot struct {
	NamespaceSlot Slot
	PropertyName  string
}

func (LocalSlot) slot()               {}
func (ArgumentSlot) slot()            {}
func (ClosureSlot) slot()             {}
func (GlobalSlot) slot()              {}
func (ModuleImportExportSlot) slot()  {}

func (s LocalSlot) String() string    { return fmt.Sprintf("local %d", s.Index) }
func (s ArgumentSlot) String() string { return fmt.Sprintf("arg %d", s.ArgIndex) }
func (s ClosureSlot) String() string  { return fmt.Sprintf("closure %d", s.Index) }
func (s GlobalSlot) String() string   { return "global " + s.Name }
func (s ModuleImportExportSlot) String() string {
	return "import " + s.PropertyName + " via " + s.NamespaceSlot.String()
}
