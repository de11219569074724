// Package vm implements the Host-side VM (spec §6): a stack-machine
// interpreter that executes an il.Unit's #entry function to settle a
// module's top-level side effects, then exposes the resulting object graph
// through the host API (create/evaluateModule/exportValue/resolveExport/
// importHostFunction/garbageCollect/createSnapshotInfo). Grounded on the
// teacher's lang/machine package (Value interface, cell-boxing for captured
// locals, Frame/Thread call-stack shape), generalized from nenuphar's
// Starlark-style dynamic-operator-dispatch value model (HasBinary/HasUnary/
// Ordered/HasEqual) to Microvium's much smaller closed value set, since
// every operator here is already resolved to a concrete il.BinOp by the IL
// compiler rather than dispatched dynamically per-value-type.
package vm

import (
	"fmt"

	"github.com/dolthub/swiss"
	"github.com/mna/microvium/internal/il"
)

// Value is any runtime value the interpreter manipulates.
type Value interface {
	String() string
	Type() string
}

// Undefined is the value of an uninitialized binding and of a bare return.
type Undefined struct{}

func (Undefined) String() string { return "undefined" }
func (Undefined) Type() string   { return "undefined" }

// Null is the `null` literal.
type Null struct{}

func (Null) String() string { return "null" }
func (Null) Type() string   { return "null" }

// Bool is a boolean value.
type Bool bool

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (Bool) Type() string { return "boolean" }

// Number is the IEEE-754 double every numeric literal and arithmetic
// operation produces (spec §3 Value: no separate integer type).
type Number float64

func (n Number) String() string { return fmt.Sprintf("%g", float64(n)) }
func (Number) Type() string     { return "number" }

// String is a string value.
type String string

func (s String) String() string { return string(s) }
func (String) Type() string     { return "string" }

// Object backs both plain object literals and a module's namespace object
// (spec §4.2's ModuleImportExportSlot accessor reads/writes one via
// LoadGlobal+ObjectGet/ObjectSet). Property storage uses a swiss-table map
// exactly like the teacher's lang/machine.Map, since a module namespace and
// every object literal is the same "small hash map churned over a VM run"
// shape that library targets.
type Object struct {
	props *swiss.Map[string, Value]
}

// NewObject returns an empty Object with initial capacity for size
// properties.
func NewObject(size int) *Object {
	if size < 1 {
		size = 1
	}
	return &Object{props: swiss.NewMap[string, Value](uint32(size))}
}

func (o *Object) String() string { return fmt.Sprintf("object(%p)", o) }
func (o *Object) Type() string   { return "object" }

func (o *Object) Get(key string) (Value, bool) {
	return o.props.Get(key)
}

func (o *Object) Set(key string, v Value) {
	o.props.Put(key, v)
}

// Iterate calls fn once per property, in unspecified order, stopping early
// if fn returns false. Used by internal/snapshot to walk the object graph.
func (o *Object) Iterate(fn func(key string, v Value) bool) {
	o.props.Iter(func(k string, v Value) bool {
		return !fn(k, v)
	})
}

// Array backs array literals. Indices are carried as Number keys on the
// same ObjectGet/ObjectSet opcodes an Object uses (spec §4.2's array
// literal lowering: ArrayNew then repeated `Dup; index; value; ObjectSet`),
// so Array exposes the same get/set-by-Value-key shape, backed by a plain
// growable slice instead of a hash map since array indices are dense.
type Array struct {
	elems []Value
}

// NewArray returns an empty Array.
func NewArray() *Array { return &Array{} }

func (a *Array) String() string { return fmt.Sprintf("array(%p, len=%d)", a, len(a.elems)) }
func (a *Array) Type() string   { return "array" }

func (a *Array) Get(index int) Value {
	if index < 0 || index >= len(a.elems) {
		return Undefined{}
	}
	return a.elems[index]
}

func (a *Array) Set(index int, v Value) {
	if index < 0 {
		return
	}
	if index >= len(a.elems) {
		grown := make([]Value, index+1)
		copy(grown, a.elems)
		for i := len(a.elems); i < index; i++ {
			grown[i] = Undefined{}
		}
		a.elems = grown
	}
	a.elems[index] = v
}

func (a *Array) Len() int { return len(a.elems) }

// cell is a box containing a Value, shared by a closure's captured
// variables and the defining function's own closure-vector slot (spec §3
// "Closure representation"): a local promoted to a ClosureSlot stores a
// *cell so mutations are visible to every nested function that captured
// it. Grounded on the teacher's lang/machine/cell.go.
type cell struct{ v Value }

// Closure is a callable value produced by ClosureNew (a function literal
// whose FunctionIsClosure scope captured at least one slot) or a plain
// function literal with no captures (Captured is nil in that case).
type Closure struct {
	FunctionID il.FunctionID
	Name       string
	Captured   []*cell // the enclosing scope's closure vector, shared by reference
}

func (c *Closure) String() string { return fmt.Sprintf("function %s(%p)", c.Name, c) }
func (c *Closure) Type() string   { return "function" }

// CapturedLen reports the size of the closure vector this closure carries
// (0 for a function literal that captured nothing).
func (c *Closure) CapturedLen() int { return len(c.Captured) }

// CapturedValue reads the current value of captured cell i. Used by
// internal/snapshot to walk a closure's reachable graph.
func (c *Closure) CapturedValue(i int) Value {
	if i < 0 || i >= len(c.Captured) || c.Captured[i] == nil {
		return Undefined{}
	}
	return c.Captured[i].v
}

// HostFunction is a Go-implemented callable, used both for host functions
// registered via importHostFunction and for VM-builtin globals like
// vmExport (spec §6).
type HostFunction struct {
	Name string
	Fn   func(th *Thread, this Value, args []Value) (Value, error)
}

func (f *HostFunction) String() string { return fmt.Sprintf("host function %s", f.Name) }
func (f *HostFunction) Type() string   { return "function" }

// Callable is implemented by every value that Call's opcode may invoke.
type Callable interface {
	Value
	callableMarker()
}

func (*Closure) callableMarker()      {}
func (*HostFunction) callableMarker() {}
