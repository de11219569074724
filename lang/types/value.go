// Package types defines a runtime value model, and the 16-bit wire
// encodings and allocation headers used by internal/snapshot (internal/il
// and internal/vm keep their own value types). The value model is a
// closed tagged union (spec §3), not an
// interface-per-concrete-type object model, because every Value must also
// have an exact 16-bit wire encoding (see encoding.go).
package types

import (
	"fmt"
	"math"
	"strconv"
)

// Kind discriminates the variant held by a Value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBoolean
	KindNumber
	KindString
	KindReference
	KindFunction
	KindHostFunction
	KindEphemeral
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindReference:
		return "reference"
	case KindFunction:
		return "function"
	case KindHostFunction:
		return "host function"
	case KindEphemeral:
		return "ephemeral"
	default:
		return "unknown kind"
	}
}

// AllocationId identifies a heap Allocation (spec §3), unique within one
// compilation/VM session.
type AllocationId uint32

// FunctionId identifies a compiled IL function.
type FunctionId uint32

// HostFunctionId identifies a function imported from the host, addressed as
// a 16-bit id on the wire (spec §6).
type HostFunctionId uint16

// Ephemeral is an opaque external handle that never survives a snapshot;
// attempting to encode one is an InvalidOperation.
type Ephemeral struct {
	Handle any
}

// Value is the tagged union of every value the compiled program and the
// host-side VM can manipulate. The zero Value is Undefined.
type Value struct {
	kind Kind
	num  float64
	str  string
	ref  AllocationId
	fn   FunctionId
	host HostFunctionId
	eph  Ephemeral
}

// Undefined is the literal `undefined` value (spec §6: a literal, never a
// binding).
var Undefined = Value{kind: KindUndefined}

// Null is the literal `null` value.
var Null = Value{kind: KindNull}

// Bool returns the Boolean value b.
func Bool(b bool) Value {
	n := float64(0)
	if b {
		n = 1
	}
	return Value{kind: KindBoolean, num: n}
}

// Number returns a Number value, preserving +0/-0/NaN distinctions exactly
// as given (spec §3).
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// String returns a String value. Interning (so that identical text shares
// one string-table entry in a snapshot) is the encoder's concern, not this
// type's.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Reference returns a Value pointing at the heap Allocation id.
func Reference(id AllocationId) Value { return Value{kind: KindReference, ref: id} }

// Func returns a Value referring to a compiled function.
func Func(id FunctionId) Value { return Value{kind: KindFunction, fn: id} }

// HostFunc returns a Value referring to a host-imported function.
func HostFunc(id HostFunctionId) Value { return Value{kind: KindHostFunction, host: id} }

// EphemeralValue wraps an opaque host handle. It can never be serialized
// into a snapshot.
func EphemeralValue(handle any) Value {
	return Value{kind: KindEphemeral, eph: Ephemeral{Handle: handle}}
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsUndefined() bool { return v.kind == KindUndefined }
func (v Value) IsNull() bool      { return v.kind == KindNull }

// AsBool panics if v is not a Boolean; callers must check Kind first, the
// same discipline the teacher's type-asserting Value interface imposed.
func (v Value) AsBool() bool {
	v.mustBe(KindBoolean)
	return v.num != 0
}

func (v Value) AsNumber() float64 {
	v.mustBe(KindNumber)
	return v.num
}

func (v Value) AsString() string {
	v.mustBe(KindString)
	return v.str
}

func (v Value) AsReference() AllocationId {
	v.mustBe(KindReference)
	return v.ref
}

func (v Value) AsFunction() FunctionId {
	v.mustBe(KindFunction)
	return v.fn
}

func (v Value) AsHostFunction() HostFunctionId {
	v.mustBe(KindHostFunction)
	return v.host
}

func (v Value) AsEphemeral() Ephemeral {
	v.mustBe(KindEphemeral)
	return v.eph
}

func (v Value) mustBe(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("types: value is %s, not %s", v.kind, k))
	}
}

// Type returns the short type name the way the teacher's Value.Type()
// method does, for diagnostics and `typeof`-shaped error messages.
func (v Value) Type() string { return v.kind.String() }

// Truth implements the language's truthiness rule: false, 0, NaN, "",
// null and undefined are falsy; everything else (including references) is
// truthy.
func (v Value) Truth() bool {
	switch v.kind {
	case KindUndefined, KindNull:
		return false
	case KindBoolean:
		return v.num != 0
	case KindNumber:
		return v.num != 0 && !math.IsNaN(v.num)
	case KindString:
		return v.str != ""
	default:
		return true
	}
}

// String renders v for diagnostics; it is not used for wire encoding.
func (v Value) String() string {
	switch v.kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBoolean:
		return strconv.FormatBool(v.num != 0)
	case KindNumber:
		return formatNumber(v.num)
	case KindString:
		return v.str
	case KindReference:
		return fmt.Sprintf("[object %d]", v.ref)
	case KindFunction:
		return fmt.Sprintf("[function %d]", v.fn)
	case KindHostFunction:
		return fmt.Sprintf("[host function %d]", v.host)
	case KindEphemeral:
		return "[ephemeral]"
	default:
		return "?"
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

// StrictEquals implements the `===` operator: same kind and equal
// value, with distinct +0/-0 comparing equal and NaN comparing unequal to
// itself per IEEE 754 (spec §3 explicitly tracks the +0/-0/NaN
// distinction for storage, not for comparison).
func StrictEquals(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindUndefined, KindNull:
		return true
	case KindBoolean:
		return a.num == b.num
	case KindNumber:
		return a.num == b.num
	case KindString:
		return a.str == b.str
	case KindReference:
		return a.ref == b.ref
	case KindFunction:
		return a.fn == b.fn
	case KindHostFunction:
		return a.host == b.host
	case KindEphemeral:
		return false
	default:
		return false
	}
}
