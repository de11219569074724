package vm

import (
	"fmt"
	"math"
	"strconv"

	"github.com/mna/microvium/internal/il"
)

// RuntimeError wraps a failure raised while interpreting a Unit (spec §7
// "Runtime errors are reported with the offending function/block/operation
// coordinates, not a raw panic").
type RuntimeError struct {
	Function  string
	BlockID   il.BlockID
	Operation int
	Msg       string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("vm: %s (in %s, block %d, op %d)", e.Msg, e.Function, e.BlockID, e.Operation)
}

// Thread runs the stack-machine interpreter loop over one call stack.
// Grounded on the teacher's lang/machine/thread.go Thread, stripped down to
// what a single module-evaluation run actually needs: no Load-based module
// loader (internal/vm's own EvaluateModule replaces it), no
// DisableRecursion/MaxCompareDepth knobs (there is no user-facing recursion
// toggle or deep-compare operation in this language), but the step-counter
// cancellation mechanism is kept since an unbounded `while(true){}` script
// is exactly the runaway case spec §7 calls out.
type Thread struct {
	Name     string
	MaxSteps uint64

	steps     uint64
	callStack []*Frame
}

// NewThread returns a Thread with no step limit (MaxSteps == 0 means
// unlimited).
func NewThread(name string) *Thread {
	return &Thread{Name: name}
}

func (th *Thread) depth() int { return len(th.callStack) }

// maxCallDepth bounds recursion the same way spec §7 bounds steps: a
// runaway recursive script fails with a RuntimeError instead of taking down
// the host process with a Go stack overflow.
const maxCallDepth = 1 << 14

// Call invokes callee(this, args...) to completion and returns its result.
func (vm *VM) Call(th *Thread, callee Value, this Value, args []Value) (Value, error) {
	switch c := callee.(type) {
	case *Closure:
		return vm.callClosure(th, c, this, args)
	case *HostFunction:
		return vm.callHost(th, c, this, args)
	default:
		return nil, &RuntimeError{Msg: fmt.Sprintf("value of type %s is not callable", callee.Type())}
	}
}

func (vm *VM) callHost(th *Thread, hf *HostFunction, this Value, args []Value) (Value, error) {
	if th.depth() >= maxCallDepth {
		return nil, &RuntimeError{Msg: "call stack exceeded"}
	}
	th.callStack = append(th.callStack, nil) // host frames still count toward depth
	defer func() { th.callStack = th.callStack[:len(th.callStack)-1] }()
	return hf.Fn(th, this, args)
}

func (vm *VM) callClosure(th *Thread, c *Closure, this Value, args []Value) (Value, error) {
	fn, ok := vm.unit.Functions[c.FunctionID]
	if !ok {
		return nil, &RuntimeError{Msg: fmt.Sprintf("no function #%d", c.FunctionID)}
	}
	if th.depth() >= maxCallDepth {
		return nil, &RuntimeError{Function: fn.Name, Msg: "call stack exceeded"}
	}

	fr := newFrame(fn, c, this, args)
	th.callStack = append(th.callStack, fr)
	defer func() { th.callStack = th.callStack[:len(th.callStack)-1] }()

	return vm.run(th, fr)
}

// run executes fr's function to a Return, dispatching one Operation at a
// time. Grounded on the teacher's lang/machine/machine.go `run()` switch-
// dispatch loop, generalized from a linear program-counter to a block/
// operation-index cursor since this IL is a structural CFG rather than
// nenuphar's flat bytecode stream.
func (vm *VM) run(th *Thread, fr *Frame) (Value, error) {
	for {
		if fr.ip >= len(fr.block.Operations) {
			return nil, vm.rtErr(fr, "fell off the end of a block with no terminator")
		}
		op := fr.block.Operations[fr.ip]

		th.steps++
		if th.MaxSteps > 0 && th.steps > th.MaxSteps {
			return nil, vm.rtErr(fr, "step budget exceeded")
		}

		switch op.Opcode {
		case il.Dup:
			fr.push(fr.top())
		case il.Dup2:
			b := fr.pop()
			a := fr.pop()
			fr.push(a)
			fr.push(b)
			fr.push(a)
			fr.push(b)
		case il.Swap:
			b := fr.pop()
			a := fr.pop()
			fr.push(b)
			fr.push(a)
		case il.Pop:
			fr.pop()

		case il.Literal:
			fr.push(vm.literalValue(op.Operands.Const))

		case il.LoadVar:
			fr.push(fr.locals[op.Operands.Index])
		case il.StoreVar:
			fr.locals[op.Operands.Index] = fr.top()

		case il.LoadArg:
			fr.push(fr.args[op.Operands.Index])

		case il.LoadScoped:
			fr.push(fr.scopeVec[op.Operands.Index].v)
		case il.StoreScoped:
			fr.scopeVec[op.Operands.Index].v = fr.top()

		case il.LoadGlobal:
			v, ok := vm.globals.Get(op.Operands.Name)
			if !ok {
				v = Undefined{}
			}
			fr.push(v)
		case il.StoreGlobal:
			vm.globals.Put(op.Operands.Name, fr.top())

		case il.ObjectNew:
			obj := NewObject(4)
			vm.track(obj)
			fr.push(obj)
		case il.ArrayNew:
			arr := NewArray()
			vm.track(arr)
			fr.push(arr)

		case il.ObjectGet:
			key := fr.pop()
			container := fr.pop()
			v, err := vm.getProperty(container, key)
			if err != nil {
				return nil, vm.rtErr(fr, err.Error())
			}
			fr.push(v)
		case il.ObjectSet:
			value := fr.pop()
			key := fr.pop()
			container := fr.pop()
			if err := vm.setProperty(container, key, value); err != nil {
				return nil, vm.rtErr(fr, err.Error())
			}
			fr.push(value)

		case il.BinaryOp:
			b := fr.pop()
			a := fr.pop()
			v, err := evalBinOp(op.Operands.BinOp, a, b)
			if err != nil {
				return nil, vm.rtErr(fr, err.Error())
			}
			fr.push(v)

		case il.ClosureNew:
			top := fr.pop()
			cl, ok := top.(*Closure)
			if !ok {
				return nil, vm.rtErr(fr, "ClosureNew applied to a non-function value")
			}
			cl.Captured = fr.scopeVec
			vm.track(cl)
			fr.push(cl)

		case il.Call:
			argc := op.Operands.ArgCount
			argsAndThisAndCallee := fr.popN(argc + 2)
			callee := argsAndThisAndCallee[0]
			this := argsAndThisAndCallee[1]
			args := argsAndThisAndCallee[2:]
			result, err := vm.Call(th, callee, this, args)
			if err != nil {
				return nil, err
			}
			fr.push(result)

		case il.Return:
			return fr.pop(), nil

		case il.Jump:
			if err := fr.jumpTo(op.Operands.Target); err != nil {
				return nil, vm.rtErr(fr, err.Error())
			}
			continue

		case il.Branch:
			cond := fr.pop()
			target := op.Operands.FalseTarget
			if truthy(cond) {
				target = op.Operands.TrueTarget
			}
			if err := fr.jumpTo(target); err != nil {
				return nil, vm.rtErr(fr, err.Error())
			}
			continue

		default:
			return nil, vm.rtErr(fr, fmt.Sprintf("unimplemented opcode %s", op.Opcode))
		}

		fr.ip++
	}
}

func (vm *VM) rtErr(fr *Frame, msg string) error {
	return &RuntimeError{Function: fr.fn.Name, BlockID: fr.block.ID, Operation: fr.ip, Msg: msg}
}

// literalValue converts an il.Value constant-operand into a runtime Value.
// A ValFunction literal always yields a *Closure with a nil Captured; the
// following ClosureNew (if the compiler emitted one for this function, spec
// §4.2 and DESIGN.md's CapturesOuterScope note) fills Captured in before the
// closure is ever called.
func (vm *VM) literalValue(c il.Value) Value {
	switch c.Kind {
	case il.ValUndefined:
		return Undefined{}
	case il.ValNull:
		return Null{}
	case il.ValBoolTrue:
		return Bool(true)
	case il.ValBoolFalse:
		return Bool(false)
	case il.ValNumber:
		return Number(c.Number)
	case il.ValString:
		return String(c.Str)
	case il.ValFunction:
		name := ""
		if fn, ok := vm.unit.Functions[c.FunctionID]; ok {
			name = fn.Name
		}
		cl := &Closure{FunctionID: c.FunctionID, Name: name}
		vm.track(cl)
		return cl
	default:
		return Undefined{}
	}
}

func truthy(v Value) bool {
	switch t := v.(type) {
	case Undefined, Null:
		return false
	case Bool:
		return bool(t)
	case Number:
		f := float64(t)
		return f != 0 && !math.IsNaN(f)
	case String:
		return t != ""
	default:
		return true
	}
}

func toNumber(v Value) float64 {
	switch t := v.(type) {
	case Number:
		return float64(t)
	case Bool:
		if t {
			return 1
		}
		return 0
	case String:
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case Null:
		return 0
	default:
		return math.NaN()
	}
}

func toIntBits(v Value) int32 {
	f := toNumber(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(int64(f))
}

func evalBinOp(op il.BinOp, a, b Value) (Value, error) {
	switch op {
	case il.Add:
		as, aIsStr := a.(String)
		bs, bIsStr := b.(String)
		if aIsStr || bIsStr {
			left := as
			if !aIsStr {
				left = String(a.String())
			}
			right := bs
			if !bIsStr {
				right = String(b.String())
			}
			return left + right, nil
		}
		return Number(toNumber(a) + toNumber(b)), nil
	case il.Sub:
		return Number(toNumber(a) - toNumber(b)), nil
	case il.Mul:
		return Number(toNumber(a) * toNumber(b)), nil
	case il.Div:
		return Number(toNumber(a) / toNumber(b)), nil
	case il.Mod:
		return Number(math.Mod(toNumber(a), toNumber(b))), nil
	case il.DivTrunc:
		return Number(float64(toIntBits(Number(toNumber(a) / toNumber(b))))), nil
	case il.BitAnd:
		return Number(float64(toIntBits(a) & toIntBits(b))), nil
	case il.BitOr:
		return Number(float64(toIntBits(a) | toIntBits(b))), nil
	case il.BitXor:
		return Number(float64(toIntBits(a) ^ toIntBits(b))), nil
	case il.Shl:
		return Number(float64(toIntBits(a) << (uint32(toIntBits(b)) & 31))), nil
	case il.Shr:
		return Number(float64(toIntBits(a) >> (uint32(toIntBits(b)) & 31))), nil
	case il.Lt:
		return Bool(compareValues(a, b) < 0), nil
	case il.Le:
		return Bool(compareValues(a, b) <= 0), nil
	case il.Gt:
		return Bool(compareValues(a, b) > 0), nil
	case il.Ge:
		return Bool(compareValues(a, b) >= 0), nil
	case il.StrictEq:
		return Bool(strictEquals(a, b)), nil
	case il.StrictNeq:
		return Bool(!strictEquals(a, b)), nil
	default:
		return nil, fmt.Errorf("unsupported binary operator %s", op)
	}
}

func compareValues(a, b Value) int {
	as, aIsStr := a.(String)
	bs, bIsStr := b.(String)
	if aIsStr && bIsStr {
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	}
	af, bf := toNumber(a), toNumber(b)
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

// strictEquals implements `===`: no coercion, matching types and values
// (spec §3 Value: a closed set with reference identity for Object/Array/
// Closure/HostFunction).
func strictEquals(a, b Value) bool {
	switch av := a.(type) {
	case Undefined:
		_, ok := b.(Undefined)
		return ok
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case *Object:
		bv, ok := b.(*Object)
		return ok && av == bv
	case *Array:
		bv, ok := b.(*Array)
		return ok && av == bv
	case *Closure:
		bv, ok := b.(*Closure)
		return ok && av == bv
	case *HostFunction:
		bv, ok := b.(*HostFunction)
		return ok && av == bv
	default:
		return false
	}
}

// getProperty/setProperty implement ObjectGet/ObjectSet over both Object
// (string-keyed) and Array (Number-keyed, plus a synthetic "length"),
// matching the compiler's lowering of both object-literal properties and
// array-literal/indexing through the same two opcodes (spec §4.2).
func (vm *VM) getProperty(container, key Value) (Value, error) {
	switch c := container.(type) {
	case *Object:
		v, ok := c.Get(propertyKeyString(key))
		if !ok {
			return Undefined{}, nil
		}
		return v, nil
	case *Array:
		if s, ok := key.(String); ok && s == "length" {
			return Number(c.Len()), nil
		}
		return c.Get(int(toNumber(key))), nil
	case Undefined, Null:
		return nil, fmt.Errorf("cannot read property of %s", container.Type())
	default:
		return nil, fmt.Errorf("value of type %s has no properties", container.Type())
	}
}

func (vm *VM) setProperty(container, key, value Value) error {
	switch c := container.(type) {
	case *Object:
		c.Set(propertyKeyString(key), value)
		return nil
	case *Array:
		c.Set(int(toNumber(key)), value)
		return nil
	case Undefined, Null:
		return fmt.Errorf("cannot set property on %s", container.Type())
	default:
		return fmt.Errorf("value of type %s has no properties", container.Type())
	}
}

func propertyKeyString(key Value) string {
	if s, ok := key.(String); ok {
		return string(s)
	}
	return key.String()
}
