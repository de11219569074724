package vm

import (
	"fmt"

	"github.com/mna/microvium/internal/il"
)

// Frame is one activation record on a Thread's call stack: the operand
// stack, the locals array, the incoming arguments, and a cursor into the
// currently-executing Block. Grounded on the teacher's lang/machine/frame.go
// Frame, simplified since this interpreter has no bytecode program counter
// to report in a traceback — a Block/operation-index pair already pinpoints
// the position, and the teacher's Position()/callableWithPosition plumbing
// has no analogue without a stack-unwinding debugger in scope here.
type Frame struct {
	fn      *il.Function
	closure *Closure // nil for the module #entry frame

	args   []Value
	locals []Value
	stack  []Value

	// scopeVec is this frame's closure vector: either freshly allocated
	// (fn.LocalSlots... no, fn.ClosureSlots > 0, the producer case) or
	// inherited from closure.Captured (the consumer case, fn.ClosureSlots
	// == 0 but the function's body still has LoadScoped/StoreScoped ops
	// addressing an enclosing function's vector). A function can't be both
	// in this single-level-capture model (spec §9 Open Question); see
	// DESIGN.md's internal/scope entry on CapturesOuterScope.
	scopeVec []*cell

	block *il.Block
	ip    int
}

func newFrame(fn *il.Function, closure *Closure, this Value, args []Value) *Frame {
	fr := &Frame{fn: fn, closure: closure}

	fr.args = make([]Value, fn.ParamCount+1)
	fr.args[0] = this
	for i := 0; i < fn.ParamCount; i++ {
		if i < len(args) {
			fr.args[i+1] = args[i]
		} else {
			fr.args[i+1] = Undefined{}
		}
	}

	fr.locals = make([]Value, fn.LocalSlots)
	for i := range fr.locals {
		fr.locals[i] = Undefined{}
	}

	switch {
	case fn.ClosureSlots > 0:
		fr.scopeVec = make([]*cell, fn.ClosureSlots)
		for i := range fr.scopeVec {
			fr.scopeVec[i] = &cell{v: Undefined{}}
		}
	case closure != nil:
		fr.scopeVec = closure.Captured
	}

	fr.stack = make([]Value, 0, fn.MaxStackDepth+4)
	fr.block = fn.Blocks[fn.EntryBlockID]
	return fr
}

func (fr *Frame) push(v Value) { fr.stack = append(fr.stack, v) }

func (fr *Frame) pop() Value {
	n := len(fr.stack)
	v := fr.stack[n-1]
	fr.stack = fr.stack[:n-1]
	return v
}

func (fr *Frame) popN(n int) []Value {
	start := len(fr.stack) - n
	out := make([]Value, n)
	copy(out, fr.stack[start:])
	fr.stack = fr.stack[:start]
	return out
}

func (fr *Frame) top() Value { return fr.stack[len(fr.stack)-1] }

// jumpTo transfers control to the block identified by id within the same
// function, resetting the operation cursor.
func (fr *Frame) jumpTo(id il.BlockID) error {
	b, ok := fr.fn.Blocks[id]
	if !ok {
		return fmt.Errorf("vm: function %s has no block %d", fr.fn.Name, id)
	}
	fr.block = b
	fr.ip = 0
	return nil
}
