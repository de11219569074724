package il

import (
	"fmt"

	"github.com/mna/microvium/lang/token"
	"golang.org/x/exp/slices"
)

// cursor drives compilation of one Function (spec §4.2 "Cursor"):
// {unit, function, current block, current stack depth, break scope,
// reachability flag, pending comment}.
type cursor struct {
	unit  *Unit
	fn    *Function
	block *Block
	depth int

	// reachable is false once the current block has emitted a terminator
	// (Return, Jump, Branch); further emit calls are silently dropped
	// (spec §4.2 "Unreachable code after a terminator is suppressed").
	reachable bool

	breakTargets []BlockID

	pendingComment string
	curPos         token.Pos
}

// at stashes the source position that will be attached to the next
// emitted Operation.
func (c *cursor) at(pos token.Pos) { c.curPos = pos }

func newCursor(unit *Unit, fn *Function) *cursor {
	entry := fn.newBlock()
	fn.EntryBlockID = entry.ID
	entry.created = true
	entry.depthSet = true
	return &cursor{unit: unit, fn: fn, block: entry, reachable: true}
}

// comment stashes a note that will be attached to the next emitted
// Operation, then cleared.
func (c *cursor) comment(s string) { c.pendingComment = s }

// predeclareBlock reserves a BlockID for a forward branch target whose
// operations will be filled in later via startBlock (spec §4.2: "every
// predeclared block must eventually be created").
func (c *cursor) predeclareBlock() BlockID {
	return c.fn.newBlock().ID
}

// reachBlock records (on first arrival) or asserts (on every subsequent
// arrival) the stack depth at which control enters block id — the core of
// spec §3's "every entering edge agrees on stack depth" invariant.
func (c *cursor) reachBlock(id BlockID, depth int) {
	b := c.fn.Blocks[id]
	if !b.depthSet {
		b.ExpectedStackDepthAtEntry = depth
		b.depthSet = true
		return
	}
	if b.ExpectedStackDepthAtEntry != depth {
		panic(fmt.Sprintf("il: stack depth mismatch entering block %d: expected %d, got %d",
			id, b.ExpectedStackDepthAtEntry, depth))
	}
}

// startBlock makes id the current block, resuming compilation at the
// stack depth some earlier branch established for it via reachBlock.
func (c *cursor) startBlock(id BlockID) {
	b := c.fn.Blocks[id]
	if !b.depthSet {
		// An unreachable predeclared block (e.g. the join block of a
		// `return`-terminated if/else with no fallthrough): stack depth is
		// moot, default to the depth entering this call for a usable value.
		b.ExpectedStackDepthAtEntry = c.depth
		b.depthSet = true
	}
	b.created = true
	c.block = b
	c.depth = b.ExpectedStackDepthAtEntry
	c.reachable = true
}

// emit appends one operation to the current block, stamping stack depths
// and the opcode's static (or Call's argument-derived) delta.
func (c *cursor) emit(op Opcode, operands Operands) {
	if !c.reachable {
		return
	}
	before := c.depth
	var after int
	if stackEffect[op] == variableStackEffect {
		// Call pops callee + this + argc explicit args, pushes one result.
		after = before - (operands.ArgCount + 1)
	} else {
		after = before + stackEffect[op]
	}
	if after < 0 {
		panic(fmt.Sprintf("il: stack underflow emitting %s", op))
	}
	o := Operation{
		Opcode:           op,
		Operands:         operands,
		StackDepthBefore: before,
		StackDepthAfter:  after,
		Comment:          c.pendingComment,
		Pos:              c.curPos,
	}
	c.pendingComment = ""
	c.block.Operations = append(c.block.Operations, o)
	c.depth = after
	if op == Return {
		c.reachable = false
	}
}

// jump emits an unconditional Jump to target and marks the current block
// as terminated.
func (c *cursor) jump(target BlockID) {
	if !c.reachable {
		return
	}
	c.reachBlock(target, c.depth)
	c.emit(Jump, Operands{Target: target})
	c.reachable = false
}

// branch emits a Branch that consumes the top-of-stack condition and
// continues at trueTarget or falseTarget.
func (c *cursor) branch(trueTarget, falseTarget BlockID) {
	if !c.reachable {
		return
	}
	afterPop := c.depth - 1
	c.reachBlock(trueTarget, afterPop)
	c.reachBlock(falseTarget, afterPop)
	c.emit(Branch, Operands{TrueTarget: trueTarget, FalseTarget: falseTarget})
	c.reachable = false
}

// pushBreakTarget/popBreakTarget maintain the enclosing-loop-or-switch
// break-target stack (spec §4.2 "break"); slices.Delete keeps this in sync
// with the rest of the pack's use of golang.org/x/exp/slices for small
// stack-shaped helpers rather than hand-rolled slicing.
func (c *cursor) pushBreakTarget(id BlockID) { c.breakTargets = append(c.breakTargets, id) }
func (c *cursor) popBreakTarget() {
	c.breakTargets = slices.Delete(c.breakTargets, len(c.breakTargets)-1, len(c.breakTargets))
}
func (c *cursor) currentBreakTarget() (BlockID, bool) {
	if len(c.breakTargets) == 0 {
		return 0, false
	}
	return c.breakTargets[len(c.breakTargets)-1], true
}
