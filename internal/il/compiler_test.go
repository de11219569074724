package il_test

import (
	"testing"

	"github.com/mna/microvium/internal/il"
	"github.com/mna/microvium/internal/scope"
	"github.com/mna/microvium/lang/parser"
	"github.com/mna/microvium/lang/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileOne(t *testing.T, src string) *il.Unit {
	t.Helper()
	fset := token.NewFileSet()
	prog, err := parser.ParseSource(fset, "test.mv", []byte(src))
	require.NoError(t, err)
	mod, err := scope.ResolveProgram(fset, prog)
	require.NoError(t, err)
	unit, err := il.CompileProgram(fset, prog, mod)
	require.NoError(t, err)
	return unit
}

func entryFunc(u *il.Unit) *il.Function {
	return u.Functions[u.EntryFunctionID]
}

func allOps(fn *il.Function) []il.Operation {
	var out []il.Operation
	for id := BlockID(0); int(id) < len(fn.Blocks); id++ {
		b, ok := fn.Blocks[id]
		if !ok {
			continue
		}
		out = append(out, b.Operations...)
	}
	return out
}

type BlockID = il.BlockID

func opcodes(ops []il.Operation) []il.Opcode {
	out := make([]il.Opcode, len(ops))
	for i, op := range ops {
		out[i] = op.Opcode
	}
	return out
}

func TestCompileTrivialExport(t *testing.T) {
	unit := compileOne(t, `export let total = 1 + 2;`)
	require.Contains(t, unit.ModuleVariables, "total")

	fn := entryFunc(unit)
	ops := allOps(fn)
	require.NotEmpty(t, ops)

	var sawStoreGlobal bool
	for _, op := range ops {
		if op.Opcode == il.StoreGlobal && op.Operands.Name == "total" {
			sawStoreGlobal = true
		}
	}
	assert.True(t, sawStoreGlobal, "export should store into its GlobalSlot")
}

func TestCompileClosureCaptureRoundTrip(t *testing.T) {
	unit := compileOne(t, `
		function makeCounter() {
			var count = 0;
			function increment() {
				count = count + 1;
				return count;
			}
			return increment;
		}
		export let counter = makeCounter();
	`)

	var makeCounterID il.FunctionID
	var found bool
	for id, fn := range unit.Functions {
		if fn.Name == "makeCounter" {
			makeCounterID, found = id, true
		}
	}
	require.True(t, found, "makeCounter should be compiled as its own Function")
	makeCounter := unit.Functions[makeCounterID]

	var sawClosureNew bool
	for _, op := range allOps(makeCounter) {
		if op.Opcode == il.ClosureNew {
			sawClosureNew = true
		}
	}
	assert.True(t, sawClosureNew, "increment captures count, so its materialization should emit ClosureNew")

	var incrementID il.FunctionID
	found = false
	for id, fn := range unit.Functions {
		if fn.Name == "increment" {
			incrementID, found = id, true
		}
	}
	require.True(t, found)
	increment := unit.Functions[incrementID]
	assert.Greater(t, makeCounter.ClosureSlots, 0, "makeCounter should reserve a closure slot for the captured count")

	var sawLoadScoped, sawStoreScoped bool
	for _, op := range allOps(increment) {
		switch op.Opcode {
		case il.LoadScoped:
			sawLoadScoped = true
		case il.StoreScoped:
			sawStoreScoped = true
		}
	}
	assert.True(t, sawLoadScoped)
	assert.True(t, sawStoreScoped)
}

func TestCompileSwitchWithDefault(t *testing.T) {
	unit := compileOne(t, `
		function classify(n) {
			let result = 0;
			switch (n) {
			case 1:
				result = 10;
				break;
			case 2:
				result = 20;
				break;
			default:
				result = -1;
			}
			return result;
		}
	`)
	var fn *il.Function
	for _, f := range unit.Functions {
		if f.Name == "classify" {
			fn = f
		}
	}
	require.NotNil(t, fn)

	ops := allOps(fn)
	var eqCount, dupCount, branchCount int
	for _, op := range ops {
		switch op.Opcode {
		case il.BinaryOp:
			if op.Operands.BinOp == il.StrictEq {
				eqCount++
			}
		case il.Dup:
			dupCount++
		case il.Branch:
			branchCount++
		}
	}
	assert.Equal(t, 2, eqCount, "two non-default case tests")
	assert.GreaterOrEqual(t, dupCount, 2)
	assert.GreaterOrEqual(t, branchCount, 2)
}

func TestCompileIntegerTruncationIdiomFolds(t *testing.T) {
	unit := compileOne(t, `export let half = (7 / 2) | 0;`)
	fn := entryFunc(unit)
	ops := allOps(fn)

	var sawDivTrunc bool
	var sawPlainOr bool
	for _, op := range ops {
		if op.Opcode == il.BinaryOp {
			switch op.Operands.BinOp {
			case il.DivTrunc:
				sawDivTrunc = true
			case il.BitOr:
				sawPlainOr = true
			}
		}
	}
	assert.True(t, sawDivTrunc, "(a / b) | 0 should fold to a single DivTrunc")
	assert.False(t, sawPlainOr, "folded form should not also emit a plain BitOr")
}

func TestCompileMethodCallBindsThis(t *testing.T) {
	unit := compileOne(t, `
		let obj = { value: 1, get: function() { return this.value; } };
		obj.get();
	`)
	fn := entryFunc(unit)
	ops := allOps(fn)

	var sawSwapBeforeCall bool
	for i, op := range ops {
		if op.Opcode == il.Call {
			for j := i - 1; j >= 0 && j >= i-3; j-- {
				if ops[j].Opcode == il.Swap {
					sawSwapBeforeCall = true
				}
			}
		}
	}
	assert.True(t, sawSwapBeforeCall, "method call should reorder obj/method via Swap to establish this")
}

func TestCompileUpdateExprOnMemberTargetIsCompileError(t *testing.T) {
	fset := token.NewFileSet()
	prog, err := parser.ParseSource(fset, "test.mv", []byte(`
		let obj = { count: 0 };
		obj.count++;
	`))
	require.NoError(t, err)
	mod, err := scope.ResolveProgram(fset, prog)
	require.NoError(t, err)

	_, err = il.CompileProgram(fset, prog, mod)
	assert.Error(t, err, "increment of a non-identifier target is not supported")
}

func TestCompileStackDepthsAreConsistentAcrossBlock(t *testing.T) {
	unit := compileOne(t, `
		function f(a) {
			if (a) {
				return 1;
			}
			return 2;
		}
	`)
	var fn *il.Function
	for _, f := range unit.Functions {
		if f.Name == "f" {
			fn = f
		}
	}
	require.NotNil(t, fn)
	for _, b := range fn.Blocks {
		depth := b.ExpectedStackDepthAtEntry
		for _, op := range b.Operations {
			assert.Equal(t, depth, op.StackDepthBefore)
			depth = op.StackDepthAfter
		}
	}
}
