package vm_test

import (
	"testing"

	"github.com/mna/microvium/internal/vm"
	"github.com/stretchr/testify/require"
)

// TestEvaluateModuleTrivialExport exercises spec §8 scenario 1: `vmExport(0,
// () => 42);` then calling the exported function returns 42.
func TestEvaluateModuleTrivialExport(t *testing.T) {
	m := vm.Create(nil)
	err := m.EvaluateModule(vm.EvaluateModuleOptions{
		SourceText:    "vmExport(0, () => 42);",
		DebugFilename: "trivial.mv",
	})
	require.NoError(t, err)

	exported, ok := m.ResolveExport(0)
	require.True(t, ok)

	th := vm.NewThread("test")
	result, err := m.Call(th, exported, vm.Undefined{}, nil)
	require.NoError(t, err)
	require.Equal(t, vm.Number(42), result)
}

// TestEvaluateModuleClosureCapture exercises spec §8 scenario 2: a counter
// closure captured over a let-bound local returns 2 then 3 on successive
// calls.
func TestEvaluateModuleClosureCapture(t *testing.T) {
	m := vm.Create(nil)
	err := m.EvaluateModule(vm.EvaluateModuleOptions{
		SourceText:    "function mk(){let x=1; return ()=>++x;} vmExport(0, mk());",
		DebugFilename: "counter.mv",
	})
	require.NoError(t, err)

	exported, ok := m.ResolveExport(0)
	require.True(t, ok)

	th := vm.NewThread("test")
	first, err := m.Call(th, exported, vm.Undefined{}, nil)
	require.NoError(t, err)
	require.Equal(t, vm.Number(2), first)

	second, err := m.Call(th, exported, vm.Undefined{}, nil)
	require.NoError(t, err)
	require.Equal(t, vm.Number(3), second)
}

// TestEvaluateModuleReassignedParameterIsSeeded exercises spec §4.1's
// writable-parameter accessor: a parameter that is reassigned resolves to a
// LocalSlot rather than an ArgumentSlot, so its incoming value must be
// copied in by the function's InitParameter prologue before the body runs.
func TestEvaluateModuleReassignedParameterIsSeeded(t *testing.T) {
	m := vm.Create(nil)
	err := m.EvaluateModule(vm.EvaluateModuleOptions{
		SourceText:    "function inc(a){a=a+1;return a;} vmExport(0, inc);",
		DebugFilename: "reassigned_param.mv",
	})
	require.NoError(t, err)

	exported, ok := m.ResolveExport(0)
	require.True(t, ok)

	th := vm.NewThread("test")
	result, err := m.Call(th, exported, vm.Undefined{}, []vm.Value{vm.Number(41)})
	require.NoError(t, err)
	require.Equal(t, vm.Number(42), result)
}

// TestEvaluateModuleCapturedParameterIsSeeded exercises spec §4.1's
// captured-parameter accessor: a parameter read by a nested arrow resolves
// to a ClosureSlot, so its incoming value must reach the closure vector via
// InitParameter before the arrow can read it.
func TestEvaluateModuleCapturedParameterIsSeeded(t *testing.T) {
	m := vm.Create(nil)
	err := m.EvaluateModule(vm.EvaluateModuleOptions{
		SourceText:    "function mk(n){return ()=>++n;} vmExport(0, mk(5));",
		DebugFilename: "captured_param.mv",
	})
	require.NoError(t, err)

	exported, ok := m.ResolveExport(0)
	require.True(t, ok)

	th := vm.NewThread("test")
	result, err := m.Call(th, exported, vm.Undefined{}, nil)
	require.NoError(t, err)
	require.Equal(t, vm.Number(6), result)
}

// TestEvaluateModuleCapturedThisIsSeeded exercises spec §4.1's InitThis
// accessor: a `this` read by a nested arrow resolves to a ClosureSlot, so
// the call's receiver must reach the closure vector before the arrow runs.
func TestEvaluateModuleCapturedThisIsSeeded(t *testing.T) {
	m := vm.Create(nil)
	err := m.EvaluateModule(vm.EvaluateModuleOptions{
		SourceText:    "let obj = {v: 7, get: function(){return ()=>this.v;}}; vmExport(0, obj.get());",
		DebugFilename: "captured_this.mv",
	})
	require.NoError(t, err)

	exported, ok := m.ResolveExport(0)
	require.True(t, ok)

	th := vm.NewThread("test")
	result, err := m.Call(th, exported, vm.Undefined{}, nil)
	require.NoError(t, err)
	require.Equal(t, vm.Number(7), result)
}

// TestEvaluateModuleUnresolvedImportErrors confirms a module with an import
// declaration fails cleanly when no resolver was configured, rather than
// panicking (spec §7 "Runtime errors are reported... not a raw panic").
func TestEvaluateModuleUnresolvedImportErrors(t *testing.T) {
	m := vm.Create(nil)
	err := m.EvaluateModule(vm.EvaluateModuleOptions{
		SourceText:    "import { thing } from 'somewhere'; vmExport(0, thing);",
		DebugFilename: "import.mv",
	})
	require.Error(t, err)
}

// TestGarbageCollectSweepsUnreachable confirms an allocation that becomes
// unreachable after a GC root changes is dropped from the tracked set.
func TestGarbageCollectSweepsUnreachable(t *testing.T) {
	m := vm.Create(nil)
	err := m.EvaluateModule(vm.EvaluateModuleOptions{
		SourceText:    "let o = {a: 1}; vmExport(0, o); vmExport(0, 2);",
		DebugFilename: "gc.mv",
	})
	require.NoError(t, err)

	th := vm.NewThread("test")
	reclaimed := m.GarbageCollect(th)
	require.GreaterOrEqual(t, reclaimed, 1)
}
