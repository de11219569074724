package scope_test

import (
	"testing"

	"github.com/mna/microvium/internal/scope"
	"github.com/mna/microvium/lang/ast"
	"github.com/mna/microvium/lang/parser"
	"github.com/mna/microvium/lang/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolveOne(t *testing.T, src string) *scope.Scope {
	t.Helper()
	fset := token.NewFileSet()
	prog, err := parser.ParseSource(fset, "test.mv", []byte(src))
	require.NoError(t, err)
	mod, err := scope.ResolveProgram(fset, prog)
	require.NoError(t, err)
	return mod
}

func findIdent(prog ast.Node, name string) *ast.IdentExpr {
	var found *ast.IdentExpr
	var visit ast.VisitorFunc
	visit = func(n ast.Node, dir ast.VisitDirection) ast.Visitor {
		if found != nil || dir == ast.VisitExit {
			return nil
		}
		if id, ok := n.(*ast.IdentExpr); ok && id.Lit == name {
			found = id
			return nil
		}
		return visit
	}
	ast.Walk(visit, prog)
	return found
}

func TestResolveVarHoistedToFunctionScope(t *testing.T) {
	mod := resolveOne(t, `
		function f() {
			if (true) {
				var x = 1;
			}
			return x;
		}
	`)
	require.Len(t, mod.Children, 1)
	fn := mod.Children[0]
	require.Equal(t, scope.FunctionScope, fn.Kind)
	require.Contains(t, fn.Bindings, "x")
	assert.Equal(t, scope.KindVar, fn.Bindings["x"].Kind)
}

func TestResolveLetStaysBlockScoped(t *testing.T) {
	mod := resolveOne(t, `
		function f() {
			if (true) {
				let y = 1;
			}
		}
	`)
	fn := mod.Children[0]
	assert.NotContains(t, fn.Bindings, "y")
	require.Len(t, fn.Children, 1)
	block := fn.Children[0]
	assert.Contains(t, block.Bindings, "y")
}

func TestClosureCaptureGetsClosureSlot(t *testing.T) {
	mod := resolveOne(t, `
		function makeCounter() {
			var count = 0;
			function increment() {
				count = count + 1;
				return count;
			}
			return increment;
		}
	`)
	outer := mod.Children[0]
	countBinding := outer.Bindings["count"]
	require.NotNil(t, countBinding)
	assert.True(t, countBinding.IsAccessedByNestedFunction)
	assert.True(t, countBinding.IsWrittenTo)
	_, isClosure := countBinding.Slot.(scope.ClosureSlot)
	assert.True(t, isClosure, "captured binding should get a ClosureSlot, got %T", countBinding.Slot)
}

func TestUncapturedParamGetsArgumentSlot(t *testing.T) {
	mod := resolveOne(t, `
		function f(a, b) {
			return a + b;
		}
	`)
	fn := mod.Children[0]
	a := fn.Bindings["a"]
	require.NotNil(t, a)
	_, isArg := a.Slot.(scope.ArgumentSlot)
	assert.True(t, isArg)
}

func TestWrittenParamGetsLocalSlot(t *testing.T) {
	mod := resolveOne(t, `
		function f(a) {
			a = a + 1;
			return a;
		}
	`)
	fn := mod.Children[0]
	a := fn.Bindings["a"]
	require.NotNil(t, a)
	_, isLocal := a.Slot.(scope.LocalSlot)
	assert.True(t, isLocal)
}

func TestExportedModuleBindingGetsGlobalSlot(t *testing.T) {
	mod := resolveOne(t, `
		export let total = 0;
	`)
	b := mod.Bindings["total"]
	require.NotNil(t, b)
	assert.True(t, b.IsExported)
	_, isGlobal := b.Slot.(scope.GlobalSlot)
	assert.True(t, isGlobal)
}

func TestCapturedModuleLevelVarGetsGlobalSlotNotClosure(t *testing.T) {
	mod := resolveOne(t, `
		var hidden = 0;
		function touch() {
			hidden = hidden + 1;
		}
	`)
	b := mod.Bindings["hidden"]
	require.NotNil(t, b)
	assert.True(t, b.IsAccessedByNestedFunction)
	assert.False(t, b.IsExported)
	_, isGlobal := b.Slot.(scope.GlobalSlot)
	assert.True(t, isGlobal, "unexported but captured module binding should still get a GlobalSlot, got %T", b.Slot)
}

func TestImportBindingGetsModuleImportExportSlot(t *testing.T) {
	mod := resolveOne(t, `
		import { helper } from 'other';
		helper();
	`)
	b := mod.Bindings["helper"]
	require.NotNil(t, b)
	slot, ok := b.Slot.(scope.ModuleImportExportSlot)
	require.True(t, ok)
	assert.Equal(t, "helper", slot.PropertyName)
}

func TestFunctionDeclarationInitializesBeforeVarDefaults(t *testing.T) {
	mod := resolveOne(t, `
		function f() {
			var x = 1;
			function g() { return 1; }
		}
	`)
	fn := mod.Children[0]
	require.NotEmpty(t, fn.Prologue)
	var sawFunc, sawVar bool
	var funcBeforeVar bool
	for _, op := range fn.Prologue {
		switch op.Kind {
		case scope.OpInitFunctionDeclaration:
			sawFunc = true
			if !sawVar {
				funcBeforeVar = true
			}
		case scope.OpInitVarDeclaration:
			sawVar = true
		}
	}
	require.True(t, sawFunc)
	require.True(t, sawVar)
	assert.True(t, funcBeforeVar, "function declarations must initialize before var defaults")
}

func TestDuplicateLexicalDeclarationIsError(t *testing.T) {
	fset := token.NewFileSet()
	prog, err := parser.ParseSource(fset, "test.mv", []byte(`
		let x = 1;
		let x = 2;
	`))
	require.NoError(t, err)
	_, err = scope.ResolveProgram(fset, prog)
	require.Error(t, err)
}

func TestIdentBindingIsAttachedToAST(t *testing.T) {
	fset := token.NewFileSet()
	prog, err := parser.ParseSource(fset, "test.mv", []byte(`
		let x = 1;
		x = x + 1;
	`))
	require.NoError(t, err)
	_, err = scope.ResolveProgram(fset, prog)
	require.NoError(t, err)

	id := findIdent(prog, "x")
	require.NotNil(t, id)
	_, ok := id.Binding.(*scope.Binding)
	assert.True(t, ok)
}
