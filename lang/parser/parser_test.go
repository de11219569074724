package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/microvium/lang/ast"
	"github.com/mna/microvium/lang/parser"
	"github.com/mna/microvium/lang/token"
)

func parseOne(t *testing.T, src string) *ast.Program {
	t.Helper()
	fset := token.NewFileSet()
	prog, err := parser.ParseSource(fset, "test.mvm", []byte(src))
	require.NoError(t, err)
	require.NotNil(t, prog)
	return prog
}

func TestParseVarDeclarations(t *testing.T) {
	prog := parseOne(t, "var x = 1, y = 2;\nlet z;\nconst w = 3;")
	require.Len(t, prog.Body.Stmts, 3)

	decl, ok := prog.Body.Stmts[0].(*ast.VariableDeclaration)
	require.True(t, ok)
	assert.Equal(t, ast.DeclVar, decl.Kind)
	assert.Len(t, decl.Names, 2)
	assert.Equal(t, "x", decl.Names[0].Lit)
	assert.Equal(t, "y", decl.Names[1].Lit)

	decl2 := prog.Body.Stmts[1].(*ast.VariableDeclaration)
	assert.Equal(t, ast.DeclLet, decl2.Kind)
	assert.Nil(t, decl2.Inits[0])

	decl3 := prog.Body.Stmts[2].(*ast.VariableDeclaration)
	assert.Equal(t, ast.DeclConst, decl3.Kind)
}

func TestParseIfElseChain(t *testing.T) {
	prog := parseOne(t, `
		if (x > 0) {
			y = 1;
		} else if (x < 0) {
			y = -1;
		} else {
			y = 0;
		}
	`)
	require.Len(t, prog.Body.Stmts, 1)
	top, ok := prog.Body.Stmts[0].(*ast.IfStatement)
	require.True(t, ok)

	elseIf, ok := top.Alt.(*ast.IfStatement)
	require.True(t, ok)

	final, ok := elseIf.Alt.(*ast.Block)
	require.True(t, ok)
	assert.Len(t, final.Stmts, 1)
}

func TestParseForLoopAndBreak(t *testing.T) {
	prog := parseOne(t, `
		for (var i = 0; i < 10; i = i + 1) {
			if (i === 5) {
				break;
			}
		}
	`)
	stmt := prog.Body.Stmts[0].(*ast.ForStatement)
	require.NotNil(t, stmt.Init)
	require.NotNil(t, stmt.Cond)
	require.NotNil(t, stmt.Post)
	assert.Len(t, stmt.Body.Stmts, 1)
}

func TestParseDoWhile(t *testing.T) {
	prog := parseOne(t, "do { x = x + 1; } while (x < 10);")
	stmt, ok := prog.Body.Stmts[0].(*ast.DoWhileStatement)
	require.True(t, ok)
	assert.NotNil(t, stmt.Cond)
}

func TestParseSwitchWithDefault(t *testing.T) {
	prog := parseOne(t, `
		switch (x) {
		case 1:
			y = 1;
			break;
		case 2:
			y = 2;
			break;
		default:
			y = 0;
		}
	`)
	stmt := prog.Body.Stmts[0].(*ast.SwitchStatement)
	require.Len(t, stmt.Cases, 3)
	assert.Nil(t, stmt.Cases[2].Test)
}

func TestParseFunctionDeclarationAndClosure(t *testing.T) {
	prog := parseOne(t, `
		function makeCounter() {
			var count = 0;
			return function() {
				count = count + 1;
				return count;
			};
		}
	`)
	fn, ok := prog.Body.Stmts[0].(*ast.FunctionDeclaration)
	require.True(t, ok)
	assert.Equal(t, "makeCounter", fn.Name.Lit)

	ret, ok := fn.Body.Stmts[1].(*ast.ReturnStatement)
	require.True(t, ok)
	_, ok = ret.X.(*ast.FuncExpr)
	assert.True(t, ok)
}

func TestParseArrowFunctions(t *testing.T) {
	prog := parseOne(t, `
		var add = (a, b) => a + b;
		var square = x => x * x;
		var greet = () => { return 1; };
	`)
	require.Len(t, prog.Body.Stmts, 3)

	add := prog.Body.Stmts[0].(*ast.VariableDeclaration).Inits[0].(*ast.ArrowFuncExpr)
	assert.Len(t, add.Sig.Params, 2)
	assert.NotNil(t, add.BodyExpr)
	assert.Nil(t, add.Body)

	square := prog.Body.Stmts[1].(*ast.VariableDeclaration).Inits[0].(*ast.ArrowFuncExpr)
	assert.Len(t, square.Sig.Params, 1)

	greet := prog.Body.Stmts[2].(*ast.VariableDeclaration).Inits[0].(*ast.ArrowFuncExpr)
	assert.NotNil(t, greet.Body)
	assert.Nil(t, greet.BodyExpr)
}

func TestParseObjectAndArrayLiterals(t *testing.T) {
	prog := parseOne(t, `var o = { a: 1, b: 2, [c]: 3 };`)
	decl := prog.Body.Stmts[0].(*ast.VariableDeclaration)
	obj := decl.Inits[0].(*ast.ObjectExpr)
	require.Len(t, obj.Items, 3)
	assert.True(t, obj.Items[2].Computed)

	prog2 := parseOne(t, `var a = [1, 2, 3];`)
	arr := prog2.Body.Stmts[0].(*ast.VariableDeclaration).Inits[0].(*ast.ArrayLikeExpr)
	assert.Len(t, arr.Items, 3)
}

func TestParseTemplateLiteral(t *testing.T) {
	prog := parseOne(t, "var s = `hello ${name} and ${1 + 2}`;")
	decl := prog.Body.Stmts[0].(*ast.VariableDeclaration)
	tmpl := decl.Inits[0].(*ast.TemplateLiteral)
	require.Len(t, tmpl.Exprs, 2)
	require.Len(t, tmpl.Quasis, 3)
	_, ok := tmpl.Exprs[0].(*ast.IdentExpr)
	assert.True(t, ok)
	_, ok = tmpl.Exprs[1].(*ast.BinaryExpr)
	assert.True(t, ok)
}

func TestParseMemberAndCallChains(t *testing.T) {
	prog := parseOne(t, "obj.method(a, b).prop[0]();")
	stmt := prog.Body.Stmts[0].(*ast.ExpressionStatement)
	call, ok := stmt.X.(*ast.CallExpr)
	require.True(t, ok)
	_, ok = call.Fn.(*ast.MemberExpr)
	assert.True(t, ok)
}

func TestParseImportExport(t *testing.T) {
	prog := parseOne(t, `
		import { add, mul as multiply } from 'math';
		export function run() {
			return add(1, 2);
		}
		export { run };
	`)
	require.Len(t, prog.Body.Stmts, 3)

	imp := prog.Body.Stmts[0].(*ast.ImportDeclaration)
	require.Len(t, imp.Names, 2)
	assert.Equal(t, "add", imp.Imported[0])
	assert.Equal(t, "mul", imp.Imported[1])
	assert.Equal(t, "multiply", imp.Names[1].Lit)
	assert.Equal(t, "math", imp.Specifier)

	exp := prog.Body.Stmts[1].(*ast.ExportDeclaration)
	_, ok := exp.Decl.(*ast.FunctionDeclaration)
	assert.True(t, ok)

	reexp := prog.Body.Stmts[2].(*ast.ExportDeclaration)
	require.Len(t, reexp.Names, 1)
	assert.Equal(t, "run", reexp.Names[0].Lit)
}

func TestParseAutomaticSemicolonInsertion(t *testing.T) {
	prog := parseOne(t, "var x = 1\nvar y = 2\nreturn x\n")
	require.Len(t, prog.Body.Stmts, 3)
}

func TestParseErrorsAccumulate(t *testing.T) {
	fset := token.NewFileSet()
	_, err := parser.ParseSource(fset, "bad.mvm", []byte("var = ;"))
	require.Error(t, err)
}
