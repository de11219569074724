// Compiler lowering follows spec §4.2's table directly; grounded on the
// teacher's lang/compiler (pcomp/fcomp "stmts"/"expr" dispatch shape) and
// generalized to emit into the structural Unit/Function/Block model of
// il.go instead of a linear bytecode stream.
package il

import (
	"fmt"
	gotoken "go/token"
	"strconv"

	"github.com/mna/microvium/internal/scope"
	"github.com/mna/microvium/lang/ast"
	"github.com/mna/microvium/lang/scanner"
	"github.com/mna/microvium/lang/token"
)

// entryFunctionName is the module body's distinguished function name (spec
// §4.2 "Entry function").
const entryFunctionName = "#entry"

// CompileProgram lowers prog (already pass-1/pass-2 resolved into mod) to
// an IL Unit. prog and mod must come from the same internal/scope.
// ResolveProgram call; behavior is undefined otherwise.
func CompileProgram(fset *token.FileSet, prog *ast.Program, mod *scope.Scope) (*Unit, error) {
	file := fset.File(prog.Name)
	c := &compiler{file: file}

	unit := NewUnit(file.Name())
	for _, imp := range mod.ImportDeclarations {
		slot, ok := imp.Slot.(scope.ModuleImportExportSlot)
		if !ok {
			continue
		}
		namespaceName := slot.NamespaceSlot.(scope.GlobalSlot).Name
		if !unitHasImport(unit, namespaceName) {
			unit.ModuleImports = append(unit.ModuleImports, ModuleImport{
				NamespaceGlobal: namespaceName,
				Specifier:       imp.ImportSpecifier,
			})
		}
	}
	for _, b := range append(append([]*scope.Binding(nil), mod.VarDeclarations...), mod.LexicalDeclarations...) {
		if g, ok := b.Slot.(scope.GlobalSlot); ok {
			unit.ModuleVariables = append(unit.ModuleVariables, g.Name)
		}
	}

	entry := unit.newFunction(entryFunctionName)
	unit.EntryFunctionID = entry.ID
	c.compileFunction(unit, entry, mod, prog.Body.Stmts)

	c.errors.Sort()
	if err := c.errors.Err(); err != nil {
		return unit, err
	}
	unit.FreeVariables = c.freeVariables
	return unit, nil
}

func unitHasImport(u *Unit, namespaceGlobal string) bool {
	for _, m := range u.ModuleImports {
		if m.NamespaceGlobal == namespaceGlobal {
			return true
		}
	}
	return false
}

type compiler struct {
	file         *token.File
	errors       scanner.ErrorList
	freeVariables []string
	seenFree     map[string]bool
}

func (c *compiler) errorf(pos token.Pos, format string, args ...interface{}) {
	p := c.file.Position(pos)
	c.errors.Add(gotoken.Position{Filename: p.Filename, Line: p.Line, Column: p.Col}, fmt.Sprintf(format, args...))
}

// compileFunction lowers one function-like body (the module's #entry, or a
// FunctionDeclaration/FuncExpr/ArrowFuncExpr) into fn, using s's already
// pass-2-assigned Slots and Prologue.
func (c *compiler) compileFunction(unit *Unit, fn *Function, s *scope.Scope, stmts []ast.Stmt) {
	fn.ParamCount = len(s.ParameterBindings)
	fn.ClosureSlots = s.ClosureSlots
	fn.LocalSlots = s.LocalSlots

	cur := newCursor(unit, fn)
	c.emitParameterPrologue(cur, s)
	c.compileBlockBody(unit, cur, s, stmts)
	if cur.reachable {
		cur.emit(Literal, Operands{Const: Value{Kind: ValUndefined}})
		cur.emit(Return, Operands{})
	}
	fn.MaxStackDepth = computeMaxStackDepth(fn)
}

// emitParameterPrologue materializes s's OpInitThis/OpInitParameter entries
// (spec §4.1 pass 2): a binding that pass 2 gave a LocalSlot or ClosureSlot
// — because it is reassigned or captured by a nested function — cannot read
// its incoming value directly off the argument array the way an
// ArgumentSlot binding does, so its slot must be seeded once, at function
// entry, by copying the matching ArgumentSlot value into it.
func (c *compiler) emitParameterPrologue(cur *cursor, s *scope.Scope) {
	if s.ThisBinding != nil {
		c.emitSeedFromArg(cur, s.ThisBinding, 0)
	}
	for i, p := range s.ParameterBindings {
		c.emitSeedFromArg(cur, p, i+1)
	}
}

func (c *compiler) emitSeedFromArg(cur *cursor, b *scope.Binding, argIndex int) {
	switch b.Slot.(type) {
	case scope.LocalSlot, scope.ClosureSlot:
		cur.at(b.Decl)
		cur.emit(LoadArg, Operands{Index: argIndex})
		c.emitInitStore(cur, b, b.Decl)
		cur.emit(Pop, Operands{})
	}
}

func computeMaxStackDepth(fn *Function) int {
	max := 0
	for _, b := range fn.Blocks {
		for _, op := range b.Operations {
			if op.StackDepthBefore > max {
				max = op.StackDepthBefore
			}
			if op.StackDepthAfter > max {
				max = op.StackDepthAfter
			}
		}
	}
	return max
}

// compileBlockBody materializes this scope's Prologue-ordered function
// declarations (spec §4.2 "Function declarations are skipped at top level
// ... materialized as globals by the scope model") before lowering stmts in
// textual order; *ast.FunctionDeclaration statements are then no-ops.
func (c *compiler) compileBlockBody(unit *Unit, cur *cursor, s *scope.Scope, stmts []ast.Stmt) {
	if s != nil && len(s.NestedFunctionDeclarations) > 0 {
		decls := collectFunctionDeclarations(stmts)
		declByBinding := make(map[*scope.Binding]*ast.FunctionDeclaration, len(decls))
		for _, d := range decls {
			if b, ok := d.Name.Binding.(*scope.Binding); ok {
				declByBinding[b] = d
			}
		}
		for _, b := range s.NestedFunctionDeclarations {
			if d, ok := declByBinding[b]; ok {
				c.materializeFunctionDecl(unit, cur, b, d)
			}
		}
	}
	for _, stmt := range stmts {
		c.compileStmt(unit, cur, stmt)
	}
}

func collectFunctionDeclarations(stmts []ast.Stmt) []*ast.FunctionDeclaration {
	var out []*ast.FunctionDeclaration
	for _, stmt := range stmts {
		if e, ok := stmt.(*ast.ExportDeclaration); ok && e.Decl != nil {
			stmt = e.Decl
		}
		if d, ok := stmt.(*ast.FunctionDeclaration); ok {
			out = append(out, d)
		}
	}
	return out
}

// materializeFunctionDecl compiles decl's nested function body as a new IL
// Function, then stores the resulting function value into b's accessor
// (spec §4.2 "Function expression / arrow").
func (c *compiler) materializeFunctionDecl(unit *Unit, cur *cursor, b *scope.Binding, decl *ast.FunctionDeclaration) {
	fnScope, _ := decl.Scope.(*scope.Scope)
	fnID := c.compileNestedFunction(unit, fnScope, decl.Body.Stmts, decl.Name.Lit)

	cur.at(decl.Start)
	cur.emit(Literal, Operands{Const: Value{Kind: ValFunction, FunctionID: fnID}})
	if fnScope != nil && (fnScope.FunctionIsClosure || fnScope.CapturesOuterScope) {
		cur.comment("bind enclosing scope")
		cur.emit(ClosureNew, Operands{})
	}
	c.emitInitStore(cur, b, decl.Start)
}

func (c *compiler) compileNestedFunction(unit *Unit, fnScope *scope.Scope, stmts []ast.Stmt, name string) FunctionID {
	fn := unit.newFunction(name)
	c.compileFunction(unit, fn, fnScope, stmts)
	return fn.ID
}

func (c *compiler) compileStmt(unit *Unit, cur *cursor, stmt ast.Stmt) {
	switch n := stmt.(type) {
	case *ast.VariableDeclaration:
		for i, name := range n.Names {
			init := n.Inits[i]
			b, _ := name.Binding.(*scope.Binding)
			if init == nil {
				continue
			}
			cur.at(name.Start)
			c.compileExpr(unit, cur, init)
			if b != nil {
				c.emitInitStore(cur, b, name.Start)
			}
			cur.emit(Pop, Operands{})
		}

	case *ast.ExpressionStatement:
		c.compileExpr(unit, cur, n.X)
		cur.emit(Pop, Operands{})

	case *ast.IfStatement:
		c.compileIf(unit, cur, n)

	case *ast.WhileStatement:
		c.compileWhile(unit, cur, n)

	case *ast.DoWhileStatement:
		c.compileDoWhile(unit, cur, n)

	case *ast.ForStatement:
		c.compileFor(unit, cur, n)

	case *ast.BreakStatement:
		target, ok := cur.currentBreakTarget()
		if !ok {
			c.errorf(n.Start, "break outside of a loop or switch")
			return
		}
		cur.at(n.Start)
		cur.jump(target)

	case *ast.ReturnStatement:
		cur.at(n.Start)
		if n.X != nil {
			c.compileExpr(unit, cur, n.X)
		} else {
			cur.emit(Literal, Operands{Const: Value{Kind: ValUndefined}})
		}
		cur.emit(Return, Operands{})

	case *ast.SwitchStatement:
		c.compileSwitch(unit, cur, n)

	case *ast.FunctionDeclaration:
		// materialized by compileBlockBody's prologue pass; no-op here.

	case *ast.ImportDeclaration:
		// no runtime effect beyond the bindings scope/slots.go already
		// assigned; the namespace object itself is populated by the host VM.

	case *ast.ExportDeclaration:
		// `export { names }` has no runtime effect; an exported declaration
		// runs like the same declaration without `export`.
		if n.Decl != nil {
			c.compileStmt(unit, cur, n.Decl)
		}

	case *ast.Block:
		blockScope, _ := n.Scope.(*scope.Scope)
		c.compileBlockBody(unit, cur, blockScope, n.Stmts)

	default:
		c.errorf(0, "unsupported statement %T", stmt)
	}
}

func (c *compiler) compileIf(unit *Unit, cur *cursor, n *ast.IfStatement) {
	cur.at(n.Start)
	c.compileExpr(unit, cur, n.Cond)

	consBlock := cur.predeclareBlock()
	joinBlock := cur.predeclareBlock()
	var altBlock BlockID
	hasAlt := n.Alt != nil
	if hasAlt {
		altBlock = cur.predeclareBlock()
		cur.branch(consBlock, altBlock)
	} else {
		cur.branch(consBlock, joinBlock)
	}

	cur.startBlock(consBlock)
	c.compileStmt(unit, cur, n.Cons)
	cur.jump(joinBlock)

	if hasAlt {
		cur.startBlock(altBlock)
		c.compileStmt(unit, cur, n.Alt)
		cur.jump(joinBlock)
	}

	cur.startBlock(joinBlock)
}

func (c *compiler) compileWhile(unit *Unit, cur *cursor, n *ast.WhileStatement) {
	testBlock := cur.predeclareBlock()
	bodyBlock := cur.predeclareBlock()
	exitBlock := cur.predeclareBlock()

	cur.jump(testBlock)

	cur.startBlock(testBlock)
	cur.at(n.Start)
	c.compileExpr(unit, cur, n.Cond)
	cur.branch(bodyBlock, exitBlock)

	cur.startBlock(bodyBlock)
	cur.pushBreakTarget(exitBlock)
	c.compileStmt(unit, cur, n.Body)
	cur.popBreakTarget()
	cur.jump(testBlock)

	cur.startBlock(exitBlock)
}

func (c *compiler) compileDoWhile(unit *Unit, cur *cursor, n *ast.DoWhileStatement) {
	bodyBlock := cur.predeclareBlock()
	testBlock := cur.predeclareBlock()
	exitBlock := cur.predeclareBlock()

	cur.jump(bodyBlock)

	cur.startBlock(bodyBlock)
	cur.pushBreakTarget(exitBlock)
	c.compileStmt(unit, cur, n.Body)
	cur.popBreakTarget()
	cur.jump(testBlock)

	cur.startBlock(testBlock)
	c.compileExpr(unit, cur, n.Cond)
	cur.branch(bodyBlock, exitBlock)

	cur.startBlock(exitBlock)
}

func (c *compiler) compileFor(unit *Unit, cur *cursor, n *ast.ForStatement) {
	if n.Init != nil {
		c.compileStmt(unit, cur, n.Init)
	}

	testBlock := cur.predeclareBlock()
	bodyBlock := cur.predeclareBlock()
	postBlock := cur.predeclareBlock()
	exitBlock := cur.predeclareBlock()

	cur.jump(testBlock)

	cur.startBlock(testBlock)
	if n.Cond != nil {
		cur.at(n.Start)
		c.compileExpr(unit, cur, n.Cond)
		cur.branch(bodyBlock, exitBlock)
	} else {
		cur.jump(bodyBlock)
	}

	cur.startBlock(bodyBlock)
	cur.pushBreakTarget(exitBlock)
	c.compileStmt(unit, cur, n.Body)
	cur.popBreakTarget()
	cur.jump(postBlock)

	cur.startBlock(postBlock)
	if n.Post != nil {
		c.compileExpr(unit, cur, n.Post)
		cur.emit(Pop, Operands{})
	}
	cur.jump(testBlock)

	cur.startBlock(exitBlock)
}

// compileSwitch lowers a switch to a chain of Dup+BinOp(===)+Branch test
// blocks, falling through consequent bodies via explicit Jump to the next
// case and all paths eventually reaching a join block that Pops the
// discriminant (spec §4.2 "switch").
func (c *compiler) compileSwitch(unit *Unit, cur *cursor, n *ast.SwitchStatement) {
	cur.at(n.Start)
	c.compileExpr(unit, cur, n.Disc)

	if caseScope, ok := n.Scope.(*scope.Scope); ok && len(caseScope.NestedFunctionDeclarations) > 0 {
		var allDecls []*ast.FunctionDeclaration
		for _, sc := range n.Cases {
			allDecls = append(allDecls, collectFunctionDeclarations(sc.Body)...)
		}
		declByBinding := make(map[*scope.Binding]*ast.FunctionDeclaration, len(allDecls))
		for _, d := range allDecls {
			if b, ok := d.Name.Binding.(*scope.Binding); ok {
				declByBinding[b] = d
			}
		}
		for _, b := range caseScope.NestedFunctionDeclarations {
			if d, ok := declByBinding[b]; ok {
				c.materializeFunctionDecl(unit, cur, b, d)
			}
		}
	}

	joinBlock := cur.predeclareBlock()
	cur.pushBreakTarget(joinBlock)

	var defaultCase *ast.SwitchCase
	var tests []*ast.SwitchCase
	for _, sc := range n.Cases {
		if sc.Test == nil {
			defaultCase = sc
		} else {
			tests = append(tests, sc)
		}
	}

	testBlocks := make([]BlockID, len(tests))
	bodyBlocks := make([]BlockID, len(n.Cases))
	for i := range tests {
		testBlocks[i] = cur.predeclareBlock()
	}
	for i := range n.Cases {
		bodyBlocks[i] = cur.predeclareBlock()
	}
	defaultBody := joinBlock
	bodyByCase := make(map[*ast.SwitchCase]BlockID, len(n.Cases))
	for i, sc := range n.Cases {
		bodyByCase[sc] = bodyBlocks[i]
		if sc == defaultCase {
			defaultBody = bodyBlocks[i]
		}
	}

	firstTarget := defaultBody
	if len(testBlocks) > 0 {
		firstTarget = testBlocks[0]
	}
	cur.jump(firstTarget)

	for i, sc := range tests {
		cur.startBlock(testBlocks[i])
		cur.emit(Dup, Operands{})
		c.compileExpr(unit, cur, sc.Test)
		cur.emit(BinaryOp, Operands{BinOp: StrictEq})
		next := defaultBody
		if i+1 < len(testBlocks) {
			next = testBlocks[i+1]
		}
		cur.branch(bodyByCase[sc], next)
	}

	for i, sc := range n.Cases {
		cur.startBlock(bodyBlocks[i])
		for _, s := range sc.Body {
			c.compileStmt(unit, cur, s)
		}
		next := joinBlock
		if i+1 < len(n.Cases) {
			next = bodyBlocks[i+1]
		}
		cur.jump(next)
	}

	cur.popBreakTarget()
	cur.startBlock(joinBlock)
	cur.emit(Pop, Operands{}) // discard discriminant
}

// compileExpr lowers e as a stack producer: exactly one value remains on
// the stack when it returns (spec §4.2 "Expressions").
func (c *compiler) compileExpr(unit *Unit, cur *cursor, e ast.Expr) {
	switch n := ast.Unwrap(e).(type) {
	case *ast.LiteralExpr:
		cur.at(litPos(e))
		cur.emit(Literal, Operands{Const: literalValue(n)})

	case *ast.IdentExpr:
		cur.at(n.Start)
		c.emitLoad(cur, n)

	case *ast.ThisExpr:
		cur.at(n.Start)
		b, _ := n.Binding.(*scope.Binding)
		c.emitLoadBinding(cur, b, n.Start)

	case *ast.TemplateLiteral:
		c.compileTemplateLiteral(unit, cur, n)

	case *ast.ArrayLikeExpr:
		c.compileArrayLiteral(unit, cur, n)

	case *ast.ObjectExpr:
		c.compileObjectLiteral(unit, cur, n)

	case *ast.BinaryExpr:
		c.compileBinaryExpr(unit, cur, n)

	case *ast.LogicalExpr:
		c.compileLogicalExpr(unit, cur, n)

	case *ast.UnaryExpr:
		c.compileUnaryExpr(unit, cur, n)

	case *ast.UpdateExpr:
		c.compileUpdateExpr(unit, cur, n)

	case *ast.AssignExpr:
		c.compileAssignExpr(unit, cur, n)

	case *ast.CallExpr:
		c.compileCallExpr(unit, cur, n)

	case *ast.MemberExpr:
		c.compileMemberExpr(unit, cur, n)

	case *ast.ConditionalExpr:
		c.compileConditionalExpr(unit, cur, n)

	case *ast.FuncExpr:
		fnScope, _ := n.Scope.(*scope.Scope)
		fnID := c.compileNestedFunction(unit, fnScope, n.Body.Stmts, "")
		cur.at(n.Start)
		cur.emit(Literal, Operands{Const: Value{Kind: ValFunction, FunctionID: fnID}})
		if fnScope != nil && (fnScope.FunctionIsClosure || fnScope.CapturesOuterScope) {
			cur.emit(ClosureNew, Operands{})
		}

	case *ast.ArrowFuncExpr:
		fnScope, _ := n.Scope.(*scope.Scope)
		var stmts []ast.Stmt
		if n.Body != nil {
			stmts = n.Body.Stmts
		} else {
			stmts = []ast.Stmt{&ast.ReturnStatement{Start: n.Start, X: n.BodyExpr}}
		}
		fnID := c.compileNestedFunction(unit, fnScope, stmts, "")
		cur.at(n.Start)
		cur.emit(Literal, Operands{Const: Value{Kind: ValFunction, FunctionID: fnID}})
		if fnScope != nil && (fnScope.FunctionIsClosure || fnScope.CapturesOuterScope) {
			cur.emit(ClosureNew, Operands{})
		}

	default:
		c.errorf(0, "unsupported expression %T", e)
	}
}

func litPos(e ast.Expr) token.Pos {
	start, _ := e.Span()
	return start
}

func literalValue(n *ast.LiteralExpr) Value {
	switch n.Kind {
	case token.NUMBER:
		f, _ := strconv.ParseFloat(n.Lit, 64)
		return Value{Kind: ValNumber, Number: f}
	case token.STRING:
		s, _ := strconv.Unquote(n.Lit)
		return Value{Kind: ValString, Str: s}
	case token.TRUE:
		return Value{Kind: ValBoolTrue}
	case token.FALSE:
		return Value{Kind: ValBoolFalse}
	case token.NULL:
		return Value{Kind: ValNull}
	default:
		return Value{Kind: ValUndefined}
	}
}

// emitLoad compiles a *ast.IdentExpr reference via its resolved accessor
// (spec §4.2 "Variable accessors").
func (c *compiler) emitLoad(cur *cursor, id *ast.IdentExpr) {
	b, ok := id.Binding.(*scope.Binding)
	if !ok || b == nil || b.Slot == nil {
		// Unresolved free variable (host global) — treated as a named global.
		c.recordFreeVariable(id.Lit)
		cur.emit(LoadGlobal, Operands{Name: id.Lit})
		return
	}
	c.emitLoadBinding(cur, b, id.Start)
}

func (c *compiler) emitLoadBinding(cur *cursor, b *scope.Binding, pos token.Pos) {
	if b == nil {
		cur.emit(Literal, Operands{Const: Value{Kind: ValUndefined}})
		return
	}
	switch slot := b.Slot.(type) {
	case scope.LocalSlot:
		cur.emit(LoadVar, Operands{Index: slot.Index})
	case scope.ArgumentSlot:
		cur.emit(LoadArg, Operands{Index: slot.ArgIndex})
	case scope.ClosureSlot:
		cur.emit(LoadScoped, Operands{Index: slot.Index})
	case scope.GlobalSlot:
		cur.emit(LoadGlobal, Operands{Name: slot.Name})
	case scope.ModuleImportExportSlot:
		namespace := slot.NamespaceSlot.(scope.GlobalSlot)
		cur.emit(LoadGlobal, Operands{Name: namespace.Name})
		cur.emit(Literal, Operands{Const: Value{Kind: ValString, Str: slot.PropertyName}})
		cur.emit(ObjectGet, Operands{})
	default:
		c.errorf(pos, "internal: binding %s has no slot", b.Name)
	}
}

// emitStore compiles a reassignment to b, leaving the written value on the
// stack (spec §4.2: "writes do not pop; the written value remains as
// expression result"). Initialization of a `let`/`const` declaration's own
// initializer goes through emitInitStore instead, since that first write is
// not the "store to a const" spec forbids.
func (c *compiler) emitStore(cur *cursor, b *scope.Binding, pos token.Pos) {
	if b == nil {
		return
	}
	if b.Kind == scope.KindConst {
		c.errorf(pos, "cannot assign to const %s", b.Name)
		return
	}
	c.emitInitStore(cur, b, pos)
}

func (c *compiler) emitInitStore(cur *cursor, b *scope.Binding, pos token.Pos) {
	if b == nil {
		return
	}
	switch slot := b.Slot.(type) {
	case scope.LocalSlot:
		cur.emit(StoreVar, Operands{Index: slot.Index})
	case scope.ArgumentSlot:
		c.errorf(pos, "cannot assign to argument %s", b.Name)
	case scope.ClosureSlot:
		cur.emit(StoreScoped, Operands{Index: slot.Index})
	case scope.GlobalSlot:
		cur.emit(StoreGlobal, Operands{Name: slot.Name})
	case scope.ModuleImportExportSlot:
		// value is already on top of stack; ObjectSet wants obj, key, value
		// order, so weave namespace+property in underneath it with Swap
		// (spec §4.2's ModuleImportExportSlot accessor, generalized to the
		// store direction).
		namespace := slot.NamespaceSlot.(scope.GlobalSlot)
		cur.emit(LoadGlobal, Operands{Name: namespace.Name})
		cur.emit(Swap, Operands{})
		cur.emit(Literal, Operands{Const: Value{Kind: ValString, Str: slot.PropertyName}})
		cur.emit(Swap, Operands{})
		cur.emit(ObjectSet, Operands{})
	default:
		c.errorf(pos, "internal: binding %s has no slot", b.Name)
	}
}

func (c *compiler) recordFreeVariable(name string) {
	if c.seenFree == nil {
		c.seenFree = make(map[string]bool)
	}
	if !c.seenFree[name] {
		c.seenFree[name] = true
		c.freeVariables = append(c.freeVariables, name)
	}
}

func (c *compiler) compileTemplateLiteral(unit *Unit, cur *cursor, n *ast.TemplateLiteral) {
	cur.at(n.Start)
	cur.emit(Literal, Operands{Const: Value{Kind: ValString, Str: n.Quasis[0]}})
	for i, e := range n.Exprs {
		c.compileExpr(unit, cur, e)
		cur.emit(BinaryOp, Operands{BinOp: Add})
		cur.emit(Literal, Operands{Const: Value{Kind: ValString, Str: n.Quasis[i+1]}})
		cur.emit(BinaryOp, Operands{BinOp: Add})
	}
}

func (c *compiler) compileArrayLiteral(unit *Unit, cur *cursor, n *ast.ArrayLikeExpr) {
	cur.at(n.Start)
	cur.emit(ArrayNew, Operands{})
	for i, item := range n.Items {
		cur.emit(Dup, Operands{})
		cur.emit(Literal, Operands{Const: Value{Kind: ValNumber, Number: float64(i)}})
		c.compileExpr(unit, cur, item)
		cur.emit(ObjectSet, Operands{})
		cur.emit(Pop, Operands{})
	}
}

func (c *compiler) compileObjectLiteral(unit *Unit, cur *cursor, n *ast.ObjectExpr) {
	cur.at(n.Start)
	cur.emit(ObjectNew, Operands{})
	for _, item := range n.Items {
		cur.emit(Dup, Operands{})
		if item.Computed {
			c.compileExpr(unit, cur, item.Key)
		} else {
			cur.emit(Literal, Operands{Const: objectKeyValue(item.Key)})
		}
		c.compileExpr(unit, cur, item.Value)
		cur.emit(ObjectSet, Operands{})
		cur.emit(Pop, Operands{})
	}
}

func objectKeyValue(key ast.Expr) Value {
	switch k := ast.Unwrap(key).(type) {
	case *ast.IdentExpr:
		return Value{Kind: ValString, Str: k.Lit}
	case *ast.LiteralExpr:
		return literalValue(k)
	default:
		return Value{Kind: ValUndefined}
	}
}

// compileBinaryExpr lowers a.op.b, folding the `x / y | 0` integer-
// truncation idiom per spec §4.2 (`-literal` is folded by
// compileUnaryExpr). The reserved operators ==, != and instanceof are
// reported as compile errors.
func (c *compiler) compileBinaryExpr(unit *Unit, cur *cursor, n *ast.BinaryExpr) {
	switch n.Op {
	case token.EQ2, token.NEQ2, token.INSTANCEOF:
		c.errorf(n.OpPos, "operator %s is not supported", n.Op)
		cur.emit(Literal, Operands{Const: Value{Kind: ValUndefined}})
		return
	}
	if folded, ok := foldDivTrunc(n); ok {
		cur.at(n.OpPos)
		c.compileExpr(unit, cur, folded.left)
		c.compileExpr(unit, cur, folded.right)
		cur.emit(BinaryOp, Operands{BinOp: DivTrunc})
		return
	}
	c.compileExpr(unit, cur, n.Left)
	c.compileExpr(unit, cur, n.Right)
	cur.at(n.OpPos)
	cur.emit(BinaryOp, Operands{BinOp: binOpFor(n.Op)})
}

type divTruncOperands struct{ left, right ast.Expr }

// foldDivTrunc recognizes `(a / b) | 0` and returns its operands folded
// into a single DivTrunc lowering (spec §4.2 "Integer-truncation idiom").
func foldDivTrunc(n *ast.BinaryExpr) (divTruncOperands, bool) {
	if n.Op != token.PIPE {
		return divTruncOperands{}, false
	}
	rhsLit, ok := ast.Unwrap(n.Right).(*ast.LiteralExpr)
	if !ok || rhsLit.Kind != token.NUMBER || rhsLit.Lit != "0" {
		return divTruncOperands{}, false
	}
	div, ok := ast.Unwrap(n.Left).(*ast.BinaryExpr)
	if !ok || div.Op != token.SLASH {
		return divTruncOperands{}, false
	}
	return divTruncOperands{left: div.Left, right: div.Right}, true
}

func binOpFor(t token.Token) BinOp {
	switch t {
	case token.PLUS:
		return Add
	case token.MINUS:
		return Sub
	case token.STAR:
		return Mul
	case token.SLASH:
		return Div
	case token.PERCENT:
		return Mod
	case token.AMP:
		return BitAnd
	case token.PIPE:
		return BitOr
	case token.CARET:
		return BitXor
	case token.LTLT:
		return Shl
	case token.GTGT:
		return Shr
	case token.LT:
		return Lt
	case token.LE:
		return Le
	case token.GT:
		return Gt
	case token.GE:
		return Ge
	case token.EQ3:
		return StrictEq
	case token.NEQ3:
		return StrictNeq
	default:
		return StrictEq
	}
}

// compileLogicalExpr lowers `a && b` / `a || b`: left; Dup; Branch to
// short-circuit or to the RHS block; on the RHS path Pop and evaluate
// right (spec §4.2). `??` is reported as a compile error.
func (c *compiler) compileLogicalExpr(unit *Unit, cur *cursor, n *ast.LogicalExpr) {
	if n.Op == token.QUESTION2 {
		c.errorf(n.OpPos, "operator %s is not supported", n.Op)
		cur.emit(Literal, Operands{Const: Value{Kind: ValUndefined}})
		return
	}
	c.compileExpr(unit, cur, n.Left)
	cur.at(n.OpPos)
	cur.emit(Dup, Operands{})

	rhsBlock := cur.predeclareBlock()
	joinBlock := cur.predeclareBlock()

	switch n.Op {
	case token.AND2:
		cur.branch(rhsBlock, joinBlock)
	case token.OR2:
		cur.branch(joinBlock, rhsBlock)
	default:
		cur.branch(rhsBlock, joinBlock)
	}

	cur.startBlock(rhsBlock)
	cur.emit(Pop, Operands{})
	c.compileExpr(unit, cur, n.Right)
	cur.jump(joinBlock)

	cur.startBlock(joinBlock)
}

func (c *compiler) compileUnaryExpr(unit *Unit, cur *cursor, n *ast.UnaryExpr) {
	if n.Op == token.MINUS {
		if lit, ok := ast.Unwrap(n.X).(*ast.LiteralExpr); ok && lit.Kind == token.NUMBER {
			f, _ := strconv.ParseFloat(lit.Lit, 64)
			cur.at(n.OpPos)
			cur.emit(Literal, Operands{Const: Value{Kind: ValNumber, Number: -f}})
			return
		}
	}
	c.compileExpr(unit, cur, n.X)
	cur.at(n.OpPos)
	switch n.Op {
	case token.MINUS:
		cur.emit(Literal, Operands{Const: Value{Kind: ValNumber, Number: -1}})
		cur.emit(BinaryOp, Operands{BinOp: Mul})
	case token.BANG:
		cur.emit(Literal, Operands{Const: Value{Kind: ValBoolFalse}})
		cur.emit(BinaryOp, Operands{BinOp: StrictEq})
	case token.TYPEOF, token.VOID, token.DELETE:
		c.errorf(n.OpPos, "operator %s is not supported", n.Op)
	default:
		// unary + and ~ pass through as identity; a full numeric-coercion
		// opcode is outside this lowering table.
	}
}

// compileUpdateExpr lowers `++a`/`a++`/`--a`/`a--` per spec §4.2. Only
// identifier targets are supported; `obj.prop++` is left as a compile
// error (the general case needs a stack-rotation primitive this ISA
// doesn't carry, and no spec scenario exercises it).
func (c *compiler) compileUpdateExpr(unit *Unit, cur *cursor, n *ast.UpdateExpr) {
	id, ok := ast.Unwrap(n.X).(*ast.IdentExpr)
	if !ok {
		c.errorf(n.OpPos, "increment/decrement of a non-identifier target is not supported")
		cur.emit(Literal, Operands{Const: Value{Kind: ValUndefined}})
		return
	}
	b, _ := id.Binding.(*scope.Binding)

	cur.at(n.OpPos)
	c.emitLoad(cur, id)
	if !n.Prefix {
		cur.emit(Dup, Operands{})
	}
	cur.emit(Literal, Operands{Const: Value{Kind: ValNumber, Number: 1}})
	op := Add
	if n.Op == token.DEC {
		op = Sub
	}
	cur.emit(BinaryOp, Operands{BinOp: op})
	c.emitStore(cur, b, n.OpPos)
	if !n.Prefix {
		cur.emit(Pop, Operands{})
	}
}

// compileAssignExpr lowers `a = b` and compound `a op= b` (spec §4.2).
func (c *compiler) compileAssignExpr(unit *Unit, cur *cursor, n *ast.AssignExpr) {
	switch target := ast.Unwrap(n.Left).(type) {
	case *ast.IdentExpr:
		b, _ := target.Binding.(*scope.Binding)
		cur.at(n.OpPos)
		if n.Op == token.ASSIGN {
			c.compileExpr(unit, cur, n.Right)
		} else {
			c.emitLoad(cur, target)
			c.compileExpr(unit, cur, n.Right)
			cur.emit(BinaryOp, Operands{BinOp: compoundBinOp(n.Op)})
		}
		c.emitStore(cur, b, n.OpPos)

	case *ast.MemberExpr:
		c.compileExpr(unit, cur, target.X)
		c.emitMemberKey(unit, cur, target)
		// stack: obj, key
		if n.Op == token.ASSIGN {
			c.compileExpr(unit, cur, n.Right)
		} else {
			cur.emit(Dup2, Operands{}) // obj, key, obj, key
			cur.emit(ObjectGet, Operands{})
			c.compileExpr(unit, cur, n.Right)
			cur.emit(BinaryOp, Operands{BinOp: compoundBinOp(n.Op)})
		}
		cur.emit(ObjectSet, Operands{})

	default:
		c.errorf(n.OpPos, "invalid assignment target")
	}
}

func (c *compiler) emitMemberKey(unit *Unit, cur *cursor, n *ast.MemberExpr) {
	if n.Computed {
		c.compileExpr(unit, cur, n.Prop)
		return
	}
	name := ast.Unwrap(n.Prop).(*ast.IdentExpr)
	cur.emit(Literal, Operands{Const: Value{Kind: ValString, Str: name.Lit}})
}

func compoundBinOp(t token.Token) BinOp {
	switch t {
	case token.PLUS_EQ:
		return Add
	case token.MINUS_EQ:
		return Sub
	case token.STAR_EQ:
		return Mul
	case token.SLASH_EQ:
		return Div
	case token.PERCENT_EQ:
		return Mod
	case token.AMP_EQ:
		return BitAnd
	case token.PIPE_EQ:
		return BitOr
	case token.CARET_EQ:
		return BitXor
	case token.LTLT_EQ:
		return Shl
	case token.GTGT_EQ:
		return Shr
	default:
		return Add
	}
}

// compileCallExpr lowers `f(a...)` and the method-call form `o.m(a...)`,
// duplicating the receiver to provide `this` (spec §4.2 "Call").
func (c *compiler) compileCallExpr(unit *Unit, cur *cursor, n *ast.CallExpr) {
	if m, ok := ast.Unwrap(n.Fn).(*ast.MemberExpr); ok {
		c.compileExpr(unit, cur, m.X)
		cur.emit(Dup, Operands{}) // obj, obj
		c.emitMemberKey(unit, cur, m)
		cur.emit(ObjectGet, Operands{}) // obj, method
		cur.emit(Swap, Operands{})      // method, obj(=this)
		for _, a := range n.Args {
			c.compileExpr(unit, cur, a)
		}
		cur.at(n.Lparen)
		cur.emit(Call, Operands{ArgCount: len(n.Args)})
		return
	}

	c.compileExpr(unit, cur, n.Fn)
	cur.emit(Literal, Operands{Const: Value{Kind: ValUndefined}}) // this
	for _, a := range n.Args {
		c.compileExpr(unit, cur, a)
	}
	cur.at(n.Lparen)
	cur.emit(Call, Operands{ArgCount: len(n.Args)})
}

func (c *compiler) compileMemberExpr(unit *Unit, cur *cursor, n *ast.MemberExpr) {
	c.compileExpr(unit, cur, n.X)
	cur.at(n.End)
	c.emitMemberKey(unit, cur, n)
	cur.emit(ObjectGet, Operands{})
}

// compileConditionalExpr lowers `cond ? cons : alt` (spec §4.2).
func (c *compiler) compileConditionalExpr(unit *Unit, cur *cursor, n *ast.ConditionalExpr) {
	c.compileExpr(unit, cur, n.Cond)

	consBlock := cur.predeclareBlock()
	altBlock := cur.predeclareBlock()
	joinBlock := cur.predeclareBlock()

	cur.branch(consBlock, altBlock)

	cur.startBlock(consBlock)
	c.compileExpr(unit, cur, n.Cons)
	cur.jump(joinBlock)

	cur.startBlock(altBlock)
	c.compileExpr(unit, cur, n.Alt)
	cur.jump(joinBlock)

	cur.startBlock(joinBlock)
}
