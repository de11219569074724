// Much of this resolver's traversal shape — a block-chain of lexical
// scopes, a single declare-then-reference walk, free variables promoted to
// cells on first cross-function capture — is adapted from the teacher
// repo's lang/resolver package, itself adapted from the Starlark resolver.
// The six Scope/Slot variants of spec §3 replace nenuphar's single Scope
// enum (Local/Cell/Free/Predeclared/Universal/Undefined): hoisting,
// modules and import/export namespaces have no equivalent there.
package scope

import (
	"fmt"
	gotoken "go/token"

	"github.com/mna/microvium/lang/ast"
	"github.com/mna/microvium/lang/scanner"
	"github.com/mna/microvium/lang/token"
)

// ResolveProgram runs pass 1 and pass 2 over prog and returns the completed
// module Scope. The returned error, if non-nil, is a scanner.ErrorList; per
// spec §7 no partial scope model should be trusted on error.
func ResolveProgram(fset *token.FileSet, prog *ast.Program) (*Scope, error) {
	var r resolver
	r.file = fset.File(prog.Name)
	r.freeVars = make(map[string]*Binding)

	mod := newScope(ModuleScope, nil)
	r.resolveBody(prog.Body.Stmts, mod)
	r.errors.Sort()
	if err := r.errors.Err(); err != nil {
		return mod, err
	}

	assignSlots(mod)
	return mod, nil
}

type resolver struct {
	file   *token.File
	errors scanner.ErrorList

	// freeVars caches Bindings for names that escape every function scope
	// (host globals), keyed by name, so repeated references share one
	// Binding (spec §4.1 pass 1: "a reference that escapes all function
	// scopes resolves to a free variable").
	freeVars map[string]*Binding
}

func (r *resolver) errorf(pos token.Pos, format string, args ...interface{}) {
	p := r.file.Position(pos)
	r.errors.Add(gotoken.Position{Filename: p.Filename, Line: p.Line, Column: p.Col}, fmt.Sprintf(format, args...))
}

// resolveBody runs the hoist scan followed by the ordered statement walk
// for one function body, module body, or nested block, all within the
// already-pushed Scope s.
func (r *resolver) resolveBody(stmts []ast.Stmt, s *Scope) {
	r.hoistScan(stmts, s)
	for _, stmt := range stmts {
		r.stmt(stmt, s)
	}
}

// hoistScan finds every `var` declaration and function declaration
// directly in stmts (not descending into nested blocks or function
// bodies) and creates their Bindings at s.hoistTarget, recording the
// textual init order on s itself (spec §4.1 pass 1).
func (r *resolver) hoistScan(stmts []ast.Stmt, s *Scope) {
	for _, stmt := range stmts {
		switch n := stmt.(type) {
		case *ast.VariableDeclaration:
			if n.Kind != ast.DeclVar {
				continue
			}
			for _, name := range n.Names {
				b := r.hoistBinding(s, name.Lit, KindVar, name.Start)
				s.hoistTarget.VarDeclarations = appendUnique(s.hoistTarget.VarDeclarations, b)
				s.OwnVarDeclarations = append(s.OwnVarDeclarations, b)
			}
		case *ast.FunctionDeclaration:
			b := r.hoistBinding(s, n.Name.Lit, KindVar, n.Name.Start)
			s.hoistTarget.VarDeclarations = appendUnique(s.hoistTarget.VarDeclarations, b)
			s.NestedFunctionDeclarations = append(s.NestedFunctionDeclarations, b)
		case *ast.ExportDeclaration:
			if n.Decl != nil {
				r.hoistScan([]ast.Stmt{n.Decl}, s)
			}
		}
	}
}

func appendUnique(list []*Binding, b *Binding) []*Binding {
	for _, existing := range list {
		if existing == b {
			return list
		}
	}
	return append(list, b)
}

// hoistBinding returns the Binding for name at target's hoist target,
// creating it if this is the first sighting.
func (r *resolver) hoistBinding(s *Scope, name string, kind Kind, pos token.Pos) *Binding {
	target := s.hoistTarget
	if b, ok := target.Bindings[name]; ok {
		return b
	}
	b := &Binding{Name: name, Kind: kind, Decl: pos, scope: target}
	target.Bindings[name] = b
	return b
}

func (r *resolver) stmt(stmt ast.Stmt, s *Scope) {
	switch n := stmt.(type) {
	case *ast.VariableDeclaration:
		for i, name := range n.Names {
			init := n.Inits[i]
			if init != nil {
				r.expr(init, s)
			}
			switch n.Kind {
			case ast.DeclVar:
				b := s.hoistTarget.Bindings[name.Lit]
				bindIdent(name, b)
				if init != nil {
					b.markWrite()
				}
			case ast.DeclLet, ast.DeclConst:
				kind := KindLet
				if n.Kind == ast.DeclConst {
					kind = KindConst
				}
				b := r.declareLexical(s, name, kind)
				bindIdent(name, b)
				if init != nil {
					b.markWrite()
				}
			}
		}

	case *ast.ExpressionStatement:
		r.expr(n.X, s)

	case *ast.IfStatement:
		r.expr(n.Cond, s)
		r.resolveBlock(n.Cons, s)
		if n.Alt != nil {
			r.stmt(n.Alt, s)
		}

	case *ast.WhileStatement:
		r.expr(n.Cond, s)
		r.resolveBlock(n.Body, s)

	case *ast.DoWhileStatement:
		r.resolveBlock(n.Body, s)
		r.expr(n.Cond, s)

	case *ast.ForStatement:
		loopScope := newScope(BlockScope, s)
		if n.Init != nil {
			r.hoistScan([]ast.Stmt{n.Init}, loopScope)
			r.stmt(n.Init, loopScope)
		}
		if n.Cond != nil {
			r.expr(n.Cond, loopScope)
		}
		if n.Post != nil {
			r.expr(n.Post, loopScope)
		}
		bodyScope := newScope(BlockScope, loopScope)
		r.resolveBody(n.Body.Stmts, bodyScope)
		n.Body.Scope = bodyScope

	case *ast.BreakStatement:
		// nothing to resolve

	case *ast.ReturnStatement:
		if n.X != nil {
			r.expr(n.X, s)
		}

	case *ast.SwitchStatement:
		r.expr(n.Disc, s)
		caseScope := newScope(BlockScope, s)
		n.Scope = caseScope
		for _, c := range n.Cases {
			if c.Test != nil {
				r.expr(c.Test, caseScope)
			}
			r.hoistScan(c.Body, caseScope)
		}
		for _, c := range n.Cases {
			for _, cs := range c.Body {
				r.stmt(cs, caseScope)
			}
		}

	case *ast.FunctionDeclaration:
		b := s.hoistTarget.Bindings[n.Name.Lit]
		bindIdent(n.Name, b)
		n.Scope = r.resolveFunction(n.Sig, n.Body, s, false)

	case *ast.ImportDeclaration:
		for i, name := range n.Names {
			b := &Binding{
				Name:            name.Lit,
				Kind:            KindImport,
				Decl:            name.Start,
				scope:           s.hoistTarget,
				ImportedName:    n.Imported[i],
				ImportSpecifier: n.Specifier,
			}
			s.hoistTarget.Bindings[name.Lit] = b
			s.hoistTarget.ImportDeclarations = append(s.hoistTarget.ImportDeclarations, b)
			bindIdent(name, b)
		}

	case *ast.ExportDeclaration:
		if n.Decl != nil {
			r.stmt(n.Decl, s)
			markExported(n.Decl)
		}
		for _, name := range n.Names {
			if b := r.lookupExisting(s, name.Lit); b != nil {
				b.IsExported = true
				bindIdent(name, b)
			} else {
				r.errorf(name.Start, "export of undeclared name: %s", name.Lit)
			}
		}

	case *ast.Block:
		r.resolveBlock(n, s)

	default:
		panic(fmt.Sprintf("scope: unexpected stmt %T", stmt))
	}
}

func markExported(stmt ast.Stmt) {
	switch n := stmt.(type) {
	case *ast.VariableDeclaration:
		for _, name := range n.Names {
			if b, ok := name.Binding.(*Binding); ok {
				b.IsExported = true
			}
		}
	case *ast.FunctionDeclaration:
		if b, ok := n.Name.Binding.(*Binding); ok {
			b.IsExported = true
		}
	}
}

// declareLexical binds a let/const name directly into s, erroring on
// redeclaration within the same block (spec §4.1 failure modes).
func (r *resolver) declareLexical(s *Scope, name *ast.IdentExpr, kind Kind) *Binding {
	if _, ok := s.Bindings[name.Lit]; ok {
		r.errorf(name.Start, "already declared in this block: %s", name.Lit)
		return &Binding{Name: name.Lit, Kind: kind, Decl: name.Start, scope: s}
	}
	b := &Binding{Name: name.Lit, Kind: kind, Decl: name.Start, scope: s}
	s.Bindings[name.Lit] = b
	s.LexicalDeclarations = append(s.LexicalDeclarations, b)
	return b
}

// resolveBlock pushes a fresh BlockScope, resolves body, and records it as
// a child of s.
func (r *resolver) resolveBlock(b *ast.Block, s *Scope) {
	child := newScope(BlockScope, s)
	r.resolveBody(b.Stmts, child)
	b.Scope = child
}

// resolveFunction pushes a FunctionScope for sig/body, binding parameters
// and (for non-arrow functions) an implicit `this`.
func (r *resolver) resolveFunction(sig *ast.FuncSignature, body *ast.Block, parent *Scope, isArrow bool) *Scope {
	fn := newScope(FunctionScope, parent)
	if !isArrow {
		fn.ThisBinding = &Binding{Name: "this", Kind: KindThis, scope: fn}
	}
	for _, param := range sig.Params {
		b := &Binding{Name: param.Lit, Kind: KindParam, Decl: param.Start, scope: fn}
		fn.Bindings[param.Lit] = b
		fn.ParameterBindings = append(fn.ParameterBindings, b)
		bindIdent(param, b)
	}
	r.resolveBody(body.Stmts, fn)
	return fn
}

func (r *resolver) expr(e ast.Expr, s *Scope) {
	switch n := e.(type) {
	case *ast.IdentExpr:
		r.use(n, s)
	case *ast.LiteralExpr:
		// nothing to resolve
	case *ast.ThisExpr:
		r.useThis(n, s)
	case *ast.TemplateLiteral:
		for _, sub := range n.Exprs {
			r.expr(sub, s)
		}
	case *ast.ParenExpr:
		r.expr(n.X, s)
	case *ast.ArrayLikeExpr:
		for _, it := range n.Items {
			r.expr(it, s)
		}
	case *ast.ObjectExpr:
		for _, it := range n.Items {
			if it.Computed {
				r.expr(it.Key, s)
			}
			r.expr(it.Value, s)
		}
	case *ast.BinaryExpr:
		r.expr(n.Left, s)
		r.expr(n.Right, s)
	case *ast.LogicalExpr:
		r.expr(n.Left, s)
		r.expr(n.Right, s)
	case *ast.UnaryExpr:
		r.expr(n.X, s)
	case *ast.UpdateExpr:
		r.exprWrite(n.X, s)
	case *ast.AssignExpr:
		r.expr(n.Right, s)
		r.exprWrite(n.Left, s)
	case *ast.CallExpr:
		r.expr(n.Fn, s)
		for _, a := range n.Args {
			r.expr(a, s)
		}
	case *ast.MemberExpr:
		r.expr(n.X, s)
		if n.Computed {
			r.expr(n.Prop, s)
		}
	case *ast.ConditionalExpr:
		r.expr(n.Cond, s)
		r.expr(n.Cons, s)
		r.expr(n.Alt, s)
	case *ast.FuncExpr:
		n.Scope = r.resolveFunction(n.Sig, n.Body, s, false)
	case *ast.ArrowFuncExpr:
		fn := newScope(FunctionScope, s)
		for _, param := range n.Sig.Params {
			b := &Binding{Name: param.Lit, Kind: KindParam, Decl: param.Start, scope: fn}
			fn.Bindings[param.Lit] = b
			fn.ParameterBindings = append(fn.ParameterBindings, b)
			bindIdent(param, b)
		}
		if n.Body != nil {
			r.resolveBody(n.Body.Stmts, fn)
		} else {
			r.expr(n.BodyExpr, fn)
		}
		n.Scope = fn
	default:
		panic(fmt.Sprintf("scope: unexpected expr %T", e))
	}
}

// exprWrite resolves an assignment/update target, marking the resolved
// binding (if any — a MemberExpr target has none) as written-to.
func (r *resolver) exprWrite(e ast.Expr, s *Scope) {
	switch n := e.(type) {
	case *ast.IdentExpr:
		r.use(n, s)
		if b, ok := n.Binding.(*Binding); ok {
			b.markWrite()
		}
	default:
		r.expr(e, s)
	}
}

// lookupExisting walks the scope chain for name without creating a free
// variable, for "export { name }" re-export validation.
func (r *resolver) lookupExisting(s *Scope, name string) *Binding {
	for c := s; c != nil; c = c.Parent {
		if b, ok := c.Bindings[name]; ok {
			return b
		}
	}
	return nil
}

// use resolves an identifier reference, walking outward through the scope
// chain and promoting a Local binding to Cell-like capture status the
// moment a reference crosses a function boundary (spec §4.1 pass 1).
func (r *resolver) use(id *ast.IdentExpr, s *Scope) {
	startFn := s.enclosingFunction()
	for c := s; c != nil; c = c.Parent {
		b, ok := c.Bindings[id.Lit]
		if !ok {
			continue
		}
		if c.enclosingFunction() != startFn {
			b.markCaptured()
			if startFn != nil {
				startFn.CapturesOuterScope = true
			}
		}
		bindIdent(id, b)
		return
	}

	// Escaped every function and module scope: a free variable (host
	// global).
	b, ok := r.freeVars[id.Lit]
	if !ok {
		b = &Binding{Name: id.Lit, Kind: KindVar, Decl: id.Start}
		r.freeVars[id.Lit] = b
	}
	bindIdent(id, b)
}

// useThis resolves the `this` pseudo-identifier to the nearest enclosing
// non-arrow function's ThisBinding (arrow functions have none of their
// own, spec §4.1: "this is a scope-local pseudo-binding introduced by
// function declarations but not by arrow functions").
func (r *resolver) useThis(t *ast.ThisExpr, s *Scope) {
	startFn := s.enclosingFunction()
	for c := s; c != nil; c = c.Parent {
		if c.Kind == FunctionScope && c.ThisBinding != nil {
			if c != startFn {
				c.ThisBinding.markCaptured()
				if startFn != nil {
					startFn.CapturesOuterScope = true
				}
			}
			bindThis(t, c.ThisBinding)
			return
		}
	}
	r.errorf(t.Start, "'this' used outside of a function")
	bindThis(t, &Binding{Name: "this", Kind: KindThis})
}
