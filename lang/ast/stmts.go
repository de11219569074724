package ast

import (
	"fmt"

	"github.com/mna/microvium/lang/token"
)

// DeclKind distinguishes var/let/const in a VariableDeclaration, and the
// binding-kind metadata a Binding records (spec §3).
type DeclKind uint8

const (
	DeclVar DeclKind = iota
	DeclLet
	DeclConst
)

func (k DeclKind) String() string {
	switch k {
	case DeclVar:
		return "var"
	case DeclLet:
		return "let"
	case DeclConst:
		return "const"
	default:
		return "decl?"
	}
}

type (
	// VariableDeclaration represents "var|let|const name = init, ...".
	VariableDeclaration struct {
		Start token.Pos
		Kind  DeclKind
		Names []*IdentExpr
		Inits []Expr // Inits[i] is nil if Names[i] has no initializer
	}

	// ExpressionStatement is an expression used as a statement.
	ExpressionStatement struct {
		X Expr
	}

	// IfStatement represents "if (cond) cons else alt".
	IfStatement struct {
		Start token.Pos
		Cond  Expr
		Cons  *Block
		Alt   Stmt // *Block or *IfStatement (else-if chain), or nil
	}

	// WhileStatement represents "while (cond) body".
	WhileStatement struct {
		Start token.Pos
		Cond  Expr
		Body  *Block
	}

	// DoWhileStatement represents "do body while (cond)".
	DoWhileStatement struct {
		Start token.Pos
		Body  *Block
		Cond  Expr
		End   token.Pos
	}

	// ForStatement represents the classic three-part "for (init; cond; post)
	// body". Init may be a *VariableDeclaration or an *ExpressionStatement,
	// or nil.
	ForStatement struct {
		Start      token.Pos
		Init       Stmt
		Cond, Post Expr
		Body       *Block
	}

	// BreakStatement represents an unlabelled "break" (spec §6: labelled
	// break is not part of the supported AST).
	BreakStatement struct {
		Start token.Pos
	}

	// ReturnStatement represents "return expr" or a bare "return".
	ReturnStatement struct {
		Start token.Pos
		X     Expr // nil for a bare return
	}

	// SwitchStatement represents "switch (disc) { case ... default: ... }".
	SwitchStatement struct {
		Start token.Pos
		Disc  Expr
		Cases []*SwitchCase
		End   token.Pos
		Scope any // *scope.Scope (BlockScope shared by every case), set by internal/scope
	}

	// SwitchCase is one "case expr:" or "default:" arm. Test is nil for the
	// default arm.
	SwitchCase struct {
		Start token.Pos
		Test  Expr // nil for default
		Body  []Stmt
	}

	// FunctionDeclaration represents "function name(params) { body }".
	FunctionDeclaration struct {
		Start   token.Pos
		Name    *IdentExpr
		Sig     *FuncSignature
		Body    *Block
		IsAsync bool // inert metadata, spec §9(iii)
		Scope   any  // *scope.Scope (FunctionScope), set by internal/scope
	}

	// ImportDeclaration represents "import { name, ... } from 'specifier'"
	// or "import name from 'specifier'" (default import, captured as a
	// single-element Names list with an empty Imported).
	ImportDeclaration struct {
		Start      token.Pos
		Names      []*IdentExpr // local binding names
		Imported   []string     // exported name in source module; "" for default
		Specifier  string
	}

	// ExportDeclaration represents "export <decl>" or "export { name, ... }".
	ExportDeclaration struct {
		Start token.Pos
		Decl  Stmt         // non-nil for "export function/var/let/const ..."
		Names []*IdentExpr // non-nil for "export { name, ... }" re-export form
	}
)

// FuncSignature is the parameter list shared by FunctionDeclaration and
// ArrowFunctionExpression.
type FuncSignature struct {
	Params []*IdentExpr
}

func (n *VariableDeclaration) Format(f fmt.State, verb rune) {
	format(f, verb, n, n.Kind.String()+" declaration", map[string]int{"names": len(n.Names)})
}
func (n *VariableDeclaration) Span() (token.Pos, token.Pos) {
	end := n.Start
	if len(n.Names) > 0 {
		_, end = n.Names[len(n.Names)-1].Span()
	}
	if len(n.Inits) > 0 && n.Inits[len(n.Inits)-1] != nil {
		_, end = n.Inits[len(n.Inits)-1].Span()
	}
	return n.Start, end
}
func (n *VariableDeclaration) Walk(v Visitor) {
	for _, nm := range n.Names {
		Walk(v, nm)
	}
	for _, in := range n.Inits {
		if in != nil {
			Walk(v, in)
		}
	}
}
func (n *VariableDeclaration) BlockEnding() bool { return false }

func (n *ExpressionStatement) Format(f fmt.State, verb rune) { format(f, verb, n, "expr stmt", nil) }
func (n *ExpressionStatement) Span() (token.Pos, token.Pos)  { return n.X.Span() }
func (n *ExpressionStatement) Walk(v Visitor)                { Walk(v, n.X) }
func (n *ExpressionStatement) BlockEnding() bool             { return false }

func (n *IfStatement) Format(f fmt.State, verb rune) { format(f, verb, n, "if", nil) }
func (n *IfStatement) Span() (token.Pos, token.Pos) {
	end := n.Start
	if n.Alt != nil {
		_, end = n.Alt.Span()
	} else if n.Cons != nil {
		_, end = n.Cons.Span()
	}
	return n.Start, end
}
func (n *IfStatement) Walk(v Visitor) {
	Walk(v, n.Cond)
	if n.Cons != nil {
		Walk(v, n.Cons)
	}
	if n.Alt != nil {
		Walk(v, n.Alt)
	}
}
func (n *IfStatement) BlockEnding() bool { return false }

func (n *WhileStatement) Format(f fmt.State, verb rune) { format(f, verb, n, "while", nil) }
func (n *WhileStatement) Span() (token.Pos, token.Pos) {
	_, end := n.Body.Span()
	return n.Start, end
}
func (n *WhileStatement) Walk(v Visitor) {
	Walk(v, n.Cond)
	Walk(v, n.Body)
}
func (n *WhileStatement) BlockEnding() bool { return false }

func (n *DoWhileStatement) Format(f fmt.State, verb rune) { format(f, verb, n, "do-while", nil) }
func (n *DoWhileStatement) Span() (token.Pos, token.Pos)  { return n.Start, n.End }
func (n *DoWhileStatement) Walk(v Visitor) {
	Walk(v, n.Body)
	Walk(v, n.Cond)
}
func (n *DoWhileStatement) BlockEnding() bool { return false }

func (n *ForStatement) Format(f fmt.State, verb rune) { format(f, verb, n, "for", nil) }
func (n *ForStatement) Span() (token.Pos, token.Pos) {
	_, end := n.Body.Span()
	return n.Start, end
}
func (n *ForStatement) Walk(v Visitor) {
	if n.Init != nil {
		Walk(v, n.Init)
	}
	if n.Cond != nil {
		Walk(v, n.Cond)
	}
	if n.Post != nil {
		Walk(v, n.Post)
	}
	Walk(v, n.Body)
}
func (n *ForStatement) BlockEnding() bool { return false }

func (n *BreakStatement) Format(f fmt.State, verb rune) { format(f, verb, n, "break", nil) }
func (n *BreakStatement) Span() (token.Pos, token.Pos)  { return n.Start, n.Start }
func (n *BreakStatement) Walk(_ Visitor)                {}
func (n *BreakStatement) BlockEnding() bool             { return true }

func (n *ReturnStatement) Format(f fmt.State, verb rune) { format(f, verb, n, "return", nil) }
func (n *ReturnStatement) Span() (token.Pos, token.Pos) {
	end := n.Start
	if n.X != nil {
		_, end = n.X.Span()
	}
	return n.Start, end
}
func (n *ReturnStatement) Walk(v Visitor) {
	if n.X != nil {
		Walk(v, n.X)
	}
}
func (n *ReturnStatement) BlockEnding() bool { return true }

func (n *SwitchStatement) Format(f fmt.State, verb rune) {
	format(f, verb, n, "switch", map[string]int{"cases": len(n.Cases)})
}
func (n *SwitchStatement) Span() (token.Pos, token.Pos) { return n.Start, n.End }
func (n *SwitchStatement) Walk(v Visitor) {
	Walk(v, n.Disc)
	for _, c := range n.Cases {
		if c.Test != nil {
			Walk(v, c.Test)
		}
		for _, s := range c.Body {
			Walk(v, s)
		}
	}
}
func (n *SwitchStatement) BlockEnding() bool { return false }

func (n *FunctionDeclaration) Format(f fmt.State, verb rune) {
	format(f, verb, n, "function "+n.Name.Lit, map[string]int{"params": len(n.Sig.Params)})
}
func (n *FunctionDeclaration) Span() (token.Pos, token.Pos) {
	_, end := n.Body.Span()
	return n.Start, end
}
func (n *FunctionDeclaration) Walk(v Visitor) {
	Walk(v, n.Name)
	for _, p := range n.Sig.Params {
		Walk(v, p)
	}
	Walk(v, n.Body)
}
func (n *FunctionDeclaration) BlockEnding() bool { return false }

func (n *ImportDeclaration) Format(f fmt.State, verb rune) {
	format(f, verb, n, "import from "+n.Specifier, map[string]int{"names": len(n.Names)})
}
func (n *ImportDeclaration) Span() (token.Pos, token.Pos) { return n.Start, n.Start }
func (n *ImportDeclaration) Walk(v Visitor) {
	for _, nm := range n.Names {
		Walk(v, nm)
	}
}
func (n *ImportDeclaration) BlockEnding() bool { return false }

func (n *ExportDeclaration) Format(f fmt.State, verb rune) { format(f, verb, n, "export", nil) }
func (n *ExportDeclaration) Span() (token.Pos, token.Pos) {
	if n.Decl != nil {
		return n.Decl.Span()
	}
	return n.Start, n.Start
}
func (n *ExportDeclaration) Walk(v Visitor) {
	if n.Decl != nil {
		Walk(v, n.Decl)
	}
	for _, nm := range n.Names {
		Walk(v, nm)
	}
}
func (n *ExportDeclaration) BlockEnding() bool { return false }
