package ast

import (
	"fmt"
	"strconv"

	"github.com/mna/microvium/lang/token"
)

type (
	// IdentExpr is an identifier reference. Binding is filled in by the
	// scope analyzer (internal/scope), never by the parser.
	IdentExpr struct {
		Start   token.Pos
		Lit     string
		Binding any // *scope.Binding, opaque to this package to avoid an import cycle
	}

	// LiteralExpr is a numeric, string, boolean, null or undefined literal.
	LiteralExpr struct {
		Start token.Pos
		Kind  token.Token // NUMBER, STRING, TRUE, FALSE, NULL, UNDEFINED
		Lit   string       // raw text (unused for TRUE/FALSE/NULL/UNDEFINED)
	}

	// ThisExpr is the "this" pseudo-identifier.
	ThisExpr struct {
		Start   token.Pos
		Binding any // *scope.Binding
	}

	// TemplateLiteral alternates literal text chunks (Quasis, len(Quasis) ==
	// len(Exprs)+1) with embedded expressions (spec §4.2 "Template literal").
	TemplateLiteral struct {
		Start, End token.Pos
		Quasis     []string
		Exprs      []Expr
	}

	// ParenExpr is a parenthesized expression, kept so printers can round
	// trip, but it compiles transparently to its inner expression.
	ParenExpr struct {
		Lparen, Rparen token.Pos
		X              Expr
	}

	// ArrayLikeExpr is an array literal "[a, b, c]".
	ArrayLikeExpr struct {
		Start, End token.Pos
		Items      []Expr
	}

	// ObjectExpr is an object literal "{ k: v, ... }".
	ObjectExpr struct {
		Start, End token.Pos
		Items      []*ObjectItem
	}

	// ObjectItem is one "key: value" pair of an ObjectExpr. Computed is true
	// for "[expr]: value" keys.
	ObjectItem struct {
		Key      Expr // *IdentExpr (shorthand key) or *LiteralExpr, or any Expr if Computed
		Value    Expr
		Computed bool
	}

	// BinaryExpr is a binary arithmetic/bitwise/comparison expression.
	// Reserved operators (==, !=, instanceof) parse into this node but are
	// rejected by the IL compiler (spec §7).
	BinaryExpr struct {
		Left  Expr
		Op    token.Token
		OpPos token.Pos
		Right Expr
	}

	// LogicalExpr is "&&" or "||" (short-circuiting); "??" parses here too
	// but its lowering is an Open Question left as a CompileError (spec §9).
	LogicalExpr struct {
		Left  Expr
		Op    token.Token
		OpPos token.Pos
		Right Expr
	}

	// UnaryExpr is a prefix unary operator: -, +, ~, !. typeof/void/delete
	// parse here too but are always a CompileError (spec §7).
	UnaryExpr struct {
		OpPos token.Pos
		Op    token.Token
		X     Expr
	}

	// UpdateExpr is "++x"/"--x" (Prefix true) or "x++"/"x--" (Prefix false).
	UpdateExpr struct {
		OpPos  token.Pos
		Op     token.Token // INC or DEC
		X      Expr
		Prefix bool
	}

	// AssignExpr is "lhs = rhs" or a compound "lhs op= rhs". Per spec §4.2,
	// the written value remains as the expression's result (assignment is
	// itself an expression, not just a statement form).
	AssignExpr struct {
		Left  Expr // *IdentExpr or *MemberExpr
		Op    token.Token
		OpPos token.Pos
		Right Expr
	}

	// CallExpr is "fn(args...)" or the method-call form "obj.m(args...)"
	// when Fn is a *MemberExpr.
	CallExpr struct {
		Fn     Expr
		Args   []Expr
		Lparen token.Pos
		Rparen token.Pos
	}

	// MemberExpr is "x.p" (Computed false, Prop a literal name) or "x[e]"
	// (Computed true, Prop an arbitrary expression).
	MemberExpr struct {
		X        Expr
		Prop     Expr
		Computed bool
		End      token.Pos
	}

	// ConditionalExpr is "cond ? cons : alt".
	ConditionalExpr struct {
		Cond, Cons, Alt Expr
	}

	// FuncExpr is a function expression: "function(params) { body }".
	FuncExpr struct {
		Start   token.Pos
		Sig     *FuncSignature
		Body    *Block
		IsAsync bool // inert metadata, spec §9(iii)
		Scope   any  // *scope.Scope (FunctionScope), set by internal/scope
	}

	// ArrowFuncExpr is "(params) => expr" (BodyExpr set, Body nil) or
	// "(params) => { stmts }" (Body set, BodyExpr nil).
	ArrowFuncExpr struct {
		Start    token.Pos
		Sig      *FuncSignature
		Body     *Block
		BodyExpr Expr
		IsAsync  bool // inert metadata, spec §9(iii)
		Scope    any  // *scope.Scope (FunctionScope), set by internal/scope
	}
)

func (*IdentExpr) expr()       {}
func (*LiteralExpr) expr()     {}
func (*ThisExpr) expr()        {}
func (*TemplateLiteral) expr() {}
func (*ParenExpr) expr()       {}
func (*ArrayLikeExpr) expr()   {}
func (*ObjectExpr) expr()      {}
func (*BinaryExpr) expr()      {}
func (*LogicalExpr) expr()     {}
func (*UnaryExpr) expr()       {}
func (*UpdateExpr) expr()      {}
func (*AssignExpr) expr()      {}
func (*CallExpr) expr()        {}
func (*MemberExpr) expr()      {}
func (*ConditionalExpr) expr() {}
func (*FuncExpr) expr()        {}
func (*ArrowFuncExpr) expr()   {}

func (n *IdentExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "ident "+n.Lit, nil) }
func (n *IdentExpr) Span() (token.Pos, token.Pos) {
	return n.Start, n.Start + token.Pos(len(n.Lit))
}
func (n *IdentExpr) Walk(_ Visitor) {}

func (n *LiteralExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "literal "+n.describe(), nil) }
func (n *LiteralExpr) describe() string {
	if n.Kind == token.STRING {
		return strconv.Quote(n.Lit)
	}
	if n.Lit != "" {
		return n.Lit
	}
	return n.Kind.String()
}
func (n *LiteralExpr) Span() (token.Pos, token.Pos) {
	return n.Start, n.Start + token.Pos(len(n.Lit))
}
func (n *LiteralExpr) Walk(_ Visitor) {}

func (n *ThisExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "this", nil) }
func (n *ThisExpr) Span() (token.Pos, token.Pos)  { return n.Start, n.Start }
func (n *ThisExpr) Walk(_ Visitor)                {}

func (n *TemplateLiteral) Format(f fmt.State, verb rune) {
	format(f, verb, n, "template", map[string]int{"exprs": len(n.Exprs)})
}
func (n *TemplateLiteral) Span() (token.Pos, token.Pos) { return n.Start, n.End }
func (n *TemplateLiteral) Walk(v Visitor) {
	for _, e := range n.Exprs {
		Walk(v, e)
	}
}

func (n *ParenExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "paren", nil) }
func (n *ParenExpr) Span() (token.Pos, token.Pos)  { return n.Lparen, n.Rparen }
func (n *ParenExpr) Walk(v Visitor)                { Walk(v, n.X) }

func (n *ArrayLikeExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "array", map[string]int{"items": len(n.Items)})
}
func (n *ArrayLikeExpr) Span() (token.Pos, token.Pos) { return n.Start, n.End }
func (n *ArrayLikeExpr) Walk(v Visitor) {
	for _, it := range n.Items {
		Walk(v, it)
	}
}

func (n *ObjectExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "object", map[string]int{"items": len(n.Items)})
}
func (n *ObjectExpr) Span() (token.Pos, token.Pos) { return n.Start, n.End }
func (n *ObjectExpr) Walk(v Visitor) {
	for _, it := range n.Items {
		Walk(v, it.Key)
		Walk(v, it.Value)
	}
}

func (n *BinaryExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "binop "+n.Op.String(), nil) }
func (n *BinaryExpr) Span() (token.Pos, token.Pos) {
	start, _ := n.Left.Span()
	_, end := n.Right.Span()
	return start, end
}
func (n *BinaryExpr) Walk(v Visitor) {
	Walk(v, n.Left)
	Walk(v, n.Right)
}

func (n *LogicalExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "logical "+n.Op.String(), nil) }
func (n *LogicalExpr) Span() (token.Pos, token.Pos) {
	start, _ := n.Left.Span()
	_, end := n.Right.Span()
	return start, end
}
func (n *LogicalExpr) Walk(v Visitor) {
	Walk(v, n.Left)
	Walk(v, n.Right)
}

func (n *UnaryExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "unary "+n.Op.String(), nil) }
func (n *UnaryExpr) Span() (token.Pos, token.Pos) {
	_, end := n.X.Span()
	return n.OpPos, end
}
func (n *UnaryExpr) Walk(v Visitor) { Walk(v, n.X) }

func (n *UpdateExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "update "+n.Op.String(), nil) }
func (n *UpdateExpr) Span() (token.Pos, token.Pos) {
	start, end := n.X.Span()
	if n.Prefix {
		return n.OpPos, end
	}
	return start, n.OpPos
}
func (n *UpdateExpr) Walk(v Visitor) { Walk(v, n.X) }

func (n *AssignExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "assign "+n.Op.String(), nil) }
func (n *AssignExpr) Span() (token.Pos, token.Pos) {
	start, _ := n.Left.Span()
	_, end := n.Right.Span()
	return start, end
}
func (n *AssignExpr) Walk(v Visitor) {
	Walk(v, n.Left)
	Walk(v, n.Right)
}

func (n *CallExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "call", map[string]int{"args": len(n.Args)})
}
func (n *CallExpr) Span() (token.Pos, token.Pos) {
	start, _ := n.Fn.Span()
	return start, n.Rparen
}
func (n *CallExpr) Walk(v Visitor) {
	Walk(v, n.Fn)
	for _, a := range n.Args {
		Walk(v, a)
	}
}

func (n *MemberExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "member", nil) }
func (n *MemberExpr) Span() (token.Pos, token.Pos) {
	start, _ := n.X.Span()
	return start, n.End
}
func (n *MemberExpr) Walk(v Visitor) {
	Walk(v, n.X)
	Walk(v, n.Prop)
}

func (n *ConditionalExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "conditional", nil) }
func (n *ConditionalExpr) Span() (token.Pos, token.Pos) {
	start, _ := n.Cond.Span()
	_, end := n.Alt.Span()
	return start, end
}
func (n *ConditionalExpr) Walk(v Visitor) {
	Walk(v, n.Cond)
	Walk(v, n.Cons)
	Walk(v, n.Alt)
}

func (n *FuncExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "function expr", map[string]int{"params": len(n.Sig.Params)})
}
func (n *FuncExpr) Span() (token.Pos, token.Pos) {
	_, end := n.Body.Span()
	return n.Start, end
}
func (n *FuncExpr) Walk(v Visitor) {
	for _, p := range n.Sig.Params {
		Walk(v, p)
	}
	Walk(v, n.Body)
}

func (n *ArrowFuncExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "arrow", map[string]int{"params": len(n.Sig.Params)})
}
func (n *ArrowFuncExpr) Span() (token.Pos, token.Pos) {
	if n.Body != nil {
		_, end := n.Body.Span()
		return n.Start, end
	}
	_, end := n.BodyExpr.Span()
	return n.Start, end
}
func (n *ArrowFuncExpr) Walk(v Visitor) {
	for _, p := range n.Sig.Params {
		Walk(v, p)
	}
	if n.Body != nil {
		Walk(v, n.Body)
	} else {
		Walk(v, n.BodyExpr)
	}
}

// Unwrap strips any number of enclosing ParenExpr layers.
func Unwrap(e Expr) Expr {
	for {
		pe, ok := e.(*ParenExpr)
		if !ok {
			return e
		}
		e = pe.X
	}
}

// IsValidStmt reports whether e is a valid ExpressionStatement expression:
// per spec §6/§4.2 only call expressions (and assignments, for completeness
// of statement-level side effects) are meaningful as bare statements.
func IsValidStmt(e Expr) bool {
	switch Unwrap(e).(type) {
	case *CallExpr, *AssignExpr, *UpdateExpr:
		return true
	default:
		return false
	}
}
