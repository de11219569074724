// Package scope implements the Scope Analyzer (spec §4.1): a two-pass
// resolver that turns a parsed AST into the scope model of spec §3 (Binding,
// Slot, Scope), annotating each ast.IdentExpr/ThisExpr's Binding field along
// the way. internal/il consumes the result as an opaque, fully-resolved
// model; it never walks the AST looking up names itself.
//
// Pass 1 (see resolver.go) builds the scope tree and classifies every
// declaration and reference. Pass 2 (see slots.go) walks that tree top-down
// assigning each Binding exactly one Slot.
package scope

import (
	"fmt"

	"github.com/mna/microvium/lang/ast"
	"github.com/mna/microvium/lang/token"
)

// Kind is the binding-kind metadata of spec §3.
type Kind uint8

const (
	KindVar Kind = iota
	KindLet
	KindConst
	KindParam
	KindThis
	KindImport
	KindExport
)

func (k Kind) String() string {
	switch k {
	case KindVar:
		return "var"
	case KindLet:
		return "let"
	case KindConst:
		return "const"
	case KindParam:
		return "param"
	case KindThis:
		return "this"
	case KindImport:
		return "import"
	case KindExport:
		return "export"
	default:
		return fmt.Sprintf("<invalid binding kind %d>", k)
	}
}

// Binding records everything the resolver knows about one declared name
// (spec §3). It is shared by every ast.IdentExpr/ast.ThisExpr reference that
// resolves to it.
type Binding struct {
	Name string
	Kind Kind

	IsWrittenTo                bool
	IsAccessedByNestedFunction bool
	IsExported                 bool

	// Decl is the source position of the declaring identifier for
	// var/let/const/param/import and function bindings, the position of
	// the first reference for a free variable, and the zero Pos for the
	// this pseudo-binding.
	Decl token.Pos

	// ImportedName is the exported name in the source module (KindImport
	// only); "" for a default import.
	ImportedName string

	// ImportSpecifier is the module specifier string this binding was
	// imported from (KindImport only).
	ImportSpecifier string

	// Slot is nil until pass 2 completes.
	Slot Slot

	// scope is the Scope this binding is declared directly in (not
	// necessarily its hoist target for var/function bindings).
	scope *Scope
}

func (b *Binding) String() string {
	return fmt.Sprintf("%s %q", b.Kind, b.Name)
}

// markWrite records that b's value was assigned to at least once.
func (b *Binding) markWrite() { b.IsWrittenTo = true }

// markCaptured records that a reference to b crossed a function boundary.
func (b *Binding) markCaptured() { b.IsAccessedByNestedFunction = true }

// bindIdent attaches b to an identifier reference so internal/il can read it
// back off the AST without consulting this package again.
func bindIdent(id *ast.IdentExpr, b *Binding) { id.Binding = b }
func bindThis(t *ast.ThisExpr, b *Binding)    { t.Binding = b }
