// Package ast defines the types representing the abstract syntax tree (AST)
// of the restricted source grammar accepted by the pipeline (spec §6: the
// "AST Provider" contract). It is the shared vocabulary between lang/parser
// (which produces a tree), internal/scope (which annotates it with binding
// information) and internal/il (which lowers it to the IL Unit).
package ast

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mna/microvium/lang/token"
)

// Node represents any node in the AST.
type Node interface {
	// Every Node implements fmt.Formatter so it can print a description of
	// itself. Only the 'v' and 's' verbs are supported. The '#' flag prints
	// child-count information. A width pads or truncates the label.
	fmt.Formatter

	// Span reports the start and end position of the node.
	Span() (start, end token.Pos)

	// Walk enters each child node to implement the Visitor pattern.
	Walk(v Visitor)
}

// Expr represents an expression in the AST. Every expression compiles to
// exactly one value left on the operand stack (spec §4.2).
type Expr interface {
	Node
	expr()
}

// Stmt represents a statement in the AST.
type Stmt interface {
	Node
	// BlockEnding reports whether the statement must be last in its block
	// (return, break).
	BlockEnding() bool
}

// Program is the root of a parsed source file (the "Chunk" of the pipeline:
// spec §4.2 compiles it as the distinguished #entry function).
type Program struct {
	Name  string // filename
	Body  *Block
	EOF   token.Pos
	IsAsync bool // inert metadata only, spec §9(iii); never examined
}

// Block represents a sequence of statements delimited by { }, or the
// top-level statement list of a Program.
type Block struct {
	Start, End token.Pos
	Stmts      []Stmt
	Scope      any // *scope.Scope (BlockScope), set by internal/scope
}

func (n *Program) Format(f fmt.State, verb rune) {
	lbl := "program"
	if n.Name != "" {
		lbl += " " + n.Name
	}
	format(f, verb, n, lbl, nil)
}
func (n *Program) Span() (start, end token.Pos) {
	if n.Body != nil {
		return n.Body.Span()
	}
	return n.EOF, n.EOF
}
func (n *Program) Walk(v Visitor) {
	if n.Body != nil {
		Walk(v, n.Body)
	}
}

func (n *Block) Format(f fmt.State, verb rune) {
	format(f, verb, n, "block", map[string]int{"stmts": len(n.Stmts)})
}
func (n *Block) Span() (start, end token.Pos) { return n.Start, n.End }
func (n *Block) Walk(v Visitor) {
	for _, s := range n.Stmts {
		Walk(v, s)
	}
}

// BlockEnding lets *Block stand in as a Stmt (an else-if chain's final
// "else { ... }" arm, or a bare nested block used as a statement).
func (n *Block) BlockEnding() bool { return false }

func format(f fmt.State, verb rune, n Node, label string, counts map[string]int) {
	if verb != 'v' && verb != 's' {
		fmt.Fprintf(f, "%%!%c(%T)", verb, n)
		return
	}

	label = strings.ReplaceAll(label, "\r\n", "⏎")
	label = strings.ReplaceAll(label, "\n", "⏎")
	label = strings.ReplaceAll(label, "\t", "⭾")

	if w, ok := f.Width(); ok {
		minus, plus := f.Flag('-'), f.Flag('+')
		runes := []rune(label)
		switch {
		case len(runes) >= w:
			runes = runes[:w]
		case minus:
			runes = append(runes, []rune(strings.Repeat(" ", w-len(runes)))...)
		case !plus:
			runes = append([]rune(strings.Repeat(" ", w-len(runes))), runes...)
		}
		label = string(runes)
	}

	fmt.Fprint(f, label)
	if f.Flag('#') && len(counts) > 0 {
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprint(f, " {")
		for i, k := range keys {
			if i > 0 {
				fmt.Fprint(f, ", ")
			}
			fmt.Fprintf(f, "%s=%d", k, counts[k])
		}
		fmt.Fprint(f, "}")
	}
}
