package maincmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mna/mainer"
	"github.com/mna/microvium/lang/ast"
	"github.com/mna/microvium/lang/parser"
	"github.com/mna/microvium/lang/scanner"
	"github.com/mna/microvium/lang/token"
)

func (c *Cmd) Parse(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return ParseFiles(stdio, args...)
}

// ParseFiles runs the parser phase over each file and prints the resulting
// AST as an indented tree, one node per line, each labelled with its own
// %v formatting (every ast.Node is a fmt.Formatter) and source position.
func ParseFiles(stdio mainer.Stdio, files ...string) error {
	fset := token.NewFileSet()
	var firstErr error
	for _, filename := range files {
		src, err := os.ReadFile(filename)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		prog, err := parser.ParseSource(fset, filename, src)
		if err != nil {
			scanner.PrintError(stdio.Stderr, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		file := fset.File(filename)
		printTree(stdio.Stdout, file, prog)
	}
	return firstErr
}

func printTree(w fmtWriter, file *token.File, prog *ast.Program) {
	depth := 0
	var visit ast.VisitorFunc
	visit = func(n ast.Node, dir ast.VisitDirection) ast.Visitor {
		if dir == ast.VisitExit {
			depth--
			return nil
		}
		start, _ := n.Span()
		pos := ""
		if file != nil {
			pos = file.Position(start).String()
		}
		fmt.Fprintf(w, "%s%v (%s)\n", strings.Repeat("  ", depth), n, pos)
		depth++
		return visit
	}
	ast.Walk(visit, prog)
}

type fmtWriter interface {
	Write(p []byte) (int, error)
}
