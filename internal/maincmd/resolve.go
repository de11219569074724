package maincmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mna/mainer"
	"github.com/mna/microvium/internal/scope"
	"github.com/mna/microvium/lang/parser"
	"github.com/mna/microvium/lang/scanner"
	"github.com/mna/microvium/lang/token"
)

func (c *Cmd) Resolve(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return ResolveFiles(stdio, args...)
}

// ResolveFiles runs the parser then the scope analyzer over each file and
// prints the resulting scope tree: a header line per Scope followed by one
// line per binding, indented to match nesting.
func ResolveFiles(stdio mainer.Stdio, files ...string) error {
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

		mod, err := scope.ResolveProgram(fset, prog)
		if err != nil {
			fmt.Fprintf(stdio.Stderr, "%s: %s\n", filename, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		fmt.Fprintf(stdio.Stdout, "%s:\n", filename)
		printScope(stdio.Stdout, mod, 0)
	}
	return firstErr
}

func printScope(w fmtWriter, s *scope.Scope, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s scope", indent, s.Kind)
	if s.FunctionIsClosure {
		fmt.Fprint(w, " [closure-producer]")
	}
	if s.CapturesOuterScope {
		fmt.Fprint(w, " [captures-outer]")
	}
	fmt.Fprintln(w)

	names := make([]string, 0, len(s.Bindings))
	for name := range s.Bindings {
		names = append(names, name)
	}
	for _, name := range names {
		b := s.Bindings[name]
		slot := "<unassigned>"
		if b.Slot != nil {
			slot = b.Slot.String()
		}
		fmt.Fprintf(w, "%s  %s %s -> %s\n", indent, b.Kind, b.Name, slot)
	}

	for _, child := range s.Children {
		printScope(w, child, depth+1)
	}
}
