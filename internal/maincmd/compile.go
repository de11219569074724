package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/mna/microvium/internal/il"
	"github.com/mna/microvium/internal/scope"
	"github.com/mna/microvium/lang/parser"
	"github.com/mna/microvium/lang/token"
)

func (c *Cmd) Compile(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return CompileFiles(stdio, args...)
}

// CompileFiles runs the full front end (parse, resolve, IL-compile) over
// each file and prints the resulting IL Unit's disassembly (spec §3 "IL
// Unit" / §9 "Inspection").
func CompileFiles(stdio mainer.Stdio, files ...string) error {
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

		unit, err := compileUnit(fset, filename, src)
		if err != nil {
			fmt.Fprintf(stdio.Stderr, "%s: %s\n", filename, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		text, err := il.Disassemble(unit)
		if err != nil {
			fmt.Fprintf(stdio.Stderr, "%s: %s\n", filename, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		fmt.Fprint(stdio.Stdout, string(text))
	}
	return firstErr
}

func compileUnit(fset *token.FileSet, filename string, src []byte) (*il.Unit, error) {
	prog, err := parser.ParseSource(fset, filename, src)
	if err != nil {
		return nil, err
	}
	mod, err := scope.ResolveProgram(fset, prog)
	if err != nil {
		return nil, err
	}
	return il.CompileProgram(fset, prog, mod)
}
