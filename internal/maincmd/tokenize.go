package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/mna/microvium/lang/scanner"
	"github.com/mna/microvium/lang/token"
)

func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return TokenizeFiles(stdio, args...)
}

// TokenizeFiles runs the scanner phase over each file and prints its token
// stream, one token per line as "<position>: <token> [<literal>]".
func TokenizeFiles(stdio mainer.Stdio, files ...string) error {
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

		file, toks, err := scanner.ScanFiles(fset, filename, src)
		for _, tv := range toks {
			fmt.Fprintf(stdio.Stdout, "%s: %s", file.Position(tv.Pos), tv.Token)
			if tv.Lit != "" {
				fmt.Fprintf(stdio.Stdout, " %s", tv.Lit)
			}
			fmt.Fprintln(stdio.Stdout)
		}
		if err != nil {
			scanner.PrintError(stdio.Stderr, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
