package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/mna/microvium/internal/vm"
)

func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return RunFiles(stdio, args...)
}

// RunFiles evaluates each file as a module (spec §6
// "vm.evaluateModule"), printing "<file>: ok" for each file that
// evaluates without error -- this command is mainly useful to confirm a
// module's top-level side effects settle without error.
func RunFiles(stdio mainer.Stdio, files ...string) error {
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

		m := vm.Create(nil)
		err = m.EvaluateModule(vm.EvaluateModuleOptions{
			SourceText:    string(src),
			DebugFilename: filename,
		})
		if err != nil {
			fmt.Fprintf(stdio.Stderr, "%s: %s\n", filename, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		fmt.Fprintf(stdio.Stdout, "%s: ok\n", filename)
	}
	return firstErr
}
