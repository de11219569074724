package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/mna/microvium/internal/snapshot"
	"github.com/mna/microvium/internal/vm"
)

func (c *Cmd) Snapshot(ctx context.Context, stdio mainer.Stdio, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("snapshot: a source file is required")
	}
	return SnapshotFile(stdio, args[0])
}

// SnapshotFile evaluates a module then encodes its settled graph to a
// snapshot image, writing the bytes to stdout (spec §4.3 "produce bytes");
// redirect the command's output to a file to save it.
func SnapshotFile(stdio mainer.Stdio, filename string) error {
	src, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	m := vm.Create(nil)
	if err := m.EvaluateModule(vm.EvaluateModuleOptions{SourceText: string(src), DebugFilename: filename}); err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", filename, err)
		return err
	}

	data, err := snapshot.Encode(m.CreateSnapshotInfo(), nil)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", filename, err)
		return err
	}

	_, err = stdio.Stdout.Write(data)
	return err
}

func (c *Cmd) Inspect(ctx context.Context, stdio mainer.Stdio, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("inspect: a snapshot file is required")
	}
	return InspectFile(stdio, args[0])
}

// InspectFile decodes a snapshot image and prints its region table and
// reachable-value dump without re-running whatever script produced it
// (spec §4.3 decoding step 4, "pretty-print the region stack").
func InspectFile(stdio mainer.Stdio, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	mapping, err := snapshot.Decode(data)
	if err != nil {
		var invalid *snapshot.InvalidBytecode
		if errors.As(err, &invalid) {
			fmt.Fprintf(stdio.Stderr, "%s: %s\n", filename, invalid)
		} else {
			fmt.Fprintf(stdio.Stderr, "%s: %s\n", filename, err)
		}
		return err
	}

	fmt.Fprint(stdio.Stdout, mapping.String())
	return nil
}
