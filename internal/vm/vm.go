package vm

import (
	"fmt"

	"github.com/dolthub/swiss"
	"github.com/mna/microvium/internal/il"
	"github.com/mna/microvium/internal/scope"
	"github.com/mna/microvium/lang/parser"
	"github.com/mna/microvium/lang/token"
)

// ImportResolver satisfies `import ... from specifier` references (spec §6
// "imports are resolved by either a table or a resolver function"): given
// the specifier text, it returns the already-evaluated namespace object of
// that module.
type ImportResolver func(specifier string) (*Object, error)

// EvaluateModuleOptions mirrors the host API's {sourceText, debugFilename}
// argument object (spec §6).
type EvaluateModuleOptions struct {
	SourceText     string
	DebugFilename  string
}

// SnapshotInfo is the live-graph handoff between the host VM and the
// snapshot encoder (spec §4.3 "Given the VM's live graph"): internal/vm
// settles module initialization and builds this; internal/snapshot walks it
// to produce a byte image. Held separately from *VM so the encoder package
// never needs a *Thread or a *VM to do its work — just the graph.
type SnapshotInfo struct {
	Unit    *il.Unit
	Globals map[string]Value
	Exports map[float64]Value
}

// VM is the host-side virtual machine (spec §6): it executes a module's
// `#entry` IL function once to settle top-level side effects, then exposes
// the resulting object graph through exportValue/resolveExport and the rest
// of the host contract. Grounded on the teacher's lang/machine.Thread/
// Interpreter split, but collapsed into one type since nenuphar's "many
// concurrent threads share one machine's global state" shape has no
// analogue here — exactly one #entry runs, once, synchronously (spec §5
// "single-threaded and synchronous").
type VM struct {
	unit            *il.Unit
	globals         *swiss.Map[string, Value]
	exports         map[float64]Value
	hostFunctions   map[float64]*HostFunction
	importResolver  ImportResolver

	allocations []Value // tracked heap values, for GarbageCollect (gc.go)
}

// Create returns a fresh VM whose import declarations are satisfied by
// resolver (spec §6 "create(importResolver) → VM").
func Create(resolver ImportResolver) *VM {
	return &VM{
		globals:       swiss.NewMap[string, Value](16),
		exports:       make(map[float64]Value),
		hostFunctions: make(map[float64]*HostFunction),
		importResolver: resolver,
	}
}

// EvaluateModule parses, resolves, and IL-compiles opts.SourceText, resolves
// its import declarations via the VM's ImportResolver, installs the
// vmExport/vmImport builtins, then runs `#entry` to completion (spec §6
// "vm.evaluateModule({sourceText, debugFilename})").
func (vm *VM) EvaluateModule(opts EvaluateModuleOptions) error {
	filename := opts.DebugFilename
	if filename == "" {
		filename = "<module>"
	}

	fset := token.NewFileSet()
	prog, err := parser.ParseSource(fset, filename, []byte(opts.SourceText))
	if err != nil {
		return fmt.Errorf("vm: parse: %w", err)
	}
	mod, err := scope.ResolveProgram(fset, prog)
	if err != nil {
		return fmt.Errorf("vm: resolve: %w", err)
	}
	unit, err := il.CompileProgram(fset, prog, mod)
	if err != nil {
		return fmt.Errorf("vm: compile: %w", err)
	}
	vm.unit = unit

	vm.installBuiltins()

	for _, imp := range unit.ModuleImports {
		ns, err := vm.resolveImport(imp.Specifier)
		if err != nil {
			return err
		}
		vm.globals.Put(imp.NamespaceGlobal, ns)
	}

	entry, ok := unit.Functions[unit.EntryFunctionID]
	if !ok {
		return fmt.Errorf("vm: unit has no entry function")
	}

	th := NewThread("entry")
	closure := &Closure{FunctionID: entry.ID, Name: entry.Name}
	_, err = vm.callClosure(th, closure, Undefined{}, nil)
	return err
}

func (vm *VM) resolveImport(specifier string) (*Object, error) {
	if vm.importResolver == nil {
		return nil, fmt.Errorf("vm: no import resolver configured for %q", specifier)
	}
	ns, err := vm.importResolver(specifier)
	if err != nil {
		return nil, fmt.Errorf("vm: resolving import %q: %w", specifier, err)
	}
	if ns == nil {
		ns = NewObject(1)
	}
	return ns, nil
}

// installBuiltins pre-populates the global environment with the two
// symmetric host-boundary functions (spec §6, scenario 1): `vmExport(id,
// value)` lets the running script register a value at a numeric export
// slot (the same slot vm.ExportValue/vm.ResolveExport address from the Go
// side); `vmImport(id)` is the reverse, letting the script retrieve a
// function previously registered with vm.ImportHostFunction. Neither is an
// AST-level `export`/`import` declaration (internal/scope's
// ModuleImportExportSlot already handles those) — these are host-embedder
// calls that happen to be ordinary function calls in source text.
func (vm *VM) installBuiltins() {
	vm.globals.Put("vmExport", &HostFunction{
		Name: "vmExport",
		Fn: func(th *Thread, this Value, args []Value) (Value, error) {
			if len(args) < 2 {
				return nil, &RuntimeError{Msg: "vmExport requires (exportId, value)"}
			}
			vm.ExportValue(toNumber(args[0]), args[1])
			return Undefined{}, nil
		},
	})
	vm.globals.Put("vmImport", &HostFunction{
		Name: "vmImport",
		Fn: func(th *Thread, this Value, args []Value) (Value, error) {
			if len(args) < 1 {
				return nil, &RuntimeError{Msg: "vmImport requires (hostFunctionId)"}
			}
			hf, ok := vm.hostFunctions[toNumber(args[0])]
			if !ok {
				return Undefined{}, nil
			}
			return hf, nil
		},
	})
}

// ExportValue records v as export exportId (spec §6
// "vm.exportValue(exportId, value)"). Called both directly by the host and
// indirectly via the vmExport builtin above.
func (vm *VM) ExportValue(exportID float64, v Value) {
	vm.exports[exportID] = v
	vm.track(v)
}

// ResolveExport returns the value previously registered at exportId, if
// any (spec §6 "vm.resolveExport(exportId)").
func (vm *VM) ResolveExport(exportID float64) (Value, bool) {
	v, ok := vm.exports[exportID]
	return v, ok
}

// ImportHostFunction registers fn under hostFunctionID so a running script
// can retrieve it via the vmImport builtin (spec §6
// "vm.importHostFunction(hostFunctionId)"; "Host functions are addressed by
// a 16-bit HostFunctionId").
func (vm *VM) ImportHostFunction(hostFunctionID float64, fn func(th *Thread, this Value, args []Value) (Value, error)) *HostFunction {
	hf := &HostFunction{Name: fmt.Sprintf("host#%d", int(hostFunctionID)), Fn: fn}
	vm.hostFunctions[hostFunctionID] = hf
	return hf
}

// CreateSnapshotInfo builds the live-graph handoff consumed by
// internal/snapshot (spec §6 "vm.createSnapshotInfo() → SnapshotInfo").
func (vm *VM) CreateSnapshotInfo() *SnapshotInfo {
	globals := make(map[string]Value)
	for _, name := range vm.unit.ModuleVariables {
		if v, ok := vm.globals.Get(name); ok {
			globals[name] = v
		}
	}
	exports := make(map[float64]Value, len(vm.exports))
	for k, v := range vm.exports {
		exports[k] = v
	}
	return &SnapshotInfo{Unit: vm.unit, Globals: globals, Exports: exports}
}

// track registers a heap value in the allocation set GarbageCollect (gc.go)
// sweeps over. Every opcode that creates a new heap value (ObjectNew,
// ArrayNew, ClosureNew) calls this at creation time, so exportValue below
// only needs it for values that originate from the host side rather than
// from the interpreter loop.
func (vm *VM) track(v Value) {
	switch v.(type) {
	case *Object, *Array, *Closure:
		vm.allocations = append(vm.allocations, v)
	}
}
