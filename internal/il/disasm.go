package il

import (
	"bytes"
	"fmt"
	"sort"
)

// Disassemble renders u as human-readable text, one function per blank-
// line-separated section in function-ID order, each block listing its
// operations in emission order (spec §3 "IL Unit" / §9 "Inspection").
// Grounded on the teacher's lang/compiler Dasm, generalized from a linear
// program-counter listing to this package's block-structured model: jump
// targets are block IDs directly, no address-to-index translation needed.
func Disassemble(u *Unit) ([]byte, error) {
	d := &disasm{u: u, buf: new(bytes.Buffer)}
	d.unit()
	return d.buf.Bytes(), d.err
}

type disasm struct {
	u   *Unit
	buf *bytes.Buffer
	err error
}

func (d *disasm) unit() {
	d.writef("unit: %s\n", d.u.SourceFilename)
	if len(d.u.ModuleImports) > 0 {
		d.write("\timports:\n")
		for _, imp := range d.u.ModuleImports {
			d.writef("\t\t%s\tfrom %q\n", imp.NamespaceGlobal, imp.Specifier)
		}
	}
	if len(d.u.ModuleVariables) > 0 {
		d.write("\tmodulevars:\n")
		for _, name := range d.u.ModuleVariables {
			d.writef("\t\t%s\n", name)
		}
	}
	if len(d.u.FreeVariables) > 0 {
		d.write("\tfreevars:\n")
		for _, name := range d.u.FreeVariables {
			d.writef("\t\t%s\n", name)
		}
	}

	ids := make([]FunctionID, 0, len(d.u.Functions))
	for id := range d.u.Functions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		d.write("\n")
		d.function(d.u.Functions[id])
		if d.err != nil {
			return
		}
	}
}

func (d *disasm) function(fn *Function) {
	d.writef("function: %s #%d <stack=%d params=%d closureslots=%d entry=%d>\n",
		fn.Name, fn.ID, fn.MaxStackDepth, fn.ParamCount, fn.ClosureSlots, fn.EntryBlockID)

	blockIDs := make([]BlockID, 0, len(fn.Blocks))
	for id := range fn.Blocks {
		blockIDs = append(blockIDs, id)
	}
	sort.Slice(blockIDs, func(i, j int) bool { return blockIDs[i] < blockIDs[j] })

	for _, id := range blockIDs {
		b := fn.Blocks[id]
		d.writef("\tblock %d: <entry-depth=%d>\n", b.ID, b.ExpectedStackDepthAtEntry)
		for i, op := range b.Operations {
			d.writef("\t\t%03d %s\n", i, d.operation(op))
		}
	}
}

func (d *disasm) operation(op Operation) string {
	line := operandString(op)
	if op.Comment != "" {
		line += "\t# " + op.Comment
	}
	return line
}

func operandString(op Operation) string {
	o := op.Operands
	switch op.Opcode {
	case Literal:
		return fmt.Sprintf("%s %s", op.Opcode, o.Const)
	case LoadVar, StoreVar, LoadScoped, StoreScoped:
		return fmt.Sprintf("%s %d", op.Opcode, o.Index)
	case LoadArg:
		return fmt.Sprintf("%s %d", op.Opcode, o.Index)
	case LoadGlobal, StoreGlobal:
		return fmt.Sprintf("%s %s", op.Opcode, o.Name)
	case BinaryOp:
		return fmt.Sprintf("%s %s", op.Opcode, o.BinOp)
	case Call:
		return fmt.Sprintf("%s argc=%d", op.Opcode, o.ArgCount)
	case ClosureNew:
		return op.Opcode.String()
	case Jump:
		return fmt.Sprintf("%s -> %d", op.Opcode, o.Target)
	case Branch:
		return fmt.Sprintf("%s true->%d false->%d", op.Opcode, o.TrueTarget, o.FalseTarget)
	default:
		return op.Opcode.String()
	}
}

func (d *disasm) writef(s string, args ...any) {
	d.write(fmt.Sprintf(s, args...))
}

func (d *disasm) write(s string) {
	if d.err != nil {
		return
	}
	_, d.err = d.buf.WriteString(s)
}
