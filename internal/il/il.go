// Package il implements the IL Compiler (spec §4.2): a syntax-directed
// lowering of a resolved AST (lang/ast + internal/scope) to a per-function
// control-flow graph of stack-machine operations. Grounded on the
// teacher's lang/compiler package (pcomp/fcomp, block/insn, an
// OpcodeArgMin-style opcode table), generalized from nenuphar's linear
// program-counter model to spec §3's structural IL Unit/Function/Block/
// Operation model, since the snapshot encoder (internal/snapshot) walks a
// VM object graph rather than this IL directly — the IL only needs to
// compile and disassemble, not address-linearize.
package il

import (
	"fmt"

	"github.com/mna/microvium/lang/token"
)

// FunctionID identifies one Function within a Unit.
type FunctionID uint32

// BlockID identifies one Block within a Function.
type BlockID uint32

// Unit is the IL Compiler's output (spec §3 "IL Unit").
type Unit struct {
	SourceFilename string
	EntryFunctionID FunctionID
	Functions       map[FunctionID]*Function

	// ModuleImports lists, in declaration order, every import specifier this
	// unit depends on and the GlobalSlot its namespace object is held in.
	ModuleImports []ModuleImport

	// ModuleVariables lists every module-level GlobalSlot name this unit
	// declares (exported or merely closure-captured).
	ModuleVariables []string

	// FreeVariables lists every host-global name referenced by this unit.
	FreeVariables []string

	nextFunctionID FunctionID
}

// ModuleImport records one `import ... from specifier` dependency.
type ModuleImport struct {
	NamespaceGlobal string
	Specifier       string
}

// Function is one compiled function (spec §3 "IL Function").
type Function struct {
	ID            FunctionID
	Name          string // "#entry" for the module's distinguished entry function
	EntryBlockID  BlockID
	MaxStackDepth int
	Blocks        map[BlockID]*Block
	ParamCount    int
	LocalSlots    int // count of LocalSlot indices this function's frame needs
	ClosureSlots  int // closure-vector slots this function allocates for its own captured bindings; 0 if it allocates none (a function that only reads an enclosing vector has 0)

	nextBlockID BlockID
}

// Block is one basic block of stack operations (spec §3 "IL Block").
type Block struct {
	ID                        BlockID
	ExpectedStackDepthAtEntry int
	Operations                []Operation

	// created is false for a block that has been predeclared (its ID
	// reserved so forward branches can reference it) but whose operations
	// have not yet been emitted.
	created bool

	// depthSet is true once some branch/jump has established (and every
	// subsequent one has confirmed) this block's ExpectedStackDepthAtEntry.
	depthSet bool
}

// Operation is one stack-machine instruction (spec §3 "Operation").
type Operation struct {
	Opcode Opcode
	// Operands carries whichever operand fields Opcode requires; unused
	// fields are left zero.
	Operands Operands

	StackDepthBefore int
	StackDepthAfter  int

	// Pos is optional source-location metadata for diagnostics/disassembly.
	Pos token.Pos

	// Comment is an optional human-readable annotation (e.g. "closure
	// capture of makeCounter.count") carried over from the cursor's pending
	// comment, spec §4.2 "Cursor".
	Comment string
}

// Operands is the closed set of operand shapes an Operation can carry.
// Exactly the fields relevant to Opcode are meaningful.
type Operands struct {
	Const Value // Literal

	Index int    // LoadVar/StoreVar/LoadScoped/StoreScoped (slot index), ArgumentSlot index for LoadArg
	Name  string // LoadGlobal/StoreGlobal (global name); property names are Literal string constants

	BinOp BinOp // BinaryOp

	ArgCount int // Call: number of explicit arguments (this is always implicit arg 0)

	FunctionID FunctionID // not set by the compiler: a function value's ID travels in Const.FunctionID

	Target      BlockID // Jump
	TrueTarget  BlockID // Branch
	FalseTarget BlockID // Branch
}

// Value is the constant-operand payload of a Literal operation: a small
// mirror of lang/types.Value restricted to what can appear as a literal
// (no heap References — those are built at runtime by ObjectNew/ArrayNew/
// ClosureNew).
type Value struct {
	Kind      ValueKind
	Number    float64
	Str       string
	FunctionID FunctionID
}

type ValueKind uint8

const (
	ValUndefined ValueKind = iota
	ValNull
	ValBoolTrue
	ValBoolFalse
	ValNumber
	ValString
	ValFunction
)

func (v Value) String() string {
	switch v.Kind {
	case ValUndefined:
		return "undefined"
	case ValNull:
		return "null"
	case ValBoolTrue:
		return "true"
	case ValBoolFalse:
		return "false"
	case ValNumber:
		return fmt.Sprintf("%g", v.Number)
	case ValString:
		return fmt.Sprintf("%q", v.Str)
	case ValFunction:
		return fmt.Sprintf("func#%d", v.FunctionID)
	default:
		return "?"
	}
}

// NewUnit creates an empty Unit for one source file.
func NewUnit(filename string) *Unit {
	return &Unit{SourceFilename: filename, Functions: make(map[FunctionID]*Function)}
}

func (u *Unit) newFunction(name string) *Function {
	id := u.nextFunctionID
	u.nextFunctionID++
	fn := &Function{ID: id, Name: name, Blocks: make(map[BlockID]*Block)}
	u.Functions[id] = fn
	return fn
}

func (fn *Function) newBlock() *Block {
	id := fn.nextBlockID
	fn.nextBlockID++
	b := &Block{ID: id}
	fn.Blocks[id] = b
	return b
}
