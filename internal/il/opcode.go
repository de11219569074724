package il

import "fmt"

// Opcode enumerates the stack-machine operations of spec §4.2's lowering
// table. Grounded on the teacher's lang/compiler/opcode.go naming and
// stack-effect-table convention; the concrete set differs completely since
// nenuphar's bytecode has no notion of scoped closures, globals, or a
// module namespace object.
type Opcode uint8

const (
	// stack bookkeeping
	Dup Opcode = iota
	Dup2 // x y Dup2 x y x y, grounded on the teacher's DUP2
	Swap // x y Swap y x, grounded on the teacher's EXCH
	Pop

	// literal + variable accessors (spec §4.2 "Variable accessors")
	Literal
	LoadVar
	StoreVar
	LoadArg
	LoadScoped
	StoreScoped
	LoadGlobal
	StoreGlobal

	// objects/arrays
	ObjectNew
	ArrayNew
	ObjectGet
	ObjectSet

	// arithmetic/comparison, a single opcode parameterized by BinOp
	BinaryOp

	// functions
	ClosureNew
	Call
	Return

	// control flow
	Jump
	Branch
)

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return fmt.Sprintf("illegal opcode (%d)", op)
}

var opcodeNames = [...]string{
	Dup:          "dup",
	Dup2:         "dup2",
	Swap:         "swap",
	Pop:          "pop",
	Literal:      "literal",
	LoadVar:      "loadvar",
	StoreVar:     "storevar",
	LoadArg:      "loadarg",
	LoadScoped:   "loadscoped",
	StoreScoped:  "storescoped",
	LoadGlobal:   "loadglobal",
	StoreGlobal:  "storeglobal",
	ObjectNew:    "objectnew",
	ArrayNew:     "arraynew",
	ObjectGet:    "objectget",
	ObjectSet:    "objectset",
	BinaryOp:     "binop",
	ClosureNew:   "closurenew",
	Call:         "call",
	Return:       "return",
	Jump:         "jump",
	Branch:       "branch",
}

// BinOp is the operator carried by a BinaryOp operation's Operands.BinOp
// field.
type BinOp uint8

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Mod
	DivTrunc // the `(a / b) | 0` integer-truncation idiom, spec §4.2
	BitAnd
	BitOr
	BitXor
	Shl
	Shr
	Lt
	Le
	Gt
	Ge
	StrictEq
	StrictNeq
)

func (op BinOp) String() string {
	switch op {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Mod:
		return "%"
	case DivTrunc:
		return "/|0"
	case BitAnd:
		return "&"
	case BitOr:
		return "|"
	case BitXor:
		return "^"
	case Shl:
		return "<<"
	case Shr:
		return ">>"
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	case StrictEq:
		return "==="
	case StrictNeq:
		return "!=="
	default:
		return fmt.Sprintf("binop?(%d)", op)
	}
}

// variableStackEffect marks an opcode whose effect depends on its operand
// (Call's argument count), computed by cursor.emit instead of the static
// table.
const variableStackEffect = 0x7f

// stackEffect is the static per-opcode stack delta (spec §3 "Invariants":
// stack depth before/after every operation is structurally tracked).
var stackEffect = [...]int{
	Dup:         +1,
	Dup2:        +2,
	Swap:        0,
	Pop:         -1,
	Literal:     +1,
	LoadVar:     +1,
	StoreVar:    0, // writes do not pop; the written value remains (spec §4.2)
	LoadArg:     +1,
	LoadScoped:  +1,
	StoreScoped: 0,
	LoadGlobal:  +1,
	StoreGlobal: 0,
	ObjectNew:   +1,
	ArrayNew:    +1,
	ObjectGet:   -1, // obj, key -> value
	ObjectSet:   -2, // obj, key, value -> value (value remains, net -2)
	BinaryOp:    -1, // a, b -> result
	ClosureNew:  0,  // fn -> closure
	Call:        variableStackEffect,
	Return:      -1,
	Jump:        0,
	Branch:      -1, // cond consumed
}
