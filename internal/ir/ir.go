package ir

// The IR is a straight-line SSA program over 32-bit floats. Values are
// numbered densely in definition order; an operand always refers to a
// strictly smaller value id. All storage is flat slices indexed by VId, so
// passes copy and renumber instead of mutating shared nodes.

import (
	"fmt"
	"math"
)

// VId identifies one value within a single program. Ids form the contiguous
// range [0, len(insts)).
type VId int32

// None marks an unused operand field.
const None VId = -1

// Op is the closed set of instruction opcodes.
type Op uint8

const (
	OpVarX Op = iota
	OpVarY
	OpConst
	OpNeg
	OpSqrt
	OpSquare
	OpAdd
	OpSub
	OpMul
	OpMin
	OpMax
	// Memoization boundary opcodes. LoadX/LoadY read a slot of the x or y
	// stage buffer; Store writes a slot of the current stage's output buffer.
	// They appear only in the output of the memoize pass.
	OpLoadX
	OpLoadY
	OpStore
)

var opNames = [...]string{
	OpVarX:   "var-x",
	OpVarY:   "var-y",
	OpConst:  "const",
	OpNeg:    "neg",
	OpSqrt:   "sqrt",
	OpSquare: "square",
	OpAdd:    "add",
	OpSub:    "sub",
	OpMul:    "mul",
	OpMin:    "min",
	OpMax:    "max",
	OpLoadX:  "load-x",
	OpLoadY:  "load-y",
	OpStore:  "store",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// ParseOp maps a textual mnemonic back to its opcode.
func ParseOp(name string) (Op, bool) {
	for op, n := range opNames {
		if n == name {
			return Op(op), true
		}
	}
	return 0, false
}

// Arity reports how many value operands the opcode reads.
func (o Op) Arity() int {
	switch o {
	case OpVarX, OpVarY, OpConst, OpLoadX, OpLoadY:
		return 0
	case OpNeg, OpSqrt, OpSquare, OpStore:
		return 1
	default:
		return 2
	}
}

// Commutative reports whether operand order is semantically irrelevant.
// Every commutative opcode here is also associative, which is what the
// reassociate pass relies on.
func (o Op) Commutative() bool {
	switch o {
	case OpAdd, OpMul, OpMin, OpMax:
		return true
	}
	return false
}

// Inst is one instruction. A and B are the value operands (None when the
// arity does not use them). Bits carries the payload for the nullary data
// opcodes: the IEEE-754 bit pattern for Const, the slot index for
// LoadX/LoadY/Store. For Store, A is the stored source value.
type Inst struct {
	Op   Op
	A, B VId
	Bits uint32
}

// Const builds a constant instruction from a float value.
func Const(f float32) Inst {
	return Inst{Op: OpConst, A: None, B: None, Bits: math.Float32bits(f)}
}

// Unary builds a single-operand instruction.
func Unary(op Op, a VId) Inst {
	return Inst{Op: op, A: a, B: None}
}

// Binary builds a two-operand instruction.
func Binary(op Op, a, b VId) Inst {
	return Inst{Op: op, A: a, B: b}
}

// Load builds a boundary load from the given slot of the x or y buffer.
func Load(op Op, slot uint32) Inst {
	return Inst{Op: op, A: None, B: None, Bits: slot}
}

// Store builds a boundary store of src into the given output slot.
func Store(slot uint32, src VId) Inst {
	return Inst{Op: OpStore, A: src, B: None, Bits: slot}
}

// ConstValue returns the float value of a Const instruction.
func (i Inst) ConstValue() float32 {
	return math.Float32frombits(i.Bits)
}

// Slot returns the slot index of a LoadX/LoadY/Store instruction.
func (i Inst) Slot() uint32 {
	return i.Bits
}
