package regalloc

import "prospero/internal/ir"

// Reg numbers a value register on the target; the emitter maps it to an
// architectural name. NoReg marks an operand that lives in memory instead.
type Reg int8

// NoReg is the absent register.
const NoReg Reg = -1

// Bank names a memory region an operand can address.
type Bank uint8

const (
	// BankXBuf is the x-stage boundary buffer (input at cell 0, stored
	// slot s at cell s+1).
	BankXBuf Bank = iota
	// BankYBuf is the y-stage boundary buffer, laid out like BankXBuf.
	BankYBuf
	// BankOut is the combining stage's output buffer.
	BankOut
	// BankFrame is the per-call spill frame.
	BankFrame
	// BankConst is the read-only constant pool; Index holds the f32 bit
	// pattern rather than a cell number.
	BankConst
)

// MemLoc addresses one value-sized cell of a bank.
type MemLoc struct {
	Bank  Bank
	Index uint32
}

// Operand is a resolved instruction input: a register, or a memory cell
// when Reg is NoReg.
type Operand struct {
	Reg Reg
	Mem MemLoc
}

// RegOperand wraps a register as an operand.
func RegOperand(r Reg) Operand { return Operand{Reg: r} }

// MemOperand wraps a memory cell as an operand.
func MemOperand(m MemLoc) Operand { return Operand{Reg: NoReg, Mem: m} }

// InMemory reports whether the operand addresses memory.
func (o Operand) InMemory() bool { return o.Reg == NoReg }

// StepKind discriminates the machine-level actions an allocation produces.
type StepKind uint8

const (
	// StepOp applies an IR opcode: Dst is the result and, except for sqrt,
	// also the first input; Src is the second input (the operand position
	// that may address memory), or sqrt's only input.
	StepOp StepKind = iota
	// StepLoad moves Src (register or memory) into the Dst register.
	StepLoad
	// StepStore moves the Dst register into the Mem cell.
	StepStore
)

// Step is one action of the compiled function, in forward order.
type Step struct {
	Kind StepKind
	Op   ir.Op
	Dst  Reg
	Src  Operand
	Mem  MemLoc
}

// Allocation is the allocator's output: the forward step list plus the
// spill-frame size in value cells.
type Allocation struct {
	Steps      []Step
	FrameSlots int
}
