// Package x86 turns allocated programs into GNU-assembler text for
// System-V AMD64, in scalar or 128-bit packed form. One native instruction
// is selected per IR opcode; neg becomes an xor with the sign-bit pool
// constant and square multiplies a register by itself.
package x86

import (
	"fmt"
	"io"
	"strings"

	"prospero/internal/errors"
	"prospero/internal/ir"
	"prospero/internal/regalloc"
)

// Options selects the emission mode.
type Options struct {
	Vector    bool
	Sink      regalloc.SinkPolicy
	Registers int
}

// Check rejects option combinations the backend does not support. Load
// sinking needs the packed pipeline, so any sink policy without vector mode
// is a configuration error.
func (o Options) Check() error {
	if o.Sink != regalloc.SinkNone && !o.Vector {
		return errors.Config("--sink-loads %s requires --vector yes", o.Sink)
	}
	return nil
}

// Emit compiles a memoized bundle into the x, y, and xy functions plus the
// shared constant pool and size symbols.
func Emit(w io.Writer, b *ir.Bundle, opts Options) error {
	if err := opts.Check(); err != nil {
		return err
	}
	e := newEmitter(opts)
	if err := e.function("x", &b.X, ir.StageX); err != nil {
		return err
	}
	if err := e.function("y", &b.Y, ir.StageY); err != nil {
		return err
	}
	if err := e.function("xy", &b.XY, ir.StageXY); err != nil {
		return err
	}
	e.trailer(b.XSize(), b.YSize(), b.XYSize())
	_, err := io.WriteString(w, e.buf.String())
	return err
}

// EmitFull compiles an un-split program: x and y become empty stubs and the
// whole expression runs in xy, reading the coordinates from the two
// single-cell input buffers.
func EmitFull(w io.Writer, p *ir.Program, opts Options) error {
	if err := opts.Check(); err != nil {
		return err
	}
	e := newEmitter(opts)
	e.stub("x")
	e.stub("y")
	if err := e.function("xy", p, ir.StageFull); err != nil {
		return err
	}
	e.trailer(1, 1, 1)
	_, err := io.WriteString(w, e.buf.String())
	return err
}

type emitter struct {
	opts Options
	buf  strings.Builder
	pool constPool
}

func newEmitter(opts Options) *emitter {
	e := &emitter{opts: opts}
	e.pool.index = make(map[uint32]int)
	e.buf.WriteString("\t.text\n")
	return e
}

// stride is the SIMD lane count.
func (e *emitter) stride() int {
	if e.opts.Vector {
		return 4
	}
	return 1
}

// cell is the byte width of one buffer cell.
func (e *emitter) cell() int { return 4 * e.stride() }

func (e *emitter) stub(name string) {
	fmt.Fprintf(&e.buf, "\t.globl %s\n%s:\n\tret\n", name, name)
}

func (e *emitter) function(name string, p *ir.Program, stage ir.Stage) error {
	alloc, err := regalloc.Run(p, stage, regalloc.Config{
		Registers: e.opts.Registers,
		Sink:      e.opts.Sink,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(&e.buf, "\t.globl %s\n%s:\n", name, name)

	// The frame keeps %rsp 16-byte aligned so packed spill accesses can use
	// aligned moves (entry %rsp is 8 mod 16 after the call pushed the
	// return address).
	frame := 0
	if alloc.FrameSlots > 0 {
		frame = (alloc.FrameSlots*e.cell()+15)&^15 + 8
		fmt.Fprintf(&e.buf, "\tsubq $%d, %%rsp\n", frame)
	}

	for _, step := range alloc.Steps {
		e.step(stage, step)
	}

	if frame > 0 {
		fmt.Fprintf(&e.buf, "\taddq $%d, %%rsp\n", frame)
	}
	e.buf.WriteString("\tret\n")
	return nil
}

func (e *emitter) step(stage ir.Stage, step regalloc.Step) {
	switch step.Kind {
	case regalloc.StepLoad:
		fmt.Fprintf(&e.buf, "\t%s %s, %s\n", e.mov(), e.operand(stage, step.Src), e.reg(step.Dst))
	case regalloc.StepStore:
		fmt.Fprintf(&e.buf, "\t%s %s, %s\n", e.mov(), e.reg(step.Dst), e.mem(stage, step.Mem))
	case regalloc.StepOp:
		fmt.Fprintf(&e.buf, "\t%s %s, %s\n", e.mnemonic(step.Op), e.operand(stage, step.Src), e.reg(step.Dst))
	}
}

func (e *emitter) mov() string {
	if e.opts.Vector {
		return "movaps"
	}
	return "movss"
}

func (e *emitter) mnemonic(op ir.Op) string {
	suffix := "ss"
	if e.opts.Vector {
		suffix = "ps"
	}
	switch op {
	case ir.OpAdd:
		return "add" + suffix
	case ir.OpSub:
		return "sub" + suffix
	case ir.OpMul, ir.OpSquare:
		return "mul" + suffix
	case ir.OpMin:
		return "min" + suffix
	case ir.OpMax:
		return "max" + suffix
	case ir.OpSqrt:
		return "sqrt" + suffix
	case ir.OpNeg:
		// xorps works in both modes; only the pool operand width differs.
		return "xorps"
	default:
		panic(errors.Internal("opcode %s has no selection", op))
	}
}

func (e *emitter) reg(r regalloc.Reg) string {
	return fmt.Sprintf("%%xmm%d", r)
}

func (e *emitter) operand(stage ir.Stage, op regalloc.Operand) string {
	if !op.InMemory() {
		return e.reg(op.Reg)
	}
	return e.mem(stage, op.Mem)
}

func (e *emitter) mem(stage ir.Stage, m regalloc.MemLoc) string {
	if m.Bank == regalloc.BankConst {
		return fmt.Sprintf("%s(%%rip)", e.pool.label(m.Index))
	}
	base := baseReg(stage, m.Bank)
	off := int(m.Index) * e.cell()
	if off == 0 {
		return fmt.Sprintf("(%%%s)", base)
	}
	return fmt.Sprintf("%d(%%%s)", off, base)
}

// baseReg maps a bank to its System-V argument register. x(out) takes its
// buffer in %rdi; y(scratch, out) keeps its buffer in %rsi so the same base
// serves y and xy; xy(x_in, y_in, out) uses %rdi, %rsi, %rdx.
func baseReg(stage ir.Stage, bank regalloc.Bank) string {
	switch bank {
	case regalloc.BankXBuf:
		return "rdi"
	case regalloc.BankYBuf:
		return "rsi"
	case regalloc.BankOut:
		return "rdx"
	case regalloc.BankFrame:
		return "rsp"
	}
	panic(errors.Internal("bank %d has no base register in %s stage", bank, stage))
}

// trailer emits the constant pool and the exported size symbols.
func (e *emitter) trailer(xSize, ySize, xySize int) {
	e.buf.WriteString("\t.section .rodata\n")
	for i, bits := range e.pool.order {
		fmt.Fprintf(&e.buf, "\t.p2align 4\n.LC%d:\n", i)
		if e.opts.Vector {
			for lane := 0; lane < 4; lane++ {
				fmt.Fprintf(&e.buf, "\t.long 0x%08x\n", bits)
			}
		} else {
			// Padded to a full 16 bytes: xorps reads a whole aligned
			// 128-bit operand even in scalar mode.
			fmt.Fprintf(&e.buf, "\t.long 0x%08x\n\t.zero 12\n", bits)
		}
	}
	e.symbol("x_size", xSize)
	e.symbol("y_size", ySize)
	e.symbol("xy_size", xySize)
	e.symbol("stride", e.stride())
}

func (e *emitter) symbol(name string, value int) {
	fmt.Fprintf(&e.buf, "\t.globl %s\n%s:\n\t.short %d\n", name, name, value)
}

// constPool deduplicates f32 bit patterns and hands out labels in first-use
// order, shared across the three functions.
type constPool struct {
	order []uint32
	index map[uint32]int
}

func (p *constPool) label(bits uint32) string {
	i, ok := p.index[bits]
	if !ok {
		i = len(p.order)
		p.order = append(p.order, bits)
		p.index[bits] = i
	}
	return fmt.Sprintf(".LC%d", i)
}
