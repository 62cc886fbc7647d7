// Package interp is the reference evaluator. It reproduces the emitted
// code's float semantics exactly: 32-bit IEEE arithmetic in instruction
// order, with minss/maxss operand behavior on NaN (the comparison failing
// selects the second source).
package interp

import (
	"fmt"
	"math"

	"prospero/internal/ir"
)

// Run evaluates one stage program against its buffers. The x and y buffers
// hold the stage input at index 0 and boundary slot s at index s+1; the xy
// stage writes its result to out[0].
func Run(p *ir.Program, stage ir.Stage, xbuf, ybuf, out []float32) error {
	vals := make([]float32, p.Len())

	for v, inst := range p.Insts {
		var r float32
		switch inst.Op {
		case ir.OpVarX:
			r = xbuf[0]
		case ir.OpVarY:
			r = ybuf[0]
		case ir.OpConst:
			r = inst.ConstValue()
		case ir.OpLoadX:
			r = xbuf[inst.Slot()+1]
		case ir.OpLoadY:
			r = ybuf[inst.Slot()+1]
		case ir.OpStore:
			switch stage {
			case ir.StageX:
				xbuf[inst.Slot()+1] = vals[inst.A]
			case ir.StageY:
				ybuf[inst.Slot()+1] = vals[inst.A]
			default:
				out[inst.Slot()] = vals[inst.A]
			}
			continue
		case ir.OpNeg:
			r = -vals[inst.A]
		case ir.OpSqrt:
			r = float32(math.Sqrt(float64(vals[inst.A])))
		case ir.OpSquare:
			a := vals[inst.A]
			r = a * a
		case ir.OpAdd:
			r = vals[inst.A] + vals[inst.B]
		case ir.OpSub:
			r = vals[inst.A] - vals[inst.B]
		case ir.OpMul:
			r = vals[inst.A] * vals[inst.B]
		case ir.OpMin:
			r = minSS(vals[inst.A], vals[inst.B])
		case ir.OpMax:
			r = maxSS(vals[inst.A], vals[inst.B])
		default:
			return fmt.Errorf("value %d: unknown opcode", v)
		}
		vals[v] = r
	}

	if stage == ir.StageXY || stage == ir.StageFull {
		if r := p.Result(); r != ir.None {
			out[0] = vals[r]
		}
	}
	return nil
}

// Eval evaluates a plain (un-memoized) program at one point. Buffers are
// sized for any stray loads or stores, which read as zero, so a program
// fragment piped in standalone still evaluates instead of faulting.
func Eval(p *ir.Program, x, y float32) (float32, error) {
	xbuf := make([]float32, p.MaxSlot(ir.OpLoadX)+2)
	ybuf := make([]float32, p.MaxSlot(ir.OpLoadY)+2)
	out := make([]float32, p.MaxSlot(ir.OpStore)+2)
	xbuf[0] = x
	ybuf[0] = y
	if err := Run(p, ir.StageFull, xbuf, ybuf, out); err != nil {
		return 0, err
	}
	return out[0], nil
}

// EvalBundle evaluates a memoized bundle at one point under the harness
// protocol: the x stage, then the y stage, then the combining stage over the
// boundary buffers they filled.
func EvalBundle(b *ir.Bundle, x, y float32) (float32, error) {
	xbuf := make([]float32, maxInt(b.XSize(), b.XY.MaxSlot(ir.OpLoadX)+2))
	ybuf := make([]float32, maxInt(b.YSize(), b.XY.MaxSlot(ir.OpLoadY)+2))
	out := make([]float32, b.XYSize())
	xbuf[0] = x
	ybuf[0] = y
	if err := Run(&b.X, ir.StageX, xbuf, nil, nil); err != nil {
		return 0, err
	}
	if err := Run(&b.Y, ir.StageY, nil, ybuf, nil); err != nil {
		return 0, err
	}
	if err := Run(&b.XY, ir.StageXY, xbuf, ybuf, out); err != nil {
		return 0, err
	}
	return out[0], nil
}

// minSS matches the x86 minss instruction: the first operand survives only
// when it compares strictly less than the second.
func minSS(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

// maxSS matches maxss symmetrically.
func maxSS(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
