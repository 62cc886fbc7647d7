package grammar

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"prospero/internal/ir"
)

// Fprint writes a program in the line-oriented text format. The output is
// byte-stable and re-parseable, so passes compose over pipes.
func Fprint(w io.Writer, p *ir.Program) error {
	for v, inst := range p.Insts {
		if err := printInst(w, v, inst); err != nil {
			return err
		}
	}
	return nil
}

// FprintBundle writes a memoized bundle as three marked sections.
func FprintBundle(w io.Writer, b *ir.Bundle) error {
	stages := []struct {
		name string
		p    *ir.Program
	}{{"x", &b.X}, {"y", &b.Y}, {"xy", &b.XY}}
	for _, stage := range stages {
		if _, err := fmt.Fprintf(w, "== %s\n", stage.name); err != nil {
			return err
		}
		if err := Fprint(w, stage.p); err != nil {
			return err
		}
	}
	return nil
}

// Print renders a program to a string.
func Print(p *ir.Program) string {
	var sb strings.Builder
	Fprint(&sb, p)
	return sb.String()
}

// PrintBundle renders a bundle to a string.
func PrintBundle(b *ir.Bundle) string {
	var sb strings.Builder
	FprintBundle(&sb, b)
	return sb.String()
}

func printInst(w io.Writer, v int, inst ir.Inst) error {
	var err error
	switch inst.Op {
	case ir.OpConst:
		_, err = fmt.Fprintf(w, "%d %s %s\n", v, inst.Op, FormatConst(inst.ConstValue()))
	case ir.OpLoadX, ir.OpLoadY:
		_, err = fmt.Fprintf(w, "%d %s %d\n", v, inst.Op, inst.Slot())
	case ir.OpStore:
		_, err = fmt.Fprintf(w, "%d %s %d %d\n", v, inst.Op, inst.Slot(), inst.A)
	default:
		switch inst.Op.Arity() {
		case 0:
			_, err = fmt.Fprintf(w, "%d %s\n", v, inst.Op)
		case 1:
			_, err = fmt.Fprintf(w, "%d %s %d\n", v, inst.Op, inst.A)
		default:
			_, err = fmt.Fprintf(w, "%d %s %d %d\n", v, inst.Op, inst.A, inst.B)
		}
	}
	return err
}

// FormatConst renders a float constant in the shortest decimal form that
// round-trips at 32-bit precision. The IEEE specials use the spellings the
// lexer accepts.
func FormatConst(f float32) string {
	f64 := float64(f)
	switch {
	case math.IsNaN(f64):
		return "nan"
	case math.IsInf(f64, 1):
		return "inf"
	case math.IsInf(f64, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f64, 'g', -1, 32)
}
