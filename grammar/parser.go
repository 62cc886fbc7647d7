package grammar

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"prospero/internal/errors"
	"prospero/internal/ir"
)

var fileParser = participle.MustBuild[File](
	participle.Lexer(IRLexer),
	participle.Elide("Whitespace", "Comment"),
)

// Result is the outcome of parsing one IR text input: either a plain program
// or a memoized bundle, never both.
type Result struct {
	Program *ir.Program
	Bundle  *ir.Bundle
}

// ParseSource parses and converts IR text. Syntax errors and conversion
// diagnostics are both reported as CompilerErrors; the Result is only
// meaningful when the slice is empty.
func ParseSource(filename, source string) (Result, []errors.CompilerError) {
	if !strings.HasSuffix(source, "\n") {
		source += "\n"
	}
	file, err := fileParser.ParseString(filename, source)
	if err != nil {
		return Result{}, []errors.CompilerError{syntaxError(err)}
	}
	return Convert(file)
}

// ParseFile reads and parses one IR file.
func ParseFile(path string) (Result, []errors.CompilerError) {
	source, err := os.ReadFile(path)
	if err != nil {
		return Result{}, []errors.CompilerError{
			errors.New(errors.ErrorSyntax, fmt.Sprintf("failed to read file: %s", err), errors.Position{}).Build(),
		}
	}
	return ParseSource(path, string(source))
}

// Convert lowers a parsed file into IR, collecting every diagnostic instead
// of stopping at the first.
func Convert(file *File) (Result, []errors.CompilerError) {
	var errs []errors.CompilerError

	if len(file.Sections) == 0 {
		prog, es := convertLines(file.Head)
		errs = append(errs, es...)
		if len(errs) > 0 {
			return Result{}, errs
		}
		return Result{Program: &prog}, nil
	}

	if len(file.Head) > 0 {
		errs = append(errs, errors.New(errors.ErrorBadSection,
			"instructions before the first section marker", linePos(file.Head[0])).
			WithHelp("a bundle starts with \"== x\"").Build())
	}
	wantNames := []string{"x", "y", "xy"}
	if len(file.Sections) != len(wantNames) {
		errs = append(errs, errors.New(errors.ErrorBadSection,
			fmt.Sprintf("expected sections x, y, xy; got %d sections", len(file.Sections)),
			position(file.Sections[0].Pos)).Build())
		return Result{}, errs
	}

	var bundle ir.Bundle
	stages := []*ir.Program{&bundle.X, &bundle.Y, &bundle.XY}
	for i, section := range file.Sections {
		if section.Name != wantNames[i] {
			errs = append(errs, errors.New(errors.ErrorBadSection,
				fmt.Sprintf("expected section %q, found %q", wantNames[i], section.Name),
				position(section.Pos)).Build())
			continue
		}
		prog, es := convertLines(section.Lines)
		errs = append(errs, es...)
		*stages[i] = prog
	}
	if len(errs) > 0 {
		return Result{}, errs
	}
	return Result{Bundle: &bundle}, nil
}

func convertLines(lines []*Line) (ir.Program, []errors.CompilerError) {
	var prog ir.Program
	var errs []errors.CompilerError

	fail := func(code string, pos errors.Position, format string, args ...any) {
		errs = append(errs, errors.New(code, fmt.Sprintf(format, args...), pos).Build())
	}

	for idx, line := range lines {
		if line.ID != idx {
			fail(errors.ErrorNonDenseId, linePos(line),
				"expected value id %d, found %d", idx, line.ID)
		}

		op, ok := ir.ParseOp(line.Op)
		if !ok {
			fail(errors.ErrorUnknownOpcode, linePos(line), "unknown opcode %q", line.Op)
			prog.Push(ir.Const(0)) // placeholder keeps ids dense for later diagnostics
			continue
		}

		want := textArity(op)
		if len(line.Args) != want {
			fail(errors.ErrorWrongArity, linePos(line),
				"%s takes %d argument(s), found %d", op, want, len(line.Args))
			prog.Push(ir.Const(0))
			continue
		}

		inst, es := convertInst(op, line, idx)
		errs = append(errs, es...)
		prog.Push(inst)
	}

	// Checks that need the whole program, like reads of a store's id.
	if len(errs) == 0 {
		for v, inst := range prog.Insts {
			for _, u := range []ir.VId{inst.A, inst.B} {
				if u != ir.None && prog.Insts[u].Op == ir.OpStore {
					errs = append(errs, errors.New(errors.ErrorStoreReference,
						fmt.Sprintf("value %d references store %d, which produces no value", v, u),
						linePos(lines[v])).Build())
				}
			}
		}
	}
	return prog, errs
}

// textArity is the argument count in the text format, where const carries a
// literal, loads carry a slot, and store carries a slot plus a source id.
func textArity(op ir.Op) int {
	switch op {
	case ir.OpConst, ir.OpLoadX, ir.OpLoadY:
		return 1
	case ir.OpStore:
		return 2
	default:
		return op.Arity()
	}
}

func convertInst(op ir.Op, line *Line, id int) (ir.Inst, []errors.CompilerError) {
	var errs []errors.CompilerError

	operand := func(arg *Arg) ir.VId {
		n, err := strconv.Atoi(arg.Value)
		if err != nil {
			errs = append(errs, errors.New(errors.ErrorBadLiteral,
				fmt.Sprintf("%q is not a value id", arg.Value), position(arg.Pos)).Build())
			return 0
		}
		if n < 0 || n >= id {
			errs = append(errs, errors.New(errors.ErrorForwardReference,
				fmt.Sprintf("operand %d does not precede value %d", n, id), position(arg.Pos)).
				WithHelp("operands must reference earlier instructions").Build())
			return 0
		}
		return ir.VId(n)
	}
	slot := func(arg *Arg) uint32 {
		n, err := strconv.Atoi(arg.Value)
		if err != nil || n < 0 {
			errs = append(errs, errors.New(errors.ErrorBadLiteral,
				fmt.Sprintf("%q is not a slot index", arg.Value), position(arg.Pos)).Build())
			return 0
		}
		return uint32(n)
	}

	var inst ir.Inst
	switch op {
	case ir.OpConst:
		f, err := strconv.ParseFloat(strings.TrimPrefix(line.Args[0].Value, "+"), 32)
		if err != nil {
			errs = append(errs, errors.New(errors.ErrorBadLiteral,
				fmt.Sprintf("%q is not a float constant", line.Args[0].Value),
				position(line.Args[0].Pos)).Build())
		}
		inst = ir.Const(float32(f))
	case ir.OpLoadX, ir.OpLoadY:
		inst = ir.Load(op, slot(line.Args[0]))
	case ir.OpStore:
		s := slot(line.Args[0])
		inst = ir.Store(s, operand(line.Args[1]))
	default:
		switch op.Arity() {
		case 0:
			inst = ir.Inst{Op: op, A: ir.None, B: ir.None}
		case 1:
			inst = ir.Unary(op, operand(line.Args[0]))
		default:
			inst = ir.Binary(op, operand(line.Args[0]), operand(line.Args[1]))
		}
	}
	return inst, errs
}

func syntaxError(err error) errors.CompilerError {
	if pe, ok := err.(participle.Error); ok {
		return errors.New(errors.ErrorSyntax, pe.Message(), position(pe.Position())).Build()
	}
	return errors.New(errors.ErrorSyntax, err.Error(), errors.Position{}).Build()
}

func linePos(line *Line) errors.Position { return position(line.Pos) }

func position(pos lexer.Position) errors.Position {
	return errors.Position{Line: pos.Line, Column: pos.Column, Offset: pos.Offset}
}
