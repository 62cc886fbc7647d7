// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"prospero/grammar"
	"prospero/internal/errors"
	"prospero/internal/interp"
	"prospero/internal/ir"
	"prospero/internal/passes"
	"prospero/internal/regalloc"
	"prospero/internal/render"
	"prospero/internal/x86"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "prospero",
		Short:         "prospero — compile 2D implicit-shape expressions to fast native code",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		printCmd(),
		interpCmd(),
		passCmd("simplify", "Normalize negations, canonicalize operands, and coalesce duplicates", passes.Simplify{}),
		passCmd("reassociate", "Regroup commutative chains by variable dependence", passes.Reassociate{}),
		passCmd("reorder", "Restore definition-before-use ordering", passes.Reorder{}),
		memoizeCmd(),
		x86Cmd(),
		renderCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %s", err))
		os.Exit(1)
	}
}

// input is one parsed IR source: a plain program or a memoized bundle.
type input struct {
	name   string
	result grammar.Result
}

// readInput parses the file argument, or stdin for "-" or no argument.
// Diagnostics are rendered to stderr with source context.
func readInput(args []string) (*input, error) {
	name := "-"
	if len(args) > 0 {
		name = args[0]
	}

	var source []byte
	var err error
	if name == "-" {
		name = "<stdin>"
		source, err = io.ReadAll(os.Stdin)
	} else {
		source, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, err
	}

	result, cerrs := grammar.ParseSource(name, string(source))
	if len(cerrs) > 0 {
		reporter := errors.NewReporter(name, string(source))
		fmt.Fprint(os.Stderr, reporter.FormatAll(cerrs))
		return nil, fmt.Errorf("%d error(s) in %s", len(cerrs), name)
	}
	return &input{name: name, result: result}, nil
}

func (in *input) program() (*ir.Program, error) {
	if in.result.Program == nil {
		return nil, fmt.Errorf("%s is a memoized bundle; expected a plain program", in.name)
	}
	return in.result.Program, nil
}

func printCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print [file]",
		Short: "Parse and reprint a program or bundle",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(args)
			if err != nil {
				return err
			}
			if in.result.Bundle != nil {
				return grammar.FprintBundle(os.Stdout, in.result.Bundle)
			}
			return grammar.Fprint(os.Stdout, in.result.Program)
		},
	}
}

func interpCmd() *cobra.Command {
	var x, y float32

	cmd := &cobra.Command{
		Use:   "interp [file]",
		Short: "Evaluate a program or bundle at one point",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(args)
			if err != nil {
				return err
			}
			var result float32
			if in.result.Bundle != nil {
				result, err = interp.EvalBundle(in.result.Bundle, x, y)
			} else {
				result, err = interp.Eval(in.result.Program, x, y)
			}
			if err != nil {
				return err
			}
			fmt.Println(grammar.FormatConst(result))
			return nil
		},
	}
	cmd.Flags().Float32Var(&x, "x", 0, "x coordinate")
	cmd.Flags().Float32Var(&y, "y", 0, "y coordinate")
	return cmd
}

func passCmd(name, short string, pass passes.Pass) *cobra.Command {
	return &cobra.Command{
		Use:   name + " [file]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(args)
			if err != nil {
				return err
			}
			p, err := in.program()
			if err != nil {
				return err
			}
			out, err := pass.Apply(*p)
			if err != nil {
				return err
			}
			return grammar.Fprint(os.Stdout, &out)
		},
	}
}

func memoizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "memoize [file]",
		Short: "Split a program into x, y, and xy stages",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(args)
			if err != nil {
				return err
			}
			p, err := in.program()
			if err != nil {
				return err
			}
			bundle, err := passes.Split(*p)
			if err != nil {
				return err
			}
			return grammar.FprintBundle(os.Stdout, &bundle)
		},
	}
}

func x86Cmd() *cobra.Command {
	var memoize, vector, sinkLoads string

	cmd := &cobra.Command{
		Use:   "x86 [file]",
		Short: "Compile to x86-64 System-V assembly",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doMemoize, err := yesNo("memoize", memoize)
			if err != nil {
				return err
			}
			doVector, err := yesNo("vector", vector)
			if err != nil {
				return err
			}
			sink, ok := regalloc.ParseSinkPolicy(sinkLoads)
			if !ok {
				return errors.Config("unknown --sink-loads value %q (want one of %v)",
					sinkLoads, regalloc.SinkPolicyNames())
			}
			opts := x86.Options{Vector: doVector, Sink: sink}

			in, err := readInput(args)
			if err != nil {
				return err
			}

			if in.result.Bundle != nil {
				if !doMemoize {
					return errors.Config("input is already memoized; --memoize no only accepts a plain program")
				}
				return x86.Emit(os.Stdout, in.result.Bundle, opts)
			}

			p, err := passes.Optimize(*in.result.Program)
			if err != nil {
				return err
			}
			if !doMemoize {
				return x86.EmitFull(os.Stdout, &p, opts)
			}
			bundle, err := passes.Split(p)
			if err != nil {
				return err
			}
			return x86.Emit(os.Stdout, &bundle, opts)
		},
	}
	cmd.Flags().StringVar(&memoize, "memoize", "yes", "split into x/y/xy stages (yes, no)")
	cmd.Flags().StringVar(&vector, "vector", "no", "emit 4-lane packed SIMD (yes, no)")
	cmd.Flags().StringVar(&sinkLoads, "sink-loads", "none", "memory-operand folding policy (none, all, prefer-dead, require-dead, spill-any)")
	return cmd
}

func renderCmd() *cobra.Command {
	var size int
	var output string

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Rasterize a program to a PBM image",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(args)
			if err != nil {
				return err
			}

			bundle := in.result.Bundle
			if bundle == nil {
				p, err := passes.Optimize(*in.result.Program)
				if err != nil {
					return err
				}
				b, err := passes.Split(p)
				if err != nil {
					return err
				}
				bundle = &b
			}

			img, err := render.Render(bundle, size)
			if err != nil {
				return err
			}

			w := os.Stdout
			if output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return render.WritePBM(w, img)
		},
	}
	cmd.Flags().IntVar(&size, "size", 512, "image width and height in pixels")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output path (- for stdout)")
	return cmd
}

func yesNo(flag, value string) (bool, error) {
	switch value {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}
	return false, errors.Config("--%s wants yes or no, got %q", flag, value)
}
