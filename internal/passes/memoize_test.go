package passes

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prospero/grammar"
	"prospero/internal/interp"
	"prospero/internal/ir"
)

func applySplit(t *testing.T, source string) ir.Bundle {
	t.Helper()
	b, err := Split(parseProgram(t, source))
	require.NoError(t, err)
	require.NoError(t, b.Validate())
	return b
}

func TestSplitSimpleSum(t *testing.T) {
	b := applySplit(t, `0 var-x
1 var-y
2 add 0 1
`)
	assert.Equal(t, `== x
0 var-x
1 store 0 0
== y
0 var-y
1 store 0 0
== xy
0 load-x 0
1 load-y 0
2 add 0 1
`, grammar.PrintBundle(&b))
	assert.Equal(t, 2, b.XSize())
	assert.Equal(t, 2, b.YSize())
}

func TestSplitKeepsSingleVariableWorkInItsStage(t *testing.T) {
	// x² + y² - r²: the squares happen per column and per row, only the
	// additions cross.
	b := applySplit(t, `0 var-x
1 var-y
2 square 0
3 square 1
4 add 2 3
5 const 0.25
6 sub 4 5
`)
	assert.True(t, b.X.Has(ir.OpSquare), "x stage squares its coordinate")
	assert.True(t, b.Y.Has(ir.OpSquare))
	assert.False(t, b.XY.Has(ir.OpSquare), "no single-variable work in the combining stage")
	assert.True(t, b.XY.Has(ir.OpConst), "constants re-emitted, not memoized")
	assert.False(t, b.X.Has(ir.OpVarY))
	assert.False(t, b.Y.Has(ir.OpVarX))
}

func TestSplitConstantsNotSlotted(t *testing.T) {
	b := applySplit(t, `0 var-x
1 var-y
2 const 3
3 add 0 2
4 add 1 2
5 mul 3 4
`)
	// One slot per variable-dependent boundary value; the constant rides
	// along in whichever stages use it.
	assert.Equal(t, 2, b.XSize())
	assert.Equal(t, 2, b.YSize())
	assert.True(t, b.X.Has(ir.OpConst))
	assert.True(t, b.Y.Has(ir.OpConst))
}

func TestSplitPureXProgram(t *testing.T) {
	b := applySplit(t, `0 var-x
1 square 0
`)
	require.NoError(t, b.Validate())
	assert.Equal(t, 2, b.XSize())
	assert.Equal(t, 1, b.YSize(), "empty y stage still has its input cell")
	require.Equal(t, 1, b.XY.Len())
	assert.Equal(t, ir.OpLoadX, b.XY.Insts[0].Op)
}

func TestSplitPureConstProgram(t *testing.T) {
	b := applySplit(t, `0 const 1.5
`)
	require.Equal(t, 1, b.XY.Len())
	assert.Equal(t, ir.OpConst, b.XY.Insts[0].Op)
	assert.Equal(t, 0, b.X.Len())
	assert.Equal(t, 0, b.Y.Len())
}

func TestSplitKeepsCanonicalOperandOrder(t *testing.T) {
	// Remapping can hand an operand a late stage id even when it had the
	// smaller id in the source: the variable is emitted eagerly while the
	// constant materializes on demand, and in the combining stage a fresh
	// boundary load lands after a cached xy value.
	sources := []string{
		"0 const 2\n1 var-x\n2 add 0 1\n",
		"0 var-x\n1 square 0\n2 var-y\n3 mul 0 2\n4 add 1 3\n",
	}
	for _, source := range sources {
		b := applySplit(t, source)
		for _, stage := range []*ir.Program{&b.X, &b.Y, &b.XY} {
			for v, inst := range stage.Insts {
				if inst.Op.Commutative() {
					assert.LessOrEqual(t, inst.A, inst.B,
						"value %d in %q", v, source)
				}
			}
		}
	}
}

func TestSplitRejectsMemoizedInput(t *testing.T) {
	var p ir.Program
	p.Push(ir.Load(ir.OpLoadX, 0))
	_, err := Split(p)
	assert.Error(t, err)
}

func TestSplitRoundTripMatchesDirectEvaluation(t *testing.T) {
	sources := []string{
		"0 var-x\n1 var-y\n2 add 0 1\n",
		"0 var-x\n1 var-y\n2 square 0\n3 square 1\n4 add 2 3\n5 const 0.25\n6 sub 4 5\n",
		"0 var-x\n1 var-y\n2 mul 0 1\n3 neg 2\n4 min 2 3\n",
		"0 var-x\n1 var-y\n2 const 2\n3 mul 0 2\n4 mul 1 2\n5 sub 3 4\n6 sqrt 5\n",
		"0 const 0.5\n1 var-y\n2 max 0 1\n",
	}
	grid := []float32{-1, -0.5, 0, 0.25, 1}

	for _, source := range sources {
		p := parseProgram(t, source)
		b, err := Split(p)
		require.NoError(t, err)
		require.NoError(t, b.Validate())

		for _, x := range grid {
			for _, y := range grid {
				direct, err := interp.Eval(&p, x, y)
				require.NoError(t, err)
				staged, err := interp.EvalBundle(&b, x, y)
				require.NoError(t, err)
				assertSameFloat(t, direct, staged,
					fmt.Sprintf("%q at (%g, %g)", source, x, y))
			}
		}
	}
}

// assertSameFloat compares bitwise, treating any two NaNs as equal.
func assertSameFloat(t *testing.T, want, got float32, msg string) {
	t.Helper()
	if want != want && got != got {
		return
	}
	assert.Equal(t, want, got, msg)
}

func TestSplitAfterFullPipeline(t *testing.T) {
	p := parseProgram(t, `0 var-x
1 var-y
2 square 0
3 square 1
4 add 2 3
5 sqrt 4
6 const 0.75
7 sub 5 6
8 neg 7
`)
	opt, err := Optimize(p)
	require.NoError(t, err)
	b, err := Split(opt)
	require.NoError(t, err)
	require.NoError(t, b.Validate())

	for _, x := range []float32{-1, 0, 0.5} {
		for _, y := range []float32{-1, 0.25, 1} {
			direct, err := interp.Eval(&p, x, y)
			require.NoError(t, err)
			staged, err := interp.EvalBundle(&b, x, y)
			require.NoError(t, err)
			assertSameFloat(t, direct, staged, fmt.Sprintf("(%g, %g)", x, y))
		}
	}
}
