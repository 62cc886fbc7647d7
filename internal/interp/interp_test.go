package interp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prospero/grammar"
	"prospero/internal/ir"
)

func parseProgram(t *testing.T, source string) *ir.Program {
	t.Helper()
	result, errs := grammar.ParseSource("test.vm", source)
	require.Empty(t, errs)
	require.NotNil(t, result.Program)
	return result.Program
}

func TestEvalArithmetic(t *testing.T) {
	p := parseProgram(t, `0 var-x
1 var-y
2 mul 0 1
3 add 2 1
4 sub 3 0
5 neg 4
6 square 5
`)
	got, err := Eval(p, 3, 5)
	require.NoError(t, err)
	// ((3·5 + 5) − 3)² = 17² = 289
	assert.Equal(t, float32(289), got)
}

func TestEvalSqrt(t *testing.T) {
	p := parseProgram(t, `0 var-x
1 sqrt 0
`)
	got, err := Eval(p, 9, 0)
	require.NoError(t, err)
	assert.Equal(t, float32(3), got)

	got, err = Eval(p, -1, 0)
	require.NoError(t, err)
	assert.True(t, got != got, "sqrt of a negative is NaN")
}

func TestEvalMinMaxNaNSemantics(t *testing.T) {
	// minss keeps the second source on an unordered compare; the
	// interpreter must match so golden images agree with native output.
	p := parseProgram(t, `0 var-x
1 var-y
2 min 0 1
`)
	nan := float32(math.NaN())

	got, err := Eval(p, nan, 2)
	require.NoError(t, err)
	assert.Equal(t, float32(2), got)

	got, err = Eval(p, 2, nan)
	require.NoError(t, err)
	assert.True(t, got != got)

	q := parseProgram(t, `0 var-x
1 var-y
2 max 0 1
`)
	got, err = Eval(q, nan, 2)
	require.NoError(t, err)
	assert.Equal(t, float32(2), got)
}

func TestEvalFloat32Rounding(t *testing.T) {
	p := parseProgram(t, `0 var-x
1 const 1e-08
2 add 0 1
`)
	// 1 + 1e-8 is exactly 1 in float32.
	got, err := Eval(p, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, float32(1), got)
}

func TestEvalBundleProtocol(t *testing.T) {
	source := `== x
0 var-x
1 square 0
2 store 0 1
== y
0 var-y
1 square 0
2 store 0 1
== xy
0 load-x 0
1 load-y 0
2 add 0 1
`
	result, errs := grammar.ParseSource("test.vm", source)
	require.Empty(t, errs)
	require.NotNil(t, result.Bundle)

	got, err := EvalBundle(result.Bundle, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, float32(25), got)
}

func TestEvalConstantProgram(t *testing.T) {
	p := parseProgram(t, `0 const -0.5
`)
	got, err := Eval(p, 7, 7)
	require.NoError(t, err)
	assert.Equal(t, float32(-0.5), got)
}
