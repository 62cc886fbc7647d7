package grammar

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prospero/internal/errors"
	"prospero/internal/ir"
)

func TestParseBasicProgram(t *testing.T) {
	source := `0 var-x
1 var-y
2 add 0 1
`
	result, errs := ParseSource("test.vm", source)
	require.Empty(t, errs)
	require.NotNil(t, result.Program)

	p := result.Program
	require.Equal(t, 3, p.Len())
	assert.Equal(t, ir.OpVarX, p.Insts[0].Op)
	assert.Equal(t, ir.OpVarY, p.Insts[1].Op)
	assert.Equal(t, ir.OpAdd, p.Insts[2].Op)
	assert.Equal(t, ir.VId(0), p.Insts[2].A)
	assert.Equal(t, ir.VId(1), p.Insts[2].B)
}

func TestParseConstants(t *testing.T) {
	source := `0 const 2.5
1 const -3
2 const 1e-07
3 const inf
4 const -inf
5 const nan
`
	result, errs := ParseSource("test.vm", source)
	require.Empty(t, errs)

	p := result.Program
	assert.Equal(t, float32(2.5), p.Insts[0].ConstValue())
	assert.Equal(t, float32(-3), p.Insts[1].ConstValue())
	assert.Equal(t, float32(1e-07), p.Insts[2].ConstValue())
	assert.True(t, p.Insts[3].ConstValue() > 0 && isInf32(p.Insts[3].ConstValue()))
	assert.True(t, p.Insts[4].ConstValue() < 0 && isInf32(p.Insts[4].ConstValue()))
	assert.True(t, p.Insts[5].ConstValue() != p.Insts[5].ConstValue(), "nan")
}

func isInf32(f float32) bool {
	return f > 3.4e38 || f < -3.4e38
}

func TestParseCommentsAndBlankLines(t *testing.T) {
	source := `# a circle
0 var-x

1 square 0  # x^2
`
	result, errs := ParseSource("test.vm", source)
	require.Empty(t, errs)
	assert.Equal(t, 2, result.Program.Len())
}

func TestParseMissingTrailingNewline(t *testing.T) {
	result, errs := ParseSource("test.vm", "0 var-x")
	require.Empty(t, errs)
	assert.Equal(t, 1, result.Program.Len())
}

func TestParseRejectsUnknownOpcode(t *testing.T) {
	_, errs := ParseSource("test.vm", "0 div 0 0\n")
	require.Len(t, errs, 1)
	assert.Equal(t, errors.ErrorUnknownOpcode, errs[0].Code)
	assert.Equal(t, 1, errs[0].Position.Line)
}

func TestParseRejectsWrongArity(t *testing.T) {
	_, errs := ParseSource("test.vm", "0 var-x\n1 add 0\n")
	require.Len(t, errs, 1)
	assert.Equal(t, errors.ErrorWrongArity, errs[0].Code)
	assert.Equal(t, 2, errs[0].Position.Line)
}

func TestParseRejectsForwardReference(t *testing.T) {
	_, errs := ParseSource("test.vm", "0 neg 1\n1 var-x\n")
	require.NotEmpty(t, errs)
	assert.Equal(t, errors.ErrorForwardReference, errs[0].Code)
}

func TestParseRejectsNonDenseIds(t *testing.T) {
	_, errs := ParseSource("test.vm", "0 var-x\n5 neg 0\n")
	require.NotEmpty(t, errs)
	assert.Equal(t, errors.ErrorNonDenseId, errs[0].Code)
}

func TestParseRejectsStoreReference(t *testing.T) {
	_, errs := ParseSource("test.vm", "0 var-x\n1 store 0 0\n2 neg 1\n")
	require.NotEmpty(t, errs)
	assert.Equal(t, errors.ErrorStoreReference, errs[0].Code)
}

func TestParseBundle(t *testing.T) {
	source := `== x
0 var-x
1 store 0 0
== y
0 var-y
1 store 0 0
== xy
0 load-x 0
1 load-y 0
2 add 0 1
`
	result, errs := ParseSource("test.vm", source)
	require.Empty(t, errs)
	require.NotNil(t, result.Bundle)
	assert.Nil(t, result.Program)

	b := result.Bundle
	assert.NoError(t, b.Validate())
	assert.Equal(t, 2, b.XSize())
	assert.Equal(t, uint32(0), b.XY.Insts[0].Slot())
}

func TestParseBundleRejectsMisorderedSections(t *testing.T) {
	source := `== y
0 var-y
== x
0 var-x
== xy
0 const 1
`
	_, errs := ParseSource("test.vm", source)
	require.NotEmpty(t, errs)
	assert.Equal(t, errors.ErrorBadSection, errs[0].Code)
}

func TestParseBundleRejectsLeadingInstructions(t *testing.T) {
	source := `0 var-x
== x
0 var-x
== y
0 var-y
== xy
0 const 1
`
	_, errs := ParseSource("test.vm", source)
	require.NotEmpty(t, errs)
	assert.Equal(t, errors.ErrorBadSection, errs[0].Code)
}

func TestPrintRoundTrip(t *testing.T) {
	source := `0 var-x
1 var-y
2 const 0.5
3 mul 0 1
4 sub 3 2
5 sqrt 4
6 neg 5
`
	result, errs := ParseSource("test.vm", source)
	require.Empty(t, errs)

	printed := Print(result.Program)
	assert.Equal(t, source, printed)

	again, errs := ParseSource("test.vm", printed)
	require.Empty(t, errs)
	assert.Equal(t, result.Program.Insts, again.Program.Insts)
}

func TestPrintBundleRoundTrip(t *testing.T) {
	source := `== x
0 var-x
1 square 0
2 store 0 1
== y
0 var-y
1 store 0 0
== xy
0 load-x 0
1 load-y 0
2 min 0 1
`
	result, errs := ParseSource("test.vm", source)
	require.Empty(t, errs)
	require.NotNil(t, result.Bundle)

	printed := PrintBundle(result.Bundle)
	assert.Equal(t, source, printed)
}

func TestFormatConstRoundTrips(t *testing.T) {
	values := []float32{0, 1, -1, 0.1, 2.5, 3.4e38, 1.5e-45, -0.125}
	for _, want := range values {
		text := FormatConst(want)
		result, errs := ParseSource("t.vm", "0 const "+text+"\n")
		require.Empty(t, errs, "constant %s", text)
		assert.Equal(t, want, result.Program.Insts[0].ConstValue(), "constant %s", text)
	}
	assert.False(t, strings.ContainsAny(FormatConst(2.5), " \t"))
}
