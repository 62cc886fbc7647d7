package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prospero/grammar"
	"prospero/internal/ir"
	"prospero/internal/passes"
)

// discBundle compiles 0.25 − (x² + y²): positive inside a disc of radius
// one half centered on the origin.
func discBundle(t *testing.T) *ir.Bundle {
	t.Helper()
	source := `0 var-x
1 var-y
2 square 0
3 square 1
4 add 2 3
5 const 0.25
6 sub 5 4
`
	result, errs := grammar.ParseSource("disc.vm", source)
	require.Empty(t, errs)
	b, err := passes.Split(*result.Program)
	require.NoError(t, err)
	return &b
}

func TestRenderDisc(t *testing.T) {
	img, err := Render(discBundle(t), 16)
	require.NoError(t, err)

	center := 7 // coord(7,16) ≈ -0.07, well inside
	assert.True(t, img.At(center, center))
	assert.False(t, img.At(0, 0), "corners are outside the disc")
	assert.False(t, img.At(15, 15))
	assert.False(t, img.At(0, 15))
	assert.False(t, img.At(15, 0))
}

func TestRenderSymmetry(t *testing.T) {
	img, err := Render(discBundle(t), 32)
	require.NoError(t, err)

	// The disc is symmetric in both axes; the sample grid is too.
	for row := 0; row < 32; row++ {
		for col := 0; col < 32; col++ {
			assert.Equal(t, img.At(col, row), img.At(31-col, row), "mirror in x")
			assert.Equal(t, img.At(col, row), img.At(col, 31-row), "mirror in y")
		}
	}
}

func TestRenderHalfPlane(t *testing.T) {
	// y alone: nonnegative in the upper half of the image, where the y
	// coordinate flip puts positive y.
	source := `0 var-y
`
	result, errs := grammar.ParseSource("half.vm", source)
	require.Empty(t, errs)
	b, err := passes.Split(*result.Program)
	require.NoError(t, err)

	img, err := Render(&b, 8)
	require.NoError(t, err)

	assert.True(t, img.At(0, 0), "top row maps to y = +1")
	assert.True(t, img.At(7, 0))
	assert.False(t, img.At(0, 7), "bottom row maps to y = -1")
}

func TestWritePBM(t *testing.T) {
	img, err := Render(discBundle(t), 8)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePBM(&buf, img))

	data := buf.Bytes()
	assert.True(t, bytes.HasPrefix(data, []byte("P4\n8 8\n")))
	assert.Equal(t, len("P4\n8 8\n")+8, len(data), "one packed byte per row")
}

func TestRenderRejectsTinySizes(t *testing.T) {
	_, err := Render(discBundle(t), 1)
	assert.Error(t, err)
}
