// Package render rasterizes a compiled shape over a square grid and writes
// the result as a PBM image, mirroring the protocol the native driver uses:
// per-column x stages, per-row y stages, and the combining stage per pixel.
package render

import (
	"fmt"
	"io"

	"prospero/internal/interp"
	"prospero/internal/ir"
)

// Image is a packed 1-bit raster, row-major, MSB first within each byte.
type Image struct {
	Size int
	Bits []byte
}

// rowBytes is the packed width of one row.
func (img *Image) rowBytes() int { return (img.Size + 7) / 8 }

// Set marks pixel (col, row).
func (img *Image) Set(col, row int) {
	img.Bits[row*img.rowBytes()+col/8] |= 0x80 >> (uint(col) % 8)
}

// At reports pixel (col, row).
func (img *Image) At(col, row int) bool {
	return img.Bits[row*img.rowBytes()+col/8]&(0x80>>(uint(col)%8)) != 0
}

// Render evaluates a memoized bundle on a size×size grid. A pixel is set
// when the shape function is nonnegative at its sample point. Column x
// stages run once each and are reused for every row, which is the point of
// the memoized split.
func Render(b *ir.Bundle, size int) (*Image, error) {
	if size < 2 {
		return nil, fmt.Errorf("image size must be at least 2, got %d", size)
	}
	img := &Image{Size: size}
	img.Bits = make([]byte, img.rowBytes()*size)

	xBufs := make([][]float32, size)
	for col := 0; col < size; col++ {
		buf := make([]float32, b.XSize())
		buf[0] = coord(col, size)
		if err := interp.Run(&b.X, ir.StageX, buf, nil, nil); err != nil {
			return nil, err
		}
		xBufs[col] = buf
	}

	yBuf := make([]float32, b.YSize())
	out := make([]float32, b.XYSize())
	for row := 0; row < size; row++ {
		for i := range yBuf {
			yBuf[i] = 0
		}
		yBuf[0] = -coord(row, size)
		if err := interp.Run(&b.Y, ir.StageY, nil, yBuf, nil); err != nil {
			return nil, err
		}
		for col := 0; col < size; col++ {
			if err := interp.Run(&b.XY, ir.StageXY, xBufs[col], yBuf, out); err != nil {
				return nil, err
			}
			if out[0] >= 0 {
				img.Set(col, row)
			}
		}
	}
	return img, nil
}

// coord maps a pixel index to [-1, 1].
func coord(i, size int) float32 {
	return float32(i)*2/float32(size-1) - 1
}

// WritePBM writes the image in binary PBM (P4) form.
func WritePBM(w io.Writer, img *Image) error {
	if _, err := fmt.Fprintf(w, "P4\n%d %d\n", img.Size, img.Size); err != nil {
		return err
	}
	_, err := w.Write(img.Bits)
	return err
}
