package raster

import "fmt"

// ScaleDown shrinks the buffer by integer factors using a box filter.
//
// Each output pixel is the average of the corresponding scaleX×scaleY block.
// Pixels with alpha 0 are left out of both the sum and the divisor, so
// transparent padding does not darken partially covered edges. A block with
// no visible pixels stays transparent black.
//
// When the dimensions are not multiples of the factors, the output is rounded
// up and the last row/column of blocks averages only the pixels that exist.
func (b *Buffer) ScaleDown(scaleX, scaleY uint32) (*Buffer, error) {
	if scaleX == 0 || scaleY == 0 {
		return nil, fmt.Errorf("%w: scale factor %dx%d", ErrInvalidSize, scaleX, scaleY)
	}
	if scaleX == 1 && scaleY == 1 {
		return b.Clone(), nil
	}

	width, height := b.Width(), b.Height()
	newWidth := (width + scaleX - 1) / scaleX
	newHeight := (height + scaleY - 1) / scaleY

	scaled := New(newWidth, newHeight)

	for y := range newHeight {
		y0, y1 := y*scaleY, min((y+1)*scaleY, height)
		for x := range newWidth {
			x0, x1 := x*scaleX, min((x+1)*scaleX, width)

			var r, g, bl, a, count uint64
			for sy := y0; sy < y1; sy++ {
				i := b.offset(x0, sy)
				for sx := x0; sx < x1; sx++ {
					if alpha := b.pix[i+3]; alpha != 0 {
						r += uint64(b.pix[i])
						g += uint64(b.pix[i+1])
						bl += uint64(b.pix[i+2])
						a += uint64(alpha)
						count++
					}
					i += 4
				}
			}

			if count == 0 {
				continue
			}
			o := scaled.offset(x, y)
			scaled.pix[o] = byte(r / count)
			scaled.pix[o+1] = byte(g / count)
			scaled.pix[o+2] = byte(bl / count)
			scaled.pix[o+3] = byte(a / count)
		}
	}

	return scaled, nil
}
