// Package raster provides an owned RGBA8 pixel buffer with the compositing
// primitives used to build sprite atlases and tile pyramids.
//
// Pixels are stored row-major, 4 bytes per pixel (R, G, B, A) with straight
// (non-premultiplied) alpha. Only the width is stored; the height is always
// derived from the buffer length.
package raster

import (
	"errors"
	"fmt"
	"image"
)

var (
	ErrMalformedBuffer = errors.New("mapprep: malformed pixel buffer")
	ErrInvalidSize     = errors.New("mapprep: invalid size")
	ErrOutOfBounds     = errors.New("mapprep: out of bounds")
)

// Dimensions is a width/height pair in pixels.
type Dimensions struct {
	Width  uint32
	Height uint32
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Buffer is an RGBA8 image. The zero value is not usable; use New or FromBytes.
type Buffer struct {
	width uint32
	pix   []byte
}

// New allocates a fully transparent buffer.
// It panics if width or height is zero.
func New(width, height uint32) *Buffer {
	if width == 0 || height == 0 {
		panic(fmt.Sprintf("mapprep: buffer dimensions must be positive, got %dx%d", width, height))
	}
	return &Buffer{
		width: width,
		pix:   make([]byte, int(width)*int(height)*4),
	}
}

// FromBytes wraps decoded RGBA8 bytes. The buffer takes ownership of pix.
func FromBytes(width uint32, pix []byte) (*Buffer, error) {
	if width == 0 {
		return nil, fmt.Errorf("%w: zero width", ErrMalformedBuffer)
	}
	if len(pix) == 0 {
		return nil, fmt.Errorf("%w: no pixels", ErrMalformedBuffer)
	}
	if len(pix)%4 != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of 4", ErrMalformedBuffer, len(pix))
	}
	if pixelCount := len(pix) / 4; pixelCount%int(width) != 0 {
		return nil, fmt.Errorf("%w: %d pixels is not a multiple of width %d", ErrMalformedBuffer, pixelCount, width)
	}
	return &Buffer{width: width, pix: pix}, nil
}

func (b *Buffer) Width() uint32 {
	return b.width
}

func (b *Buffer) Height() uint32 {
	return uint32(len(b.pix) / 4 / int(b.width))
}

func (b *Buffer) Dimensions() Dimensions {
	return Dimensions{Width: b.Width(), Height: b.Height()}
}

// Pix returns the underlying pixel bytes. The slice is shared with the buffer.
func (b *Buffer) Pix() []byte {
	return b.pix
}

func (b *Buffer) Clone() *Buffer {
	pix := make([]byte, len(b.pix))
	copy(pix, b.pix)
	return &Buffer{width: b.width, pix: pix}
}

// NRGBA returns a view of the buffer as an image.NRGBA sharing the same pixels.
func (b *Buffer) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.pix,
		Stride: int(b.width) * 4,
		Rect:   image.Rect(0, 0, int(b.width), int(b.Height())),
	}
}

func (b *Buffer) offset(x, y uint32) int {
	return (int(y)*int(b.width) + int(x)) * 4
}

// Blit copies src into b with its top-left corner at (x, y). Pixels are
// overwritten, not blended.
func (b *Buffer) Blit(x, y uint32, src *Buffer) error {
	srcWidth, srcHeight := src.Width(), src.Height()
	if uint64(x)+uint64(srcWidth) > uint64(b.width) || uint64(y)+uint64(srcHeight) > uint64(b.Height()) {
		return fmt.Errorf("%w: blit %v at (%d,%d) into %v", ErrOutOfBounds, src.Dimensions(), x, y, b.Dimensions())
	}

	rowLen := int(srcWidth) * 4
	for row := range srcHeight {
		dst := b.offset(x, y+row)
		from := src.offset(0, row)
		copy(b.pix[dst:dst+rowLen], src.pix[from:from+rowLen])
	}
	return nil
}

// CopyChunk copies the rectangle at (x, y) of the given size into a new buffer.
func (b *Buffer) CopyChunk(x, y, width, height uint32) (*Buffer, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: chunk %dx%d", ErrInvalidSize, width, height)
	}
	if uint64(x)+uint64(width) > uint64(b.width) {
		return nil, fmt.Errorf("%w: right edge %d exceeds width %d", ErrOutOfBounds, uint64(x)+uint64(width), b.width)
	}
	if uint64(y)+uint64(height) > uint64(b.Height()) {
		return nil, fmt.Errorf("%w: bottom edge %d exceeds height %d", ErrOutOfBounds, uint64(y)+uint64(height), b.Height())
	}

	chunk := New(width, height)
	rowLen := int(width) * 4
	for row := range height {
		from := b.offset(x, y+row)
		to := chunk.offset(0, row)
		copy(chunk.pix[to:to+rowLen], b.pix[from:from+rowLen])
	}
	return chunk, nil
}
