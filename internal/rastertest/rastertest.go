// Package rastertest provides buffer constructors shared by tests.
package rastertest

import (
	"image/color"
	"testing"

	"github.com/eak1mov/go-mapprep/raster"
)

// Solid returns a buffer filled with a single colour.
func Solid(width, height uint32, c color.NRGBA) *raster.Buffer {
	b := raster.New(width, height)
	pix := b.Pix()
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = c.R, c.G, c.B, c.A
	}
	return b
}

// Gradient returns an opaque buffer whose pixels encode their own coordinates,
// which makes misplaced copies easy to spot.
func Gradient(width, height uint32) *raster.Buffer {
	b := raster.New(width, height)
	pix := b.Pix()
	for y := range height {
		for x := range width {
			i := (int(y)*int(width) + int(x)) * 4
			pix[i] = byte(x)
			pix[i+1] = byte(y)
			pix[i+2] = byte(x ^ y)
			pix[i+3] = 0xff
		}
	}
	return b
}

// At returns the pixel at (x, y).
func At(t testing.TB, b *raster.Buffer, x, y uint32) color.NRGBA {
	t.Helper()
	if x >= b.Width() || y >= b.Height() {
		t.Fatalf("At(%d, %d) outside of %v", x, y, b.Dimensions())
	}
	i := (int(y)*int(b.Width()) + int(x)) * 4
	pix := b.Pix()
	return color.NRGBA{R: pix[i], G: pix[i+1], B: pix[i+2], A: pix[i+3]}
}

// Set writes the pixel at (x, y).
func Set(b *raster.Buffer, x, y uint32, c color.NRGBA) {
	i := (int(y)*int(b.Width()) + int(x)) * 4
	pix := b.Pix()
	pix[i], pix[i+1], pix[i+2], pix[i+3] = c.R, c.G, c.B, c.A
}

// AllEqual reports whether every pixel of b equals c.
func AllEqual(b *raster.Buffer, c color.NRGBA) bool {
	pix := b.Pix()
	for i := 0; i < len(pix); i += 4 {
		if pix[i] != c.R || pix[i+1] != c.G || pix[i+2] != c.B || pix[i+3] != c.A {
			return false
		}
	}
	return true
}
