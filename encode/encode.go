// Package encode serializes raster buffers to web image formats.
package encode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/chai2010/webp"
	"github.com/eak1mov/go-mapprep/raster"
)

var ErrUnknownFormat = errors.New("mapprep: unknown image format")

// DefaultWebPQuality is the lossy quality used for tiles and atlases.
const DefaultWebPQuality = 75

// Encoder turns an RGBA8 buffer into encoded image bytes.
type Encoder interface {
	Encode(b *raster.Buffer) ([]byte, error)
	// Extension returns the file extension without the leading dot.
	Extension() string
}

// PNG encodes 8-bit RGBA PNG files. Optimize trades encoding time for size.
type PNG struct {
	Optimize bool
}

func (e PNG) Extension() string { return "png" }

func (e PNG) Encode(b *raster.Buffer) ([]byte, error) {
	encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
	if e.Optimize {
		encoder.CompressionLevel = png.BestCompression
	}

	var buffer bytes.Buffer
	// NRGBA keeps the straight alpha bytes as they are.
	if err := encoder.Encode(&buffer, b.NRGBA()); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buffer.Bytes(), nil
}

// WebP encodes WebP files with libwebp.
type WebP struct {
	Quality  float32
	Lossless bool
}

func (e WebP) Extension() string { return "webp" }

func (e WebP) Encode(b *raster.Buffer) ([]byte, error) {
	// libwebp reads the bytes as straight RGBA, so the buffer is handed over
	// as an *image.RGBA without any premultiplication.
	img := &image.RGBA{
		Pix:    b.Pix(),
		Stride: int(b.Width()) * 4,
		Rect:   image.Rect(0, 0, int(b.Width()), int(b.Height())),
	}

	quality := e.Quality
	if quality == 0 {
		quality = DefaultWebPQuality
	}

	var buffer bytes.Buffer
	if err := webp.Encode(&buffer, img, &webp.Options{Lossless: e.Lossless, Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}
	return buffer.Bytes(), nil
}

// ForExtension returns an encoder for a file extension ("png", ".webp", ...).
func ForExtension(ext string, optimizePNG bool) (Encoder, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "png":
		return PNG{Optimize: optimizePNG}, nil
	case "webp":
		return WebP{Quality: DefaultWebPQuality}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
}
