package texture

import (
	"fmt"
	"image"
	_ "image/png"
	"io"

	"github.com/eak1mov/go-mapprep/raster"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ImageDecoder decodes single-image containers in any format registered with
// the image package (PNG and WebP are always available).
type ImageDecoder struct{}

func (ImageDecoder) Decode(r io.Reader) ([]Texture, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, ErrNoTextures
	}

	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Stride != bounds.Dx()*4 || bounds.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)
	}

	return []Texture{{
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
		Pix:    nrgba.Pix,
	}}, nil
}

func (ImageDecoder) DecodeConfig(r io.Reader) (raster.Dimensions, error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return raster.Dimensions{}, fmt.Errorf("decode image config: %w", err)
	}
	return raster.Dimensions{Width: uint32(cfg.Width), Height: uint32(cfg.Height)}, nil
}
