// Package texture defines the boundary to texture container decoders.
//
// Container formats are decoded outside of this module; a Decoder only has to
// hand back raw RGBA8 pixels with their declared dimensions.
package texture

import (
	"errors"
	"fmt"
	"io"

	"github.com/eak1mov/go-mapprep/raster"
)

var (
	ErrNoTextures            = errors.New("mapprep: container has no textures")
	ErrUnexpectedTextureSize = errors.New("mapprep: unexpected texture size")
)

// Texture is one decoded image of a texture container.
type Texture struct {
	Width  uint32
	Height uint32
	Pix    []byte // RGBA8, straight alpha
}

func (t Texture) Dimensions() raster.Dimensions {
	return raster.Dimensions{Width: t.Width, Height: t.Height}
}

// Buffer wraps the texture pixels. The texture must not be used afterwards.
func (t Texture) Buffer() (*raster.Buffer, error) {
	b, err := raster.FromBytes(t.Width, t.Pix)
	if err != nil {
		return nil, err
	}
	if b.Height() != t.Height {
		return nil, fmt.Errorf("%w: declared %v, decoded %v", raster.ErrMalformedBuffer, t.Dimensions(), b.Dimensions())
	}
	return b, nil
}

// Decoder decodes every texture of a container.
type Decoder interface {
	Decode(r io.Reader) ([]Texture, error)
}

// ConfigDecoder is implemented by decoders that can read the dimensions of the
// first texture without decoding pixels.
type ConfigDecoder interface {
	DecodeConfig(r io.Reader) (raster.Dimensions, error)
}

// Nth decodes the container and returns the texture at index.
func Nth(d Decoder, r io.Reader, index int) (Texture, error) {
	textures, err := d.Decode(r)
	if err != nil {
		return Texture{}, err
	}
	if index < 0 || index >= len(textures) {
		if len(textures) == 0 {
			return Texture{}, ErrNoTextures
		}
		return Texture{}, fmt.Errorf("%w: texture %d of %d", ErrNoTextures, index, len(textures))
	}
	return textures[index], nil
}

// First decodes the container and returns its first texture.
func First(d Decoder, r io.Reader) (Texture, error) {
	return Nth(d, r, 0)
}

// Dimensions returns the size of the first texture, avoiding a full decode
// when the decoder supports it.
func Dimensions(d Decoder, r io.Reader) (raster.Dimensions, error) {
	if cd, ok := d.(ConfigDecoder); ok {
		return cd.DecodeConfig(r)
	}
	t, err := First(d, r)
	if err != nil {
		return raster.Dimensions{}, err
	}
	return t.Dimensions(), nil
}

// Expect checks the texture against the expected size and wraps it in a buffer.
func Expect(t Texture, want raster.Dimensions) (*raster.Buffer, error) {
	if got := t.Dimensions(); got != want {
		return nil, fmt.Errorf("%w: expected %v, got %v", ErrUnexpectedTextureSize, want, got)
	}
	return t.Buffer()
}
