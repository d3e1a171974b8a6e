package texture_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/eak1mov/go-mapprep/internal/rastertest"
	"github.com/eak1mov/go-mapprep/raster"
	"github.com/eak1mov/go-mapprep/texture"
	"github.com/google/go-cmp/cmp"
)

type multiDecoder []texture.Texture

func (m multiDecoder) Decode(io.Reader) ([]texture.Texture, error) {
	return m, nil
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	return buffer.Bytes()
}

func TestImageDecoder(t *testing.T) {
	b := rastertest.Gradient(6, 4)
	rastertest.Set(b, 0, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 4})
	data := encodePNG(t, b.NRGBA())

	tex, err := texture.First(texture.ImageDecoder{}, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("First failed: %v", err)
	}
	if got, want := tex.Dimensions(), (raster.Dimensions{Width: 6, Height: 4}); got != want {
		t.Errorf("Dimensions() = %v, want = %v", got, want)
	}
	if diff := cmp.Diff(b.Pix(), tex.Pix); diff != "" {
		t.Errorf("pixel mismatch (-want+got):\n%v", diff)
	}

	dims, err := texture.Dimensions(texture.ImageDecoder{}, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Dimensions failed: %v", err)
	}
	if got, want := dims, (raster.Dimensions{Width: 6, Height: 4}); got != want {
		t.Errorf("Dimensions() = %v, want = %v", got, want)
	}
}

func TestImageDecoderConvertsPalette(t *testing.T) {
	palette := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.NRGBA{R: 9, A: 255}})
	data := encodePNG(t, palette)

	tex, err := texture.First(texture.ImageDecoder{}, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("First failed: %v", err)
	}
	if got, want := tex.Pix[:4], []byte{9, 0, 0, 255}; !cmp.Equal(got, want) {
		t.Errorf("Pix[:4] = %v, want = %v", got, want)
	}
}

func TestNth(t *testing.T) {
	d := multiDecoder{
		{Width: 1, Height: 1, Pix: []byte{1, 1, 1, 1}},
		{Width: 2, Height: 1, Pix: make([]byte, 8)},
	}
	tex, err := texture.Nth(d, nil, 1)
	if err != nil {
		t.Fatalf("Nth failed: %v", err)
	}
	if got, want := tex.Width, uint32(2); got != want {
		t.Errorf("Width = %v, want = %v", got, want)
	}
	if _, err := texture.Nth(d, nil, 2); !errors.Is(err, texture.ErrNoTextures) {
		t.Errorf("Nth(2) error = %v, want ErrNoTextures", err)
	}
	if _, err := texture.First(multiDecoder{}, nil); !errors.Is(err, texture.ErrNoTextures) {
		t.Errorf("First(empty) error = %v, want ErrNoTextures", err)
	}

	dims, err := texture.Dimensions(d, nil)
	if err != nil {
		t.Fatalf("Dimensions failed: %v", err)
	}
	if got, want := dims, (raster.Dimensions{Width: 1, Height: 1}); got != want {
		t.Errorf("Dimensions() = %v, want = %v", got, want)
	}
}

func TestExpect(t *testing.T) {
	tex := texture.Texture{Width: 2, Height: 2, Pix: make([]byte, 16)}
	if _, err := texture.Expect(tex, raster.Dimensions{Width: 2, Height: 2}); err != nil {
		t.Errorf("Expect failed: %v", err)
	}
	if _, err := texture.Expect(tex, raster.Dimensions{Width: 4, Height: 4}); !errors.Is(err, texture.ErrUnexpectedTextureSize) {
		t.Errorf("Expect(4x4) error = %v, want ErrUnexpectedTextureSize", err)
	}

	lying := texture.Texture{Width: 2, Height: 3, Pix: make([]byte, 16)}
	if _, err := lying.Buffer(); !errors.Is(err, raster.ErrMalformedBuffer) {
		t.Errorf("Buffer() error = %v, want ErrMalformedBuffer", err)
	}
}
