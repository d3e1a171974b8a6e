package stitch_test

import (
	"errors"
	"image/color"
	"testing"

	"github.com/eak1mov/go-mapprep/internal/rastertest"
	"github.com/eak1mov/go-mapprep/raster"
	"github.com/eak1mov/go-mapprep/stitch"
	"github.com/google/go-cmp/cmp"
)

func dims(w, h uint32) raster.Dimensions {
	return raster.Dimensions{Width: w, Height: h}
}

func TestPlan(t *testing.T) {
	for _, tc := range []struct {
		Name    string
		Indices []int
		Ref     raster.Dimensions
		Grid    stitch.Grid
		Reason  error
	}{
		{"square", []int{0, 1, 2, 3}, dims(4096, 4096), stitch.Grid{TilesX: 2, TilesY: 2}, nil},
		{"unordered", []int{3, 0, 2, 1}, dims(3900, 4000), stitch.Grid{TilesX: 2, TilesY: 2}, nil},
		{"wide", []int{0, 1, 2, 3, 4, 5}, dims(6144, 4096), stitch.Grid{TilesX: 3, TilesY: 2}, nil},
		{"tall", []int{0, 1, 2, 3, 4, 5}, dims(4096, 6144), stitch.Grid{TilesX: 2, TilesY: 3}, nil},
		{"single", []int{0}, dims(80, 100), stitch.Grid{TilesX: 1, TilesY: 1}, nil},
		{"missing", []int{0, 1, 3}, dims(4096, 4096), stitch.Grid{}, stitch.ErrIncompleteTileSet},
		{"duplicate", []int{0, 1, 1}, dims(4096, 4096), stitch.Grid{}, stitch.ErrIncompleteTileSet},
		{"empty", nil, dims(4096, 4096), stitch.Grid{}, stitch.ErrIncompleteTileSet},
		{"shape", []int{0, 1, 2}, dims(4096, 4096), stitch.Grid{TilesX: 2, TilesY: 1}, stitch.ErrInconsistentGridShape},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			got := stitch.Plan(tc.Indices, tc.Ref)
			if diff := cmp.Diff(tc.Grid, got.Grid); diff != "" {
				t.Errorf("grid mismatch (-want+got):\n%v", diff)
			}
			if tc.Reason == nil {
				if !got.Complete() {
					t.Errorf("Plan() reason = %v, want complete", got.Reason)
				}
				return
			}
			if !errors.Is(got.Reason, tc.Reason) {
				t.Errorf("Plan() reason = %v, want %v", got.Reason, tc.Reason)
			}
		})
	}
}

func solidTile(w, h uint32, c color.NRGBA, loads *int) func() (*raster.Buffer, error) {
	return func() (*raster.Buffer, error) {
		*loads++
		return rastertest.Solid(w, h, c), nil
	}
}

func TestStitch(t *testing.T) {
	const size = 4
	red := color.NRGBA{R: 255, A: 255}
	green := color.NRGBA{G: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}

	loads := 0
	tiles := []stitch.Tile{
		{Index: 3, Load: solidTile(2, 3, white, &loads)},
		{Index: 0, Load: solidTile(size, size, red, &loads)},
		{Index: 2, Load: solidTile(size, 3, blue, &loads)},
		{Index: 1, Load: solidTile(2, size, green, &loads)},
	}
	result, err := stitch.Stitch(tiles, dims(6, 7), size)
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}
	if got, want := loads, 4; got != want {
		t.Errorf("loads = %v, want = %v", got, want)
	}
	if got, want := result.Buffer.Dimensions(), dims(8, 8); got != want {
		t.Errorf("Buffer.Dimensions() = %v, want = %v", got, want)
	}
	if got, want := dims(result.Width, result.Height), dims(6, 7); got != want {
		t.Errorf("extent = %v, want = %v", got, want)
	}
	if diff := cmp.Diff(stitch.Grid{TilesX: 2, TilesY: 2}, result.Grid); diff != "" {
		t.Errorf("grid mismatch (-want+got):\n%v", diff)
	}

	for _, tc := range []struct {
		X, Y uint32
		Want color.NRGBA
	}{
		{0, 0, red},
		{3, 3, red},
		{4, 0, green},
		{5, 3, green},
		{6, 0, color.NRGBA{}},
		{0, 4, blue},
		{3, 6, blue},
		{0, 7, color.NRGBA{}},
		{4, 4, white},
		{5, 6, white},
		{6, 5, color.NRGBA{}},
		{7, 7, color.NRGBA{}},
	} {
		if got := rastertest.At(t, result.Buffer, tc.X, tc.Y); got != tc.Want {
			t.Errorf("At(%d,%d) = %v, want = %v", tc.X, tc.Y, got, tc.Want)
		}
	}
}

func TestStitchIncompleteSkips(t *testing.T) {
	loads := 0
	tiles := []stitch.Tile{
		{Index: 0, Load: solidTile(4, 4, color.NRGBA{A: 255}, &loads)},
		{Index: 1, Load: solidTile(4, 4, color.NRGBA{A: 255}, &loads)},
		{Index: 3, Load: solidTile(4, 4, color.NRGBA{A: 255}, &loads)},
	}
	result, err := stitch.Stitch(tiles, dims(8, 8), 4)
	if result != nil {
		t.Errorf("Stitch() result = %v, want nil", result)
	}
	if !stitch.IsSkip(err) {
		t.Fatalf("Stitch() error = %v, want skip", err)
	}
	if !errors.Is(err, stitch.ErrIncompleteTileSet) {
		t.Errorf("Stitch() error = %v, want ErrIncompleteTileSet", err)
	}
	if loads != 0 {
		t.Errorf("loads = %v, want 0", loads)
	}
}

func TestStitchErrors(t *testing.T) {
	loadErr := errors.New("broken texture")
	tiles := []stitch.Tile{
		{Index: 0, Load: func() (*raster.Buffer, error) { return nil, loadErr }},
	}
	if _, err := stitch.Stitch(tiles, dims(4, 4), 4); !errors.Is(err, loadErr) || stitch.IsSkip(err) {
		t.Errorf("Stitch() error = %v, want %v", err, loadErr)
	}

	tiles = []stitch.Tile{
		{Index: 0, Load: func() (*raster.Buffer, error) { return raster.New(8, 4), nil }},
	}
	if _, err := stitch.Stitch(tiles, dims(4, 4), 4); !errors.Is(err, raster.ErrOutOfBounds) {
		t.Errorf("Stitch() error = %v, want ErrOutOfBounds", err)
	}
}
