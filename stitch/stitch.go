// Package stitch assembles the numbered tiles of a map into one raster.
package stitch

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/eak1mov/go-mapprep/raster"
)

// NativeTileSize is the side length of a full map tile in the source data.
const NativeTileSize = 2048

var (
	ErrIncompleteTileSet     = errors.New("mapprep: incomplete tile set")
	ErrInconsistentGridShape = errors.New("mapprep: inconsistent grid shape")
)

// Grid is the tile layout of a map.
type Grid struct {
	TilesX int
	TilesY int
}

// Len returns the number of tiles covered by the grid.
func (g Grid) Len() int {
	return g.TilesX * g.TilesY
}

// Cell returns the grid position of the tile with the given linear index.
func (g Grid) Cell(index int) (x, y int) {
	return index % g.TilesX, index / g.TilesX
}

// Completeness is the result of Plan. Reason is nil when the tile set is
// complete and Grid is usable.
type Completeness struct {
	Grid   Grid
	Reason error
}

// Complete reports whether the tile set can be stitched.
func (c Completeness) Complete() bool {
	return c.Reason == nil
}

// Plan checks that indices form a complete tile set and infers its grid from
// the aspect ratio of the full reference image.
func Plan(indices []int, ref raster.Dimensions) Completeness {
	n := len(indices)
	if n == 0 {
		return Completeness{Reason: fmt.Errorf("%w: no tiles", ErrIncompleteTileSet)}
	}
	if ref.Width == 0 || ref.Height == 0 {
		return Completeness{Reason: fmt.Errorf("%w: reference image is %v", ErrInconsistentGridShape, ref)}
	}

	seen := make([]bool, n)
	for _, index := range indices {
		if index < 0 || index >= n {
			return Completeness{Reason: fmt.Errorf("%w: index %d with %d tiles", ErrIncompleteTileSet, index, n)}
		}
		if seen[index] {
			return Completeness{Reason: fmt.Errorf("%w: duplicate index %d", ErrIncompleteTileSet, index)}
		}
		seen[index] = true
	}

	ratio := float64(ref.Width) / float64(ref.Height)
	grid := Grid{TilesX: int(math.Ceil(math.Sqrt(float64(n) * ratio)))}
	grid.TilesX = max(grid.TilesX, 1)
	grid.TilesY = n / grid.TilesX
	if grid.Len() != n {
		return Completeness{
			Grid:   grid,
			Reason: fmt.Errorf("%w: %dx%d grid for %d tiles (reference %v)", ErrInconsistentGridShape, grid.TilesX, grid.TilesY, n, ref),
		}
	}
	return Completeness{Grid: grid}
}

// SkipError reports a map that cannot be stitched because of missing data.
// It is not a failure of the caller.
type SkipError struct {
	Reason error
}

func (e *SkipError) Error() string {
	return "skip: " + e.Reason.Error()
}

func (e *SkipError) Unwrap() error {
	return e.Reason
}

// IsSkip reports whether err is a SkipError.
func IsSkip(err error) bool {
	var skip *SkipError
	return errors.As(err, &skip)
}

// Tile is one numbered piece of a map. Load is called at most once.
type Tile struct {
	Index int
	Load  func() (*raster.Buffer, error)
}

// Result is a stitched map.
type Result struct {
	Buffer *raster.Buffer
	Grid   Grid
	// Width and Height are the real extent of the map inside Buffer.
	Width  uint32
	Height uint32
}

type options struct {
	logger *slog.Logger
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Stitch places every tile at its grid cell in a tileSize-aligned canvas.
// An incomplete tile set yields a *SkipError and nothing is loaded.
func Stitch(tiles []Tile, ref raster.Dimensions, tileSize uint32, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	if tileSize == 0 {
		return nil, fmt.Errorf("%w: tile size 0", raster.ErrInvalidSize)
	}

	indices := make([]int, len(tiles))
	for i, t := range tiles {
		indices[i] = t.Index
	}
	plan := Plan(indices, ref)
	if !plan.Complete() {
		return nil, &SkipError{Reason: plan.Reason}
	}
	grid := plan.Grid

	tiles = slices.SortedFunc(slices.Values(tiles), func(a, b Tile) int {
		return cmp.Compare(a.Index, b.Index)
	})

	result := &Result{
		Buffer: raster.New(uint32(grid.TilesX)*tileSize, uint32(grid.TilesY)*tileSize),
		Grid:   grid,
	}
	o.logger.Debug("stitching map", "tiles_x", grid.TilesX, "tiles_y", grid.TilesY, "width", result.Buffer.Width(), "height", result.Buffer.Height())

	for _, t := range tiles {
		img, err := t.Load()
		if err != nil {
			return nil, fmt.Errorf("load tile %d: %w", t.Index, err)
		}
		if img.Width() > tileSize || img.Height() > tileSize {
			return nil, fmt.Errorf("%w: tile %d is %v, larger than %d", raster.ErrOutOfBounds, t.Index, img.Dimensions(), tileSize)
		}

		cellX, cellY := grid.Cell(t.Index)
		if err := result.Buffer.Blit(uint32(cellX)*tileSize, uint32(cellY)*tileSize, img); err != nil {
			return nil, fmt.Errorf("blit tile %d at (%d,%d): %w", t.Index, cellX, cellY, err)
		}

		if t.Index == grid.Len()-1 {
			result.Width = uint32(grid.TilesX-1)*tileSize + img.Width()
			result.Height = uint32(grid.TilesY-1)*tileSize + img.Height()
		}
	}

	o.logger.Debug("map stitched", "width", result.Width, "height", result.Height)
	return result, nil
}
