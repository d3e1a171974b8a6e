// Package pyramid cuts a stitched map into a multi-resolution tile pyramid.
//
// The stitched image is conceptually padded to a power-of-two square. Zoom
// level 0 shows the whole square as one tile, every next level doubles the
// tiles per side, and the last level is 1:1 with the stitched resolution.
// Tiles lying entirely in the padding are never produced.
package pyramid

import (
	"fmt"
	"iter"
	"math/bits"

	"github.com/eak1mov/go-mapprep/raster"
	"github.com/eak1mov/go-mapprep/tile"
)

// DefaultTileSize is the side length of web map tiles.
const DefaultTileSize = 512

// PaddedDimension returns the side of the smallest power-of-two square
// covering a width x height image.
func PaddedDimension(width, height uint32) uint32 {
	side := max(width, height, 1)
	if side&(side-1) == 0 {
		return side
	}
	return 1 << bits.Len32(side)
}

// MaxZoomLevel returns ceil(log2(padded / tileSize)), or 0 when the padded
// square fits into a single tile.
func MaxZoomLevel(padded, tileSize uint32) int {
	if tileSize == 0 || padded <= tileSize {
		return 0
	}
	ratio := (padded + tileSize - 1) / tileSize
	return bits.Len32(ratio - 1)
}

// ValidTileSize reports whether tileSize is a non-zero power of two.
func ValidTileSize(tileSize uint32) bool {
	return tileSize != 0 && tileSize&(tileSize-1) == 0
}

func checkTileSize(tileSize uint32) error {
	if !ValidTileSize(tileSize) {
		return fmt.Errorf("%w: tile size %d is not a power of two", raster.ErrInvalidSize, tileSize)
	}
	return nil
}

// Level is the geometry of one zoom level.
type Level struct {
	Zoom          int
	PixelsPerTile uint32
	TilesPerSide  uint32
	ScaleFactor   uint32
}

// LevelGeometry computes the geometry of zoom level z.
func LevelGeometry(padded, tileSize uint32, z int) Level {
	level := Level{
		Zoom:          z,
		PixelsPerTile: max(padded>>z, 1),
		TilesPerSide:  1 << z,
	}
	level.ScaleFactor = max(level.PixelsPerTile/tileSize, 1)
	return level
}

// Origin returns the top-left source pixel of tile (x, y).
func (l Level) Origin(x, y uint32) (uint32, uint32) {
	return x * l.PixelsPerTile, y * l.PixelsPerTile
}

// Tiles yields the tiles of the level whose origin lies inside a
// width x height image, row by row.
func (l Level) Tiles(width, height uint32) iter.Seq[tile.ID] {
	return func(yield func(tile.ID) bool) {
		for y := range l.TilesPerSide {
			for x := range l.TilesPerSide {
				startX, startY := l.Origin(x, y)
				if startX >= width || startY >= height {
					continue
				}
				if !yield(tile.ID{X: x, Y: y, Z: uint32(l.Zoom)}) {
					return
				}
			}
		}
	}
}

// Levels returns the geometry of every zoom level of a width x height image.
func Levels(width, height, tileSize uint32) []Level {
	padded := PaddedDimension(width, height)
	maxZoom := MaxZoomLevel(padded, tileSize)
	levels := make([]Level, 0, maxZoom+1)
	for z := 0; z <= maxZoom; z++ {
		levels = append(levels, LevelGeometry(padded, tileSize, z))
	}
	return levels
}

// EmittedTiles yields every tile generated for a width x height stitched
// image, level by level.
func EmittedTiles(width, height, tileSize uint32) iter.Seq[tile.ID] {
	return func(yield func(tile.ID) bool) {
		for _, level := range Levels(width, height, tileSize) {
			for id := range level.Tiles(width, height) {
				if !yield(id) {
					return
				}
			}
		}
	}
}

// TileCount returns the number of tiles generated for a width x height
// stitched image.
func TileCount(width, height, tileSize uint32) int {
	count := 0
	for _, level := range Levels(width, height, tileSize) {
		perRow := min(ceilDiv(width, level.PixelsPerTile), level.TilesPerSide)
		perColumn := min(ceilDiv(height, level.PixelsPerTile), level.TilesPerSide)
		count += int(perRow) * int(perColumn)
	}
	return count
}

func ceilDiv(a, b uint32) uint32 {
	return (a + b - 1) / b
}
