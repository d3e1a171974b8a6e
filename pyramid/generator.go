package pyramid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eak1mov/go-mapprep/encode"
	"github.com/eak1mov/go-mapprep/raster"
	"github.com/eak1mov/go-mapprep/tile"
	"golang.org/x/sync/errgroup"
)

// MapInfo summarizes the pyramid of one map.
type MapInfo struct {
	MaxZoomLevel int    `json:"max_zoom_level"`
	TileSize     uint32 `json:"tile_size"`
	Width        uint32 `json:"width"`
	Height       uint32 `json:"height"`
}

// MapList is the manifest of all generated maps keyed by map index.
type MapList struct {
	Maps map[int]MapInfo `json:"maps"`
}

// Info describes the pyramid Generate builds for a stitched buffer of the
// given dimensions.
func Info(stitched raster.Dimensions, width, height, tileSize uint32) MapInfo {
	padded := PaddedDimension(stitched.Width, stitched.Height)
	return MapInfo{
		MaxZoomLevel: MaxZoomLevel(padded, tileSize),
		TileSize:     tileSize,
		Width:        width,
		Height:       height,
	}
}

// Generator writes the tiles of stitched maps. It may be reused for several
// maps but Writer receives the tiles of every one of them.
type Generator struct {
	// TileSize is the side of generated tiles and must be a power of two.
	// Zero means DefaultTileSize.
	TileSize uint32
	Encoder  encode.Encoder
	// Writer must be safe for concurrent use.
	Writer tile.Writer
	Logger *slog.Logger
	// Concurrency limits the number of zoom levels generated at once.
	// Zero or negative means no limit.
	Concurrency int
}

func (g *Generator) tileSize() uint32 {
	if g.TileSize == 0 {
		return DefaultTileSize
	}
	return g.TileSize
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return g.Logger
}

// Generate emits every zoom level of stitched. Width and height are the real
// extent of the map and are only recorded in the returned MapInfo.
//
// The first failing tile cancels the remaining levels and its error is
// returned; tiles already written are left in place.
func (g *Generator) Generate(ctx context.Context, stitched *raster.Buffer, width, height uint32) (MapInfo, error) {
	tileSize := g.tileSize()
	if err := checkTileSize(tileSize); err != nil {
		return MapInfo{}, err
	}
	if g.Encoder == nil || g.Writer == nil {
		return MapInfo{}, errors.New("mapprep: generator needs an encoder and a writer")
	}

	dims := stitched.Dimensions()
	levels := Levels(dims.Width, dims.Height, tileSize)
	info := Info(dims, width, height, tileSize)
	logger := g.logger()
	logger.Debug("generating pyramid", "width", dims.Width, "height", dims.Height, "max_zoom", info.MaxZoomLevel)

	group, ctx := errgroup.WithContext(ctx)
	if g.Concurrency > 0 {
		group.SetLimit(g.Concurrency)
	}
	for _, level := range levels {
		group.Go(func() error {
			return g.generateLevel(ctx, stitched, level, tileSize, logger)
		})
	}
	if err := group.Wait(); err != nil {
		return MapInfo{}, err
	}
	return info, nil
}

func (g *Generator) generateLevel(ctx context.Context, stitched *raster.Buffer, level Level, tileSize uint32, logger *slog.Logger) error {
	count := 0
	for id := range level.Tiles(stitched.Width(), stitched.Height()) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := g.generateTile(stitched, level, id); err != nil {
			logger.Error("tile failed", "zoom", id.Z, "tile_x", id.X, "tile_y", id.Y, "error", err)
			return fmt.Errorf("tile %v: %w", id, err)
		}
		count++
	}
	logger.Debug("zoom level done", "zoom", level.Zoom, "tiles", count, "scale", level.ScaleFactor)
	return nil
}

func (g *Generator) generateTile(stitched *raster.Buffer, level Level, id tile.ID) error {
	startX, startY := level.Origin(id.X, id.Y)
	cropW := min(level.PixelsPerTile, stitched.Width()-startX)
	cropH := min(level.PixelsPerTile, stitched.Height()-startY)

	img, err := stitched.CopyChunk(startX, startY, cropW, cropH)
	if err != nil {
		return err
	}
	if level.ScaleFactor > 1 {
		img, err = img.ScaleDown(level.ScaleFactor, level.ScaleFactor)
		if err != nil {
			return err
		}
	}

	data, err := g.Encoder.Encode(img)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return g.Writer.WriteTile(id, data)
}
