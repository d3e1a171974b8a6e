package prep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/eak1mov/go-mapprep/archive"
	"github.com/eak1mov/go-mapprep/encode"
	"github.com/eak1mov/go-mapprep/mb"
	"github.com/eak1mov/go-mapprep/pm"
	"github.com/eak1mov/go-mapprep/pm/format"
	"github.com/eak1mov/go-mapprep/pyramid"
	"github.com/eak1mov/go-mapprep/raster"
	"github.com/eak1mov/go-mapprep/stitch"
	"github.com/eak1mov/go-mapprep/tile"
	"github.com/eak1mov/go-mapprep/xyz"
	"golang.org/x/sync/errgroup"
)

// MapListFile is the name of the per-set manifest of generated maps.
const MapListFile = "map_data.json"

type mapTile struct {
	file  string
	index int
}

// parseMapTile splits a "{map}_{index}" capture.
func parseMapTile(capture string) (mapIndex, tileIndex int, ok bool) {
	m, t, found := strings.Cut(capture, "_")
	if !found {
		return 0, 0, false
	}
	mapIndex, err := strconv.Atoi(m)
	if err != nil || mapIndex < 0 {
		return 0, 0, false
	}
	tileIndex, err = strconv.Atoi(t)
	if err != nil || tileIndex < 0 {
		return 0, 0, false
	}
	return mapIndex, tileIndex, true
}

// mapTiles groups the tiles matching pattern by map index.
func (r *Runner) mapTiles(pattern string) map[int][]mapTile {
	groups := make(map[int][]mapTile)
	for name := range r.archive.Names() {
		capture, ok := archive.Match(pattern, name)
		if !ok {
			continue
		}
		mapIndex, tileIndex, ok := parseMapTile(capture)
		if !ok {
			r.logger.Debug("ignoring map tile without map and tile index", "file", name)
			continue
		}
		groups[mapIndex] = append(groups[mapIndex], mapTile{file: name, index: tileIndex})
	}
	return groups
}

func (r *Runner) runMaps(ctx context.Context, set MapSet, summary *Summary) {
	logger := r.logger.With("subdir", set.Subdir)

	groups := r.mapTiles(set.TilePattern)
	if len(groups) == 0 {
		logger.Info("no map tiles found", "pattern", set.TilePattern)
		return
	}
	encoder, err := encode.ForExtension(r.config.TileFormat, r.config.OptimizePNG)
	if err != nil {
		summary.fail(fmt.Errorf("maps %s: %w", set.Subdir, err))
		return
	}

	var mu sync.Mutex
	list := pyramid.MapList{Maps: make(map[int]pyramid.MapInfo)}

	// a failing map does not cancel its siblings
	var group errgroup.Group
	group.SetLimit(r.config.MapWorkers)
	for _, index := range slices.Sorted(maps.Keys(groups)) {
		group.Go(func() error {
			mapLogger := logger.With("map", index)
			info, err := r.extractMap(ctx, set, index, groups[index], encoder, mapLogger)
			switch {
			case stitch.IsSkip(err):
				mapLogger.Info("skipping map", "reason", err)
				summary.skip()
			case err != nil:
				mapLogger.Error("map failed", "error", err)
				summary.fail(fmt.Errorf("map %d: %w", index, err))
			default:
				mu.Lock()
				list.Maps[index] = info
				mu.Unlock()
				summary.succeed()
			}
			return nil
		})
	}
	group.Wait()

	if err := r.writeJSON(path.Join(set.Subdir, MapListFile), list); err != nil {
		logger.Error("map list failed", "error", err)
		summary.fail(fmt.Errorf("maps %s: %w", set.Subdir, err))
	}
}

func (r *Runner) extractMap(ctx context.Context, set MapSet, index int, tiles []mapTile, encoder encode.Encoder, logger *slog.Logger) (_ pyramid.MapInfo, err error) {
	if err := ctx.Err(); err != nil {
		return pyramid.MapInfo{}, err
	}
	stitched, err := r.stitchMap(set, index, tiles, logger)
	if err != nil {
		return pyramid.MapInfo{}, err
	}

	dims := stitched.Buffer.Dimensions()
	tileSize := r.config.TileSize
	writer, closeWriter, err := r.openSink(set, index, encoder.Extension(),
		pyramid.Info(dims, stitched.Width, stitched.Height, tileSize), logger)
	if err != nil {
		return pyramid.MapInfo{}, fmt.Errorf("open tile sink: %w", err)
	}
	defer closeSink(closeWriter, &err)

	r.progress.Expect(pyramid.TileCount(dims.Width, dims.Height, tileSize))
	counter := &tile.Counter{
		Writer: writer,
		OnTile: func(tile.ID) { r.progress.Done(1) },
	}
	generator := pyramid.Generator{
		TileSize:    tileSize,
		Encoder:     encoder,
		Writer:      counter,
		Logger:      logger,
		Concurrency: r.config.Concurrency,
	}
	info, err := generator.Generate(ctx, stitched.Buffer, stitched.Width, stitched.Height)
	if err != nil {
		return pyramid.MapInfo{}, err
	}
	if err := counter.Finalize(); err != nil {
		return pyramid.MapInfo{}, fmt.Errorf("finalize tile sink: %w", err)
	}

	logger.Info("map extracted", "zoom_levels", info.MaxZoomLevel+1, "tiles", counter.Tiles(), "bytes", counter.Bytes())
	return info, nil
}

// stitchMap decodes the tiles of one map into a single buffer while holding
// the archive lock.
func (r *Runner) stitchMap(set MapSet, index int, tiles []mapTile, logger *slog.Logger) (*stitch.Result, error) {
	r.archiveMu.Lock()
	defer r.archiveMu.Unlock()

	reference := archive.Expand(set.ReferencePattern, fmt.Sprintf("%02d", index))
	ref, err := r.dimensions(reference)
	if err != nil {
		return nil, fmt.Errorf("reference %s: %w", reference, err)
	}
	logger.Debug("map has tiles", "tiles", len(tiles), "reference_width", ref.Width, "reference_height", ref.Height)

	stitchTiles := make([]stitch.Tile, 0, len(tiles))
	for _, t := range tiles {
		stitchTiles = append(stitchTiles, stitch.Tile{
			Index: t.index,
			Load: func() (*raster.Buffer, error) {
				tex, err := r.decode(t.file, 0)
				if err != nil {
					return nil, err
				}
				return tex.Buffer()
			},
		})
	}
	return stitch.Stitch(stitchTiles, ref, set.NativeTileSize, stitch.WithLogger(logger))
}

func noClose() error { return nil }

// openSink returns the tile writer of one map and a function releasing it.
// closeSink closes a tile sink and joins its error into *err.
func closeSink(closeWriter func() error, err *error) {
	if closeErr := closeWriter(); closeErr != nil {
		*err = errors.Join(*err, fmt.Errorf("close tile sink: %w", closeErr))
	}
}

func (r *Runner) openSink(set MapSet, index int, ext string, info pyramid.MapInfo, logger *slog.Logger) (tile.Writer, func() error, error) {
	if r.config.DryRun {
		return tile.Discard, noClose, nil
	}
	root := r.outputPath(set.Subdir)
	name := strconv.Itoa(index)

	if r.config.Sink == SinkXYZ {
		writer, err := xyz.NewWriter(xyz.MapPattern(root, name, ext), xyz.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return writer, noClose, nil
	}

	metadata, err := json.Marshal(info)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, nil, err
	}
	filePath := filepath.Join(root, name+"."+r.config.Sink)
	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, err
	}

	switch r.config.Sink {
	case SinkMBTiles:
		writer, err := mb.NewWriter(filePath,
			mb.WithMetadata(map[string]string{
				"name":    name,
				"format":  ext,
				"minzoom": "0",
				"maxzoom": strconv.Itoa(info.MaxZoomLevel),
				"json":    string(metadata),
			}),
			mb.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		return writer, writer.Close, nil
	case SinkPMTiles:
		writer, err := pm.NewWriter(filePath,
			pm.WithMetadata(metadata),
			pm.WithHeaderMetadata(pm.HeaderMetadata{
				TileCompression: format.CompressionNone,
				TileType:        format.TileTypeForExtension(ext),
				MaxZoom:         uint8(info.MaxZoomLevel),
			}),
			pm.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		return writer, writer.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown sink %q", ErrInvalidConfig, r.config.Sink)
}
