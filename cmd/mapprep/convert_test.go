package main

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"testing"

	"github.com/eak1mov/go-mapprep/mb"
	"github.com/eak1mov/go-mapprep/pm"
	"github.com/eak1mov/go-mapprep/pm/format"
	"github.com/eak1mov/go-mapprep/tile"
	"github.com/eak1mov/go-mapprep/xyz"
	"github.com/google/subcommands"
	"github.com/stretchr/testify/require"
)

func TestDeduceFormat(t *testing.T) {
	require.Equal(t, "mbtiles", deduceFormat("", "maps/0.mbtiles"))
	require.Equal(t, "pmtiles", deduceFormat("", "maps/0.pmtiles"))
	require.Equal(t, "index", deduceFormat("", "maps/0.index"))
	require.Equal(t, "", deduceFormat("", "maps/0/{z}/{y}_{x}.webp"))
	require.Equal(t, "xyz", deduceFormat("xyz", "maps/0.pmtiles"))
}

func testPyramid() map[tile.ID][]byte {
	tiles := make(map[tile.ID][]byte)
	for z := range uint32(2) {
		for y := range uint32(1 << z) {
			for x := range uint32(1 << z) {
				tiles[tile.ID{X: x, Y: y, Z: z}] = fmt.Appendf(nil, "tile %v/%v/%v", z, x, y)
			}
		}
	}
	return tiles
}

func TestConvertRoundTrip(t *testing.T) {
	dir := t.TempDir()
	mbPath := filepath.Join(dir, "0.mbtiles")
	pmPath := filepath.Join(dir, "0.pmtiles")
	mbCopyPath := filepath.Join(dir, "copy.mbtiles")
	indexPath := filepath.Join(dir, "0.index")
	tilesPath := filepath.Join(dir, "0.tiles")
	xyzPattern := xyz.MapPattern(filepath.Join(dir, "maps"), "0", "webp")
	info := `{"max_zoom_level":1,"tile_size":512,"width":700,"height":600}`
	tiles := testPyramid()

	writer, err := mb.NewWriter(mbPath, mb.WithMetadata(map[string]string{
		"format":  "webp",
		"minzoom": "0",
		"maxzoom": "1",
		"json":    info,
	}))
	require.NoError(t, err)
	for tileID, tileData := range tiles {
		require.NoError(t, writer.WriteTile(tileID, tileData))
	}
	require.NoError(t, writer.Finalize())
	require.NoError(t, writer.Close())

	ctx := context.Background()
	require.Equal(t, subcommands.ExitSuccess, (&convertCmd{inputPath: mbPath, outputPath: pmPath}).Execute(ctx, nil))

	pmReader, err := pm.NewFileReader(pmPath)
	require.NoError(t, err)
	defer pmReader.Close()
	require.Equal(t, pm.HeaderMetadata{
		TileCompression: format.CompressionNone,
		TileType:        format.TileTypeWebp,
		MaxZoom:         1,
	}, pmReader.HeaderMetadata())
	metadata, err := pmReader.ReadMetadata()
	require.NoError(t, err)
	require.JSONEq(t, info, string(metadata))
	require.Equal(t, tiles, maps.Collect(tile.IterTiles(pmReader)))

	require.Equal(t, subcommands.ExitSuccess, (&convertCmd{inputPath: pmPath, outputPath: mbCopyPath}).Execute(ctx, nil))
	mbReader, err := mb.NewReader(mbCopyPath)
	require.NoError(t, err)
	defer mbReader.Close()
	mbMetadata, err := mbReader.ReadMetadata()
	require.NoError(t, err)
	require.Equal(t, map[string]string{"format": "webp", "minzoom": "0", "maxzoom": "1", "json": info}, mbMetadata)
	require.Equal(t, tiles, maps.Collect(tile.IterTiles(mbReader)))

	export := &exportCmd{inputPath: pmPath, outputIndexPath: indexPath, outputTilesPath: tilesPath}
	require.Equal(t, subcommands.ExitSuccess, export.Execute(ctx, nil))
	convert := &convertCmd{inputPath: indexPath, tilesPath: tilesPath, outputPath: xyzPattern}
	require.Equal(t, subcommands.ExitSuccess, convert.Execute(ctx, nil))

	xyzReader, err := xyz.NewReader(xyzPattern)
	require.NoError(t, err)
	require.Equal(t, tiles, maps.Collect(tile.IterTiles(xyzReader)))
}

func TestConvertInvalidFormat(t *testing.T) {
	cmd := &convertCmd{inputPath: "in", inputFormat: "zip", outputPath: "out"}
	require.Equal(t, subcommands.ExitFailure, cmd.Execute(context.Background(), nil))
}
