package prep_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/eak1mov/go-mapprep/archive"
	"github.com/eak1mov/go-mapprep/atlas"
	"github.com/eak1mov/go-mapprep/internal/rastertest"
	"github.com/eak1mov/go-mapprep/mb"
	"github.com/eak1mov/go-mapprep/pm"
	"github.com/eak1mov/go-mapprep/prep"
	"github.com/eak1mov/go-mapprep/pyramid"
	"github.com/eak1mov/go-mapprep/raster"
	"github.com/eak1mov/go-mapprep/sheet"
	"github.com/eak1mov/go-mapprep/texture"
	"github.com/eak1mov/go-mapprep/tile"
	"github.com/eak1mov/go-mapprep/xyz"
	"github.com/google/go-cmp/cmp"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

func pngFile(t *testing.T, b *raster.Buffer) *fstest.MapFile {
	t.Helper()
	var buffer bytes.Buffer
	require.NoError(t, png.Encode(&buffer, b.NRGBA()))
	return &fstest.MapFile{Data: buffer.Bytes()}
}

// testArchive holds:
//   - four 8x8 monster sprites, one of them of the wrong size, and a file
//     without numeric id;
//   - map 0 with four native tiles of 8 pixels, the last one 6x5;
//   - map 1 with a missing tile;
//   - map 2 without reference texture;
//   - a 16x16 sprite sheet.
func testArchive(t *testing.T) archive.Accessor {
	t.Helper()
	fsys := fstest.MapFS{
		"ui/monster_1.png":  pngFile(t, rastertest.Solid(8, 8, red)),
		"ui/monster_2.png":  pngFile(t, rastertest.Solid(8, 8, green)),
		"ui/monster_10.png": pngFile(t, rastertest.Solid(8, 8, blue)),
		"ui/monster_3.png":  pngFile(t, rastertest.Solid(6, 6, white)),
		"ui/monster_x.png":  pngFile(t, rastertest.Solid(8, 8, white)),

		"ui/minimap_all_00.png": pngFile(t, rastertest.Solid(16, 16, white)),
		"ui/minimap_00_0.png":   pngFile(t, rastertest.Solid(8, 8, red)),
		"ui/minimap_00_1.png":   pngFile(t, rastertest.Solid(8, 8, green)),
		"ui/minimap_00_2.png":   pngFile(t, rastertest.Solid(8, 8, blue)),
		"ui/minimap_00_3.png":   pngFile(t, rastertest.Solid(6, 5, white)),

		"ui/minimap_all_01.png": pngFile(t, rastertest.Solid(16, 16, white)),
		"ui/minimap_01_0.png":   pngFile(t, rastertest.Solid(8, 8, red)),
		"ui/minimap_01_2.png":   pngFile(t, rastertest.Solid(8, 8, red)),

		"ui/minimap_02_0.png": pngFile(t, rastertest.Solid(8, 8, red)),

		"ui/sheet.png": pngFile(t, rastertest.Gradient(16, 16)),
	}
	a, err := archive.FromFS(fsys)
	require.NoError(t, err)
	return a
}

func testConfig() prep.Config {
	config := prep.DefaultConfig()
	config.Sprites = []prep.SpriteSet{{
		Pattern:      `\ui\monster_*.png`,
		Subdir:       "enemies",
		SourceWidth:  8,
		SourceHeight: 8,
		CellWidth:    4,
		CellHeight:   4,
		AtlasFormat:  "png",
	}}
	config.Maps = []prep.MapSet{{
		TilePattern:      `\ui\minimap_*.png`,
		ReferencePattern: `\ui\minimap_all_*.png`,
		Subdir:           "maps",
		NativeTileSize:   8,
	}}
	config.Sheets = []prep.SheetSet{{
		Subdir: "misc",
		Regions: []sheet.Region{
			{Name: "icon", Texture: `\ui\sheet.png`, X: 2, Y: 3, Width: 4, Height: 4},
			{Name: "bad", Texture: `\ui\sheet.png`, X: 14, Y: 0, Width: 4, Height: 4},
		},
	}}
	config.TileSize = 4
	config.TileFormat = "png"
	config.Concurrency = 2
	return config
}

type countingProgress struct {
	expected atomic.Int64
	done     atomic.Int64
}

func (p *countingProgress) Expect(n int) { p.expected.Add(int64(n)) }
func (p *countingProgress) Done(n int)   { p.done.Add(int64(n)) }

func run(t *testing.T, config prep.Config, output string, opts ...prep.Option) *prep.Summary {
	t.Helper()
	runner, err := prep.NewRunner(config, testArchive(t), texture.ImageDecoder{}, output, opts...)
	require.NoError(t, err)
	return runner.Run(context.Background())
}

func readImage(t *testing.T, path string) *raster.Buffer {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	tex, err := texture.First(texture.ImageDecoder{}, file)
	require.NoError(t, err)
	b, err := tex.Buffer()
	require.NoError(t, err)
	return b
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestRun(t *testing.T) {
	output := t.TempDir()
	progress := &countingProgress{}
	summary := run(t, testConfig(), output, prep.WithProgress(progress))

	// sprites 1, 2, 10 and the atlas; map 0; region "icon"
	require.Equal(t, 6, summary.Succeeded)
	// map 1
	require.Equal(t, 1, summary.Skipped)
	// sprite 3, map 2, region "bad"
	require.Equal(t, 3, summary.Failed)

	err := summary.Err()
	require.ErrorIs(t, err, texture.ErrUnexpectedTextureSize)
	require.ErrorIs(t, err, archive.ErrNotFound)
	require.ErrorIs(t, err, raster.ErrOutOfBounds)

	// 4 sprites + atlas, 21 tiles of map 0, 2 regions
	require.Equal(t, int64(28), progress.expected.Load())
	require.Equal(t, int64(28), progress.done.Load())

	t.Run("sprites", func(t *testing.T) {
		for _, name := range []string{"1", "2", "10"} {
			b := readImage(t, filepath.Join(output, "enemies", name+".png"))
			require.Equal(t, raster.Dimensions{Width: 8, Height: 8}, b.Dimensions())
		}
		require.NoFileExists(t, filepath.Join(output, "enemies", "3.png"))

		var manifest atlas.Manifest
		readJSON(t, filepath.Join(output, prep.AtlasDir, "enemies.json"), &manifest)
		want := atlas.Manifest{Columns: 2, CellDimensions: [2]uint32{4, 4}, OrderedNames: []string{"1", "2", "10"}}
		if diff := cmp.Diff(want, manifest); diff != "" {
			t.Errorf("manifest mismatch (-want+got):\n%v", diff)
		}

		packed := readImage(t, filepath.Join(output, "enemies", "packed.png"))
		require.Equal(t, raster.Dimensions{Width: 8, Height: 8}, packed.Dimensions())
		for _, tc := range []struct {
			X, Y uint32
			Want color.NRGBA
		}{
			{0, 0, red},
			{4, 0, green},
			{0, 4, blue},
			{4, 4, color.NRGBA{}},
		} {
			require.Equal(t, tc.Want, rastertest.At(t, packed, tc.X, tc.Y), "pixel %d,%d", tc.X, tc.Y)
		}
	})

	t.Run("maps", func(t *testing.T) {
		var list pyramid.MapList
		readJSON(t, filepath.Join(output, "maps", prep.MapListFile), &list)
		want := pyramid.MapList{Maps: map[int]pyramid.MapInfo{
			0: {MaxZoomLevel: 2, TileSize: 4, Width: 14, Height: 13},
		}}
		if diff := cmp.Diff(want, list); diff != "" {
			t.Errorf("map list mismatch (-want+got):\n%v", diff)
		}

		reader, err := xyz.NewReader(xyz.MapPattern(filepath.Join(output, "maps"), "0", "png"))
		require.NoError(t, err)
		count := 0
		require.NoError(t, reader.VisitTiles(func(tile.ID, []byte) error {
			count++
			return nil
		}))
		require.Equal(t, 21, count)

		top := readImage(t, filepath.Join(output, "maps", "0", "0", "0_0.png"))
		require.Equal(t, raster.Dimensions{Width: 4, Height: 4}, top.Dimensions())
		require.Equal(t, red, rastertest.At(t, top, 0, 0))
		require.Equal(t, green, rastertest.At(t, top, 3, 0))
		require.Equal(t, blue, rastertest.At(t, top, 0, 3))

		require.NoDirExists(t, filepath.Join(output, "maps", "1"))
		require.NoDirExists(t, filepath.Join(output, "maps", "2"))
	})

	t.Run("sheets", func(t *testing.T) {
		icon := readImage(t, filepath.Join(output, "misc", "icon.png"))
		require.Equal(t, raster.Dimensions{Width: 4, Height: 4}, icon.Dimensions())
		require.Equal(t, color.NRGBA{R: 2, G: 3, B: 2 ^ 3, A: 255}, rastertest.At(t, icon, 0, 0))
		require.NoFileExists(t, filepath.Join(output, "misc", "bad.png"))
	})
}

func TestRunDryRun(t *testing.T) {
	output := t.TempDir()
	config := testConfig()
	config.DryRun = true
	summary := run(t, config, output)

	require.Equal(t, 6, summary.Succeeded)
	require.Equal(t, 1, summary.Skipped)
	require.Equal(t, 3, summary.Failed)

	entries, err := os.ReadDir(output)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRunSpriteWriteFailure(t *testing.T) {
	output := t.TempDir()
	// a directory in place of 2.png makes writing sprite 2 fail
	require.NoError(t, os.MkdirAll(filepath.Join(output, "enemies", "2.png"), 0o755))
	config := testConfig()
	config.Categories = []string{prep.CategorySprites}
	summary := run(t, config, output)

	// sprites 1, 10 and the atlas
	require.Equal(t, 3, summary.Succeeded)
	// sprites 2, 3
	require.Equal(t, 2, summary.Failed)

	var manifest atlas.Manifest
	readJSON(t, filepath.Join(output, prep.AtlasDir, "enemies.json"), &manifest)
	want := atlas.Manifest{Columns: 2, CellDimensions: [2]uint32{4, 4}, OrderedNames: []string{"1", "10"}}
	if diff := cmp.Diff(want, manifest); diff != "" {
		t.Errorf("manifest mismatch (-want+got):\n%v", diff)
	}

	packed := readImage(t, filepath.Join(output, "enemies", "packed.png"))
	require.Equal(t, red, rastertest.At(t, packed, 0, 0))
	require.Equal(t, blue, rastertest.At(t, packed, 4, 0))
	require.Equal(t, color.NRGBA{}, rastertest.At(t, packed, 0, 4))
}

func TestRunCategories(t *testing.T) {
	output := t.TempDir()
	config := testConfig()
	config.Categories = []string{prep.CategorySheets}
	summary := run(t, config, output)

	require.Equal(t, 1, summary.Succeeded)
	require.Equal(t, 1, summary.Failed)
	require.NoDirExists(t, filepath.Join(output, "enemies"))
	require.NoDirExists(t, filepath.Join(output, "maps"))
	require.FileExists(t, filepath.Join(output, "misc", "icon.png"))
}

func TestRunSinks(t *testing.T) {
	wantInfo := pyramid.MapInfo{MaxZoomLevel: 2, TileSize: 4, Width: 14, Height: 13}

	t.Run("pmtiles", func(t *testing.T) {
		output := t.TempDir()
		config := testConfig()
		config.Categories = []string{prep.CategoryMaps}
		config.Sink = prep.SinkPMTiles
		config.MapWorkers = 3
		summary := run(t, config, output)
		require.Equal(t, 1, summary.Succeeded)

		reader, err := pm.NewFileReader(filepath.Join(output, "maps", "0.pmtiles"))
		require.NoError(t, err)
		defer reader.Close()
		require.Equal(t, uint64(21), reader.TileCount())
		require.Equal(t, uint8(2), reader.HeaderMetadata().MaxZoom)

		metadata, err := reader.ReadMetadata()
		require.NoError(t, err)
		var info pyramid.MapInfo
		require.NoError(t, json.Unmarshal(metadata, &info))
		require.Equal(t, wantInfo, info)
	})

	t.Run("mbtiles", func(t *testing.T) {
		output := t.TempDir()
		config := testConfig()
		config.Categories = []string{prep.CategoryMaps}
		config.Sink = prep.SinkMBTiles
		summary := run(t, config, output)
		require.Equal(t, 1, summary.Succeeded)

		reader, err := mb.NewReader(filepath.Join(output, "maps", "0.mbtiles"))
		require.NoError(t, err)
		defer reader.Close()

		var info pyramid.MapInfo
		require.NoError(t, reader.ReadMetadataJSON("json", &info))
		require.Equal(t, wantInfo, info)

		count := 0
		require.NoError(t, reader.VisitTiles(func(tile.ID, []byte) error {
			count++
			return nil
		}))
		require.Equal(t, 21, count)
	})
}

func TestRunCancelled(t *testing.T) {
	runner, err := prep.NewRunner(testConfig(), testArchive(t), texture.ImageDecoder{}, t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary := runner.Run(ctx)
	require.Equal(t, 0, summary.Succeeded)
	require.True(t, errors.Is(summary.Err(), context.Canceled))
}

func TestNewRunnerInvalidConfig(t *testing.T) {
	config := testConfig()
	config.Sink = "zip"
	_, err := prep.NewRunner(config, testArchive(t), texture.ImageDecoder{}, t.TempDir())
	require.ErrorIs(t, err, prep.ErrInvalidConfig)
}
