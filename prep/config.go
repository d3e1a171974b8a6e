package prep

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/eak1mov/go-mapprep/pyramid"
	"github.com/eak1mov/go-mapprep/raster"
	"github.com/eak1mov/go-mapprep/sheet"
	"github.com/eak1mov/go-mapprep/stitch"
	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("mapprep: invalid config")

// Categories of work selectable in Config.Categories.
const (
	CategorySprites = "sprites"
	CategoryMaps    = "maps"
	CategorySheets  = "sheets"
)

// Tile sinks selectable in Config.Sink.
const (
	SinkXYZ     = "xyz"
	SinkMBTiles = "mbtiles"
	SinkPMTiles = "pmtiles"
)

// SpriteSet is a group of equally sized sprites packed into one atlas.
type SpriteSet struct {
	// Pattern selects the source files; its '*' captures the numeric sprite id.
	Pattern      string `mapstructure:"pattern"`
	Subdir       string `mapstructure:"subdir"`
	SourceWidth  uint32 `mapstructure:"source_width"`
	SourceHeight uint32 `mapstructure:"source_height"`
	CellWidth    uint32 `mapstructure:"cell_width"`
	CellHeight   uint32 `mapstructure:"cell_height"`
	// AtlasFormat is the extension of the packed image, "webp" or "png".
	AtlasFormat string `mapstructure:"atlas_format"`
}

func (s SpriteSet) source() raster.Dimensions {
	return raster.Dimensions{Width: s.SourceWidth, Height: s.SourceHeight}
}

func (s SpriteSet) cell() raster.Dimensions {
	return raster.Dimensions{Width: s.CellWidth, Height: s.CellHeight}
}

// MapSet is a family of maps split into numbered native tiles.
type MapSet struct {
	// TilePattern selects the tiles; its '*' captures "{map}_{index}".
	TilePattern string `mapstructure:"tile_pattern"`
	// ReferencePattern names the full-map texture whose size gives the
	// aspect ratio; its '*' is replaced by the two-digit map index.
	ReferencePattern string `mapstructure:"reference_pattern"`
	Subdir           string `mapstructure:"subdir"`
	NativeTileSize   uint32 `mapstructure:"native_tile_size"`
}

// SheetSet is a list of regions cut out of sprite sheets.
type SheetSet struct {
	Subdir  string         `mapstructure:"subdir"`
	Regions []sheet.Region `mapstructure:"regions"`
}

// Config describes a batch run.
type Config struct {
	// Categories limits the run to some of "sprites", "maps" and "sheets".
	// Empty means all.
	Categories []string    `mapstructure:"categories"`
	Sprites    []SpriteSet `mapstructure:"sprites"`
	Maps       []MapSet    `mapstructure:"maps"`
	Sheets     []SheetSet  `mapstructure:"sheets"`

	TileSize    uint32 `mapstructure:"tile_size"`
	TileFormat  string `mapstructure:"tile_format"`
	OptimizePNG bool   `mapstructure:"optimize_png"`
	Sink        string `mapstructure:"sink"`

	// MapWorkers is the number of maps processed at once.
	MapWorkers int `mapstructure:"map_workers"`
	// Concurrency is the number of zoom levels of one map generated at once.
	Concurrency int `mapstructure:"concurrency"`
	// DryRun decodes and encodes everything but writes nothing.
	DryRun bool `mapstructure:"dry_run"`

	SheetCacheSize int64 `mapstructure:"sheet_cache_size"`
}

// DefaultConfig returns the job set for the game's UI archive.
func DefaultConfig() Config {
	return Config{
		Sprites: []SpriteSet{
			{
				Pattern:      `\data\x64\res_cmn\ui\neo\neo_a24_monster_l_*.g1t`,
				Subdir:       "enemies",
				SourceWidth:  512,
				SourceHeight: 512,
				CellWidth:    64,
				CellHeight:   64,
				AtlasFormat:  "webp",
			},
			{
				Pattern:      `\data\x64\res_cmn\ui\neo\neo_a24_item_l_*.g1t`,
				Subdir:       "items",
				SourceWidth:  512,
				SourceHeight: 512,
				CellWidth:    64,
				CellHeight:   64,
				AtlasFormat:  "webp",
			},
		},
		Maps: []MapSet{
			{
				TilePattern:      `\data\x64\res_cmn\ui\neo\neo_minimap_ta_*.g1t`,
				ReferencePattern: `\data\x64\res_cmn\ui\neo\neo_a24_minimap_all_*.g1t`,
				Subdir:           "maps",
				NativeTileSize:   stitch.NativeTileSize,
			},
		},
		TileSize:       pyramid.DefaultTileSize,
		TileFormat:     "webp",
		Sink:           SinkXYZ,
		MapWorkers:     1,
		SheetCacheSize: sheet.DefaultCacheSize,
	}
}

// Enabled reports whether category is selected.
func (c *Config) Enabled(category string) bool {
	return len(c.Categories) == 0 || slices.Contains(c.Categories, category)
}

// Validate checks the settings shared by all jobs.
func (c *Config) Validate() error {
	for _, category := range c.Categories {
		switch category {
		case CategorySprites, CategoryMaps, CategorySheets:
		default:
			return fmt.Errorf("%w: unknown category %q", ErrInvalidConfig, category)
		}
	}
	switch c.Sink {
	case SinkXYZ, SinkMBTiles, SinkPMTiles:
	default:
		return fmt.Errorf("%w: unknown sink %q", ErrInvalidConfig, c.Sink)
	}
	if !pyramid.ValidTileSize(c.TileSize) {
		return fmt.Errorf("%w: tile size %d is not a power of two", ErrInvalidConfig, c.TileSize)
	}
	if c.MapWorkers < 1 {
		return fmt.Errorf("%w: map workers %d", ErrInvalidConfig, c.MapWorkers)
	}
	for _, set := range c.Sprites {
		if !strings.Contains(set.Pattern, "*") || set.Subdir == "" {
			return fmt.Errorf("%w: sprite set %q needs a pattern with '*' and a subdir", ErrInvalidConfig, set.Subdir)
		}
	}
	for _, set := range c.Maps {
		if !strings.Contains(set.TilePattern, "*") || !strings.Contains(set.ReferencePattern, "*") || set.Subdir == "" {
			return fmt.Errorf("%w: map set %q needs patterns with '*' and a subdir", ErrInvalidConfig, set.Subdir)
		}
		if set.NativeTileSize == 0 {
			return fmt.Errorf("%w: map set %q has no native tile size", ErrInvalidConfig, set.Subdir)
		}
	}
	return nil
}

// LoadConfig reads a TOML, YAML or JSON file over DefaultConfig. Scalar
// settings may also be given as MAPPREP_* environment variables. An empty
// path loads the defaults and the environment only.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("mapprep")
	v.AutomaticEnv()
	v.SetDefault("tile_size", config.TileSize)
	v.SetDefault("tile_format", config.TileFormat)
	v.SetDefault("optimize_png", config.OptimizePNG)
	v.SetDefault("sink", config.Sink)
	v.SetDefault("map_workers", config.MapWorkers)
	v.SetDefault("concurrency", config.Concurrency)
	v.SetDefault("dry_run", config.DryRun)
	v.SetDefault("sheet_cache_size", config.SheetCacheSize)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return config, nil
}
