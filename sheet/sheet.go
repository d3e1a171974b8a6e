// Package sheet cuts named sprites out of decoded sprite sheets.
package sheet

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/eak1mov/go-mapprep/archive"
	"github.com/eak1mov/go-mapprep/raster"
	"github.com/eak1mov/go-mapprep/texture"
)

// DefaultCacheSize is the default byte budget for decoded sheets.
const DefaultCacheSize = 512 << 20

// Region names a rectangle of one texture inside a sheet container.
type Region struct {
	Name         string `mapstructure:"name"`
	Texture      string `mapstructure:"texture"`
	TextureIndex int    `mapstructure:"texture_index"`
	X            uint32 `mapstructure:"x"`
	Y            uint32 `mapstructure:"y"`
	Width        uint32 `mapstructure:"width"`
	Height       uint32 `mapstructure:"height"`
}

func (r Region) String() string {
	return fmt.Sprintf("%s (%s#%d %d,%d %dx%d)", r.Name, r.Texture, r.TextureIndex, r.X, r.Y, r.Width, r.Height)
}

// Cutter copies regions out of sheets read from an archive. Decoded sheets
// are kept in a cost-bounded cache, so regions of the same sheet decode it
// once. It is safe for concurrent use.
type Cutter struct {
	archive archive.Accessor
	decoder texture.Decoder
	cache   *ristretto.Cache[string, *raster.Buffer]
	logger  *slog.Logger

	// serializes archive reads
	mu sync.Mutex
}

type cutterConfig struct {
	CacheSize int64
	Logger    *slog.Logger
}

type Option func(*cutterConfig)

// WithCacheSize sets the byte budget for decoded sheets.
func WithCacheSize(size int64) Option {
	return func(c *cutterConfig) { c.CacheSize = size }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *cutterConfig) { c.Logger = logger }
}

func NewCutter(a archive.Accessor, d texture.Decoder, opts ...Option) (*Cutter, error) {
	config := cutterConfig{
		CacheSize: DefaultCacheSize,
		Logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, *raster.Buffer]{
		NumCounters: 10000,
		MaxCost:     config.CacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cutter{archive: a, decoder: d, cache: cache, logger: config.Logger}, nil
}

// Close releases the cache.
func (c *Cutter) Close() {
	c.cache.Close()
}

func sheetKey(name string, index int) string {
	return archive.Clean(name) + "#" + strconv.Itoa(index)
}

// Sheet returns the decoded texture index of the named container.
func (c *Cutter) Sheet(name string, index int) (*raster.Buffer, error) {
	key := sheetKey(name, index)
	if b, ok := c.cache.Get(key); ok {
		return b, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.cache.Get(key); ok {
		return b, nil
	}

	r, err := c.archive.Open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	tex, err := texture.Nth(c.decoder, r, index)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	b, err := tex.Buffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	c.logger.Debug("sheet decoded", "texture", name, "index", index, "width", b.Width(), "height", b.Height())
	if c.cache.Set(key, b, int64(len(b.Pix()))) {
		c.cache.Wait()
	}
	return b, nil
}

// Cut returns a copy of the region.
func (c *Cutter) Cut(region Region) (*raster.Buffer, error) {
	b, err := c.Sheet(region.Texture, region.TextureIndex)
	if err != nil {
		return nil, err
	}
	chunk, err := b.CopyChunk(region.X, region.Y, region.Width, region.Height)
	if err != nil {
		return nil, fmt.Errorf("cut %v: %w", region, err)
	}
	return chunk, nil
}
