package tile

import (
	"cmp"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
)

type discard struct{}

func (discard) WriteTile(ID, []byte) error { return nil }
func (discard) Finalize() error            { return nil }

// Discard is a Writer on which all calls succeed without storing anything.
var Discard Writer = discard{}

// Counter is a Writer that counts the tiles passed to the wrapped writer.
// It is safe for concurrent use when the wrapped writer is.
type Counter struct {
	Writer Writer
	// OnTile, if set, is called after every successful write.
	OnTile func(ID)

	tiles atomic.Int64
	bytes atomic.Int64
}

func (c *Counter) WriteTile(tileID ID, tileData []byte) error {
	if err := c.Writer.WriteTile(tileID, tileData); err != nil {
		return err
	}
	c.tiles.Add(1)
	c.bytes.Add(int64(len(tileData)))
	if c.OnTile != nil {
		c.OnTile(tileID)
	}
	return nil
}

func (c *Counter) Finalize() error {
	return c.Writer.Finalize()
}

// Tiles returns the number of tiles written so far.
func (c *Counter) Tiles() int64 {
	return c.tiles.Load()
}

// Bytes returns the total size of tiles written so far.
func (c *Counter) Bytes() int64 {
	return c.bytes.Load()
}

// Memory keeps tiles in memory. It implements Writer, Reader and Visitor and
// is safe for concurrent use.
type Memory struct {
	mu        sync.Mutex
	tiles     map[ID][]byte
	finalized bool
}

func NewMemory() *Memory {
	return &Memory{tiles: make(map[ID][]byte)}
}

func (m *Memory) WriteTile(tileID ID, tileData []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiles[tileID] = slices.Clone(tileData)
	return nil
}

func (m *Memory) Finalize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalized = true
	return nil
}

// Finalized reports whether Finalize was called.
func (m *Memory) Finalized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finalized
}

func (m *Memory) ReadTile(tileID ID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.tiles[tileID]; ok {
		return data, nil
	}
	return make([]byte, 0), nil
}

// IDs returns the stored tile IDs ordered by zoom, row and column.
func (m *Memory) IDs() []ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.SortedFunc(maps.Keys(m.tiles), compareIDs)
}

// VisitTiles visits tiles in the order of IDs.
func (m *Memory) VisitTiles(visitor func(ID, []byte) error) error {
	for _, tileID := range m.IDs() {
		data, err := m.ReadTile(tileID)
		if err != nil {
			return err
		}
		if err := visitor(tileID, data); err != nil {
			return err
		}
	}
	return nil
}

func compareIDs(a, b ID) int {
	return cmp.Or(cmp.Compare(a.Z, b.Z), cmp.Compare(a.Y, b.Y), cmp.Compare(a.X, b.X))
}
