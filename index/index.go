// Package index stores a map pyramid as a flat data file plus a binary index
// of fixed-size little-endian records, so static clients can fetch tiles with
// plain range requests.
package index

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/eak1mov/go-mapprep/tile"
)

var ErrMalformedIndex = errors.New("mapprep: malformed tile index")

// Item maps tile coordinates to the tile bytes in the data file.
type Item struct {
	X      uint32
	Y      uint32
	Z      uint32
	Length uint32
	Offset uint64
}

// ItemSize is the encoded size of an Item.
var ItemSize = binary.Size(Item{})

func (i Item) TileID() tile.ID {
	return tile.ID{X: i.X, Y: i.Y, Z: i.Z}
}

func (i Item) Location() tile.Location {
	return tile.Location{Offset: i.Offset, Length: uint64(i.Length)}
}

func Write(w io.Writer, items []Item) error {
	return binary.Write(w, binary.LittleEndian, items)
}

func Read(data []byte) ([]Item, error) {
	if len(data)%ItemSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrMalformedIndex, len(data), ItemSize)
	}
	items := make([]Item, len(data)/ItemSize)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, items); err != nil {
		return nil, err
	}
	return items, nil
}

// Export appends every tile of src to data and returns the index items in
// visiting order.
func Export(src tile.Visitor, data io.Writer) ([]Item, error) {
	var items []Item
	offset := uint64(0)
	err := src.VisitTiles(func(tileID tile.ID, tileData []byte) error {
		if _, err := data.Write(tileData); err != nil {
			return err
		}
		items = append(items, Item{
			X:      tileID.X,
			Y:      tileID.Y,
			Z:      tileID.Z,
			Length: uint32(len(tileData)),
			Offset: offset,
		})
		offset += uint64(len(tileData))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Reader implements tile.Reader, tile.Visitor and tile.LocationReader
// interfaces over an index and its data file.
type Reader struct {
	items     []Item // sorted by offset
	locations map[tile.ID]Item
	data      io.ReaderAt
	closer    func() error
}

func NewReader(items []Item, data io.ReaderAt) *Reader {
	sorted := slices.SortedFunc(slices.Values(items), func(a, b Item) int {
		return cmp.Compare(a.Offset, b.Offset)
	})
	locations := make(map[tile.ID]Item, len(items))
	for _, item := range sorted {
		locations[item.TileID()] = item
	}
	return &Reader{
		items:     sorted,
		locations: locations,
		data:      data,
		closer:    func() error { return nil },
	}
}

// NewFileReader opens an index file and its data file. The returned Reader
// must be closed.
func NewFileReader(indexPath, dataPath string) (*Reader, error) {
	indexData, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, err
	}
	items, err := Read(indexData)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(dataPath)
	if err != nil {
		return nil, err
	}
	reader := NewReader(items, file)
	reader.closer = file.Close
	return reader, nil
}

func (r *Reader) Close() error {
	return r.closer()
}

func (r *Reader) ReadLocation(tileID tile.ID) (tile.Location, error) {
	return r.locations[tileID].Location(), nil
}

func (r *Reader) ReadTile(tileID tile.ID) ([]byte, error) {
	item, found := r.locations[tileID]
	if !found {
		return make([]byte, 0), nil
	}
	return r.read(item)
}

func (r *Reader) read(item Item) ([]byte, error) {
	if item.Length == 0 {
		return make([]byte, 0), nil
	}
	tileData := make([]byte, item.Length)
	if _, err := r.data.ReadAt(tileData, int64(item.Offset)); err != nil {
		return nil, fmt.Errorf("read tile %v: %w", item.TileID(), err)
	}
	return tileData, nil
}

// VisitTiles visits tiles in data file order.
func (r *Reader) VisitTiles(visitor func(tile.ID, []byte) error) error {
	for _, item := range r.items {
		tileData, err := r.read(item)
		if err != nil {
			return err
		}
		if err := visitor(item.TileID(), tileData); err != nil {
			return err
		}
	}
	return nil
}
