// Package tile provides the addressing scheme and storage interfaces shared by
// the pyramid generator and the tile sinks.
package tile

import "fmt"

// ID addresses one tile of a pyramid: column X and row Y at zoom level Z.
// Level Z has 2^Z x 2^Z positions, row 0 is the top.
type ID struct {
	X uint32
	Y uint32
	Z uint32
}

func (t ID) Valid() bool {
	return t.Z < 32 && t.X < (1<<t.Z) && t.Y < (1<<t.Z)
}

func (t ID) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// Writer defines an interface for storing generated tiles.
type Writer interface {
	// WriteTile stores a single encoded tile.
	WriteTile(tileID ID, tileData []byte) error

	// Finalize completes the writing process: flushes buffers, writes indices.
	// It must be called before closing the Writer.
	Finalize() error
}

type Reader interface {
	// ReadTile reads a single tile.
	// If the tile does not exist, it returns an empty slice with no error.
	ReadTile(tileID ID) ([]byte, error)
}

type Visitor interface {
	// VisitTiles calls visitor for every stored tile.
	// Order of tiles is implementation-defined.
	VisitTiles(visitor func(ID, []byte) error) error
}

// Location is the position of tile data inside a single-file tileset.
type Location struct {
	Offset uint64
	Length uint64
}

type LocationReader interface {
	ReadLocation(tileID ID) (Location, error)
}
