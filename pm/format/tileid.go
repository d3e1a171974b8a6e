package format

import (
	"math/bits"

	"github.com/eak1mov/go-mapprep/tile"
	"github.com/google/hilbert"
)

// zoomBase returns the number of tiles on all levels below z.
func zoomBase(z uint32) uint64 {
	return (1<<(2*uint64(z)) - 1) / 3
}

// EncodeTileID maps a tile to its PMTiles tile code: tiles of lower zoom
// levels first, then the Hilbert curve position inside the level.
func EncodeTileID(tileID tile.ID) uint64 {
	h, _ := hilbert.NewHilbert(1 << tileID.Z)
	position, _ := h.MapInverse(int(tileID.X), int(tileID.Y))
	return zoomBase(tileID.Z) + uint64(position)
}

func DecodeTileID(tileCode uint64) tile.ID {
	z := uint32(bits.Len64(3*tileCode+1)-1) / 2
	h, _ := hilbert.NewHilbert(1 << z)
	x, y, _ := h.Map(int(tileCode - zoomBase(z)))
	return tile.ID{X: uint32(x), Y: uint32(y), Z: z}
}
