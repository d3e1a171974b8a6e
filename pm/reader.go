package pm

import (
	"os"

	"github.com/eak1mov/go-mapprep/pm/format"
	"github.com/eak1mov/go-mapprep/tile"
)

// FileAccessFunc reads length bytes at offset of a PMTiles archive.
type FileAccessFunc = func(offset, length uint64) ([]byte, error)

// Reader implements tile.Reader, tile.Visitor and tile.LocationReader
// interfaces for PMTiles format.
type Reader struct {
	fileAccess FileAccessFunc
	fileCloser func() error
	header     *format.Header
}

// NewFileReader opens a PMTiles file. The returned Reader must be closed.
func NewFileReader(filePath string) (*Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	reader, err := NewReader(func(offset, length uint64) ([]byte, error) {
		buffer := make([]byte, length)
		if _, err := file.ReadAt(buffer, int64(offset)); err != nil {
			return nil, err
		}
		return buffer, nil
	})
	if err != nil {
		file.Close()
		return nil, err
	}
	reader.fileCloser = file.Close
	return reader, nil
}

// NewReader creates a Reader over an arbitrary byte source.
func NewReader(fileAccess FileAccessFunc) (*Reader, error) {
	headerData, err := fileAccess(0, format.HeaderLength)
	if err != nil {
		return nil, err
	}
	header, err := format.DeserializeHeader(headerData)
	if err != nil {
		return nil, err
	}
	return &Reader{
		fileAccess: fileAccess,
		fileCloser: func() error { return nil },
		header:     header,
	}, nil
}

func (r *Reader) Close() error {
	return r.fileCloser()
}

func (r *Reader) HeaderMetadata() HeaderMetadata {
	var result HeaderMetadata
	result.copyFromHeader(r.header)
	return result
}

// TileCount returns the number of addressed tiles.
func (r *Reader) TileCount() uint64 {
	return r.header.AddressedTilesCount
}

// ReadMetadata returns the decompressed JSON metadata block.
func (r *Reader) ReadMetadata() ([]byte, error) {
	if r.header.MetadataLength == 0 {
		return nil, nil
	}
	data, err := r.fileAccess(r.header.MetadataOffset, r.header.MetadataLength)
	if err != nil {
		return nil, err
	}
	return format.Decompress(data, r.header.InternalCompression)
}

func (r *Reader) readDirectory(offset, length uint64) ([]format.Entry, error) {
	compressed, err := r.fileAccess(offset, length)
	if err != nil {
		return nil, err
	}
	data, err := format.Decompress(compressed, r.header.InternalCompression)
	if err != nil {
		return nil, err
	}
	return format.DeserializeDirectory(data)
}

// ReadLocation returns the absolute position of tile data, or a zero
// Location if the tile does not exist.
func (r *Reader) ReadLocation(tileID tile.ID) (tile.Location, error) {
	tileCode := format.EncodeTileID(tileID)
	offset, length := r.header.RootOffset, r.header.RootLength
	for {
		entries, err := r.readDirectory(offset, length)
		if err != nil {
			return tile.Location{}, err
		}
		entry, found := format.FindEntry(entries, tileCode)
		if !found {
			return tile.Location{}, nil
		}
		if entry.RunLength > 0 {
			return tile.Location{
				Offset: r.header.TileDataOffset + entry.Offset,
				Length: uint64(entry.Length),
			}, nil
		}
		offset, length = r.header.LeafDirectoryOffset+entry.Offset, uint64(entry.Length)
	}
}

func (r *Reader) ReadTile(tileID tile.ID) ([]byte, error) {
	location, err := r.ReadLocation(tileID)
	if err != nil {
		return nil, err
	}
	if location.Length == 0 {
		return make([]byte, 0), nil
	}
	return r.fileAccess(location.Offset, location.Length)
}

// VisitTiles visits tiles in tile code order.
func (r *Reader) VisitTiles(visitor func(tile.ID, []byte) error) error {
	var traverse func(offset, length uint64) error
	traverse = func(offset, length uint64) error {
		entries, err := r.readDirectory(offset, length)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.RunLength == 0 {
				if err := traverse(r.header.LeafDirectoryOffset+entry.Offset, uint64(entry.Length)); err != nil {
					return err
				}
				continue
			}
			tileData, err := r.fileAccess(r.header.TileDataOffset+entry.Offset, uint64(entry.Length))
			if err != nil {
				return err
			}
			for i := range uint64(entry.RunLength) {
				if err := visitor(format.DecodeTileID(entry.TileCode+i), tileData); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return traverse(r.header.RootOffset, r.header.RootLength)
}
