// Package pm stores map pyramids in single-file PMTiles v3 archives.
package pm

import "github.com/eak1mov/go-mapprep/pm/format"

// HeaderMetadata holds the header fields describing tile contents.
// Map pyramids are pixel grids, so geographic bounds are left empty.
type HeaderMetadata struct {
	TileCompression format.Compression
	TileType        format.TileType
	MinZoom         uint8
	MaxZoom         uint8
	CenterZoom      uint8
}

func (m *HeaderMetadata) copyFromHeader(header *format.Header) {
	m.TileCompression = header.TileCompression
	m.TileType = header.TileType
	m.MinZoom = header.MinZoom
	m.MaxZoom = header.MaxZoom
	m.CenterZoom = header.CenterZoom
}

func (m *HeaderMetadata) copyToHeader(header *format.Header) {
	header.TileCompression = m.TileCompression
	header.TileType = m.TileType
	header.MinZoom = m.MinZoom
	header.MaxZoom = m.MaxZoom
	header.CenterZoom = m.CenterZoom
}
