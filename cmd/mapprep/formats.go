package main

import "path/filepath"

// deduceFormat returns format, or the tile storage implied by the file
// extension. Patterns like "maps/0/{z}/{y}_{x}.webp" deduce to "" (xyz).
func deduceFormat(format, filePath string) string {
	if format != "" {
		return format
	}
	switch filepath.Ext(filePath) {
	case ".mbtiles":
		return "mbtiles"
	case ".pmtiles":
		return "pmtiles"
	case ".index":
		return "index"
	}
	return ""
}
