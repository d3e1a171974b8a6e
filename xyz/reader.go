package xyz

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/eak1mov/go-mapprep/tile"
)

// Reader implements tile.Reader and tile.Visitor interfaces for tiles in XYZ format.
type Reader struct {
	filePattern string
	rootDir     string
	pathRegexp  *regexp.Regexp
}

// NewReader creates a new Reader for the given file pattern (e.g. "/home/user/maps/3/{z}/{y}_{x}.webp").
func NewReader(filePattern string) (*Reader, error) {
	if err := validatePattern(filePattern); err != nil {
		return nil, err
	}
	pathRegexp, err := compilePattern(filePattern)
	if err != nil {
		return nil, err
	}
	return &Reader{filePattern, rootDir(filePattern), pathRegexp}, nil
}

func (r *Reader) ReadTile(tileID tile.ID) ([]byte, error) {
	filePath := formatPattern(r.filePattern, tileID)
	tileData, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return make([]byte, 0), nil
	}
	if err != nil {
		return nil, err
	}
	return tileData, nil
}

// VisitTiles visits files under the pattern root in lexical order.
// Files not matching the pattern are ignored.
func (r *Reader) VisitTiles(visitor func(tile.ID, []byte) error) error {
	return filepath.WalkDir(r.rootDir, func(filePath string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		matches := r.pathRegexp.FindStringSubmatch(filePath)
		if matches == nil {
			return nil
		}

		var coords [3]uint32
		for i, name := range []string{"x", "y", "z"} {
			value, err := strconv.ParseUint(matches[r.pathRegexp.SubexpIndex(name)], 10, 32)
			if err != nil {
				return err
			}
			coords[i] = uint32(value)
		}

		tileData, err := os.ReadFile(filePath)
		if err != nil {
			return err
		}

		return visitor(tile.ID{X: coords[0], Y: coords[1], Z: coords[2]}, tileData)
	})
}
