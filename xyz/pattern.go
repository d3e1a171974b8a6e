// Package xyz stores pyramid tiles as individual files in a directory tree,
// with paths like "/maps/12/{z}/{y}_{x}.webp".
package xyz

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/eak1mov/go-mapprep/tile"
)

var ErrInvalidPattern = errors.New("mapprep: invalid file pattern")

// MapPattern returns the file pattern of one map pyramid under root.
func MapPattern(root, name, ext string) string {
	return filepath.Join(root, name, "{z}", "{y}_{x}."+ext)
}

func validatePattern(pattern string) error {
	for _, p := range []string{"{x}", "{y}", "{z}"} {
		if strings.Count(pattern, p) != 1 {
			return fmt.Errorf("%w: placeholder %v must occur exactly once in %q", ErrInvalidPattern, p, pattern)
		}
	}
	return nil
}

func formatPattern(pattern string, tileID tile.ID) string {
	return strings.NewReplacer(
		"{x}", strconv.FormatUint(uint64(tileID.X), 10),
		"{y}", strconv.FormatUint(uint64(tileID.Y), 10),
		"{z}", strconv.FormatUint(uint64(tileID.Z), 10),
	).Replace(pattern)
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	expr := regexp.QuoteMeta(pattern)
	expr = strings.NewReplacer(
		regexp.QuoteMeta("{x}"), `(?P<x>\d+)`,
		regexp.QuoteMeta("{y}"), `(?P<y>\d+)`,
		regexp.QuoteMeta("{z}"), `(?P<z>\d+)`,
	).Replace(expr)
	re, err := regexp.Compile("^" + expr + "$")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	return re, nil
}

// rootDir returns the deepest directory shared by every tile path.
func rootDir(pattern string) string {
	path0 := formatPattern(pattern, tile.ID{X: 0, Y: 0, Z: 0})
	path1 := formatPattern(pattern, tile.ID{X: 1, Y: 1, Z: 1})
	for path0 != path1 {
		path0 = filepath.Dir(path0)
		path1 = filepath.Dir(path1)
	}
	return path0
}
