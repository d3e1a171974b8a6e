// Package archive resolves logical game file paths to byte streams.
//
// Logical paths may use either '\' or '/' as separator and may start with a
// separator; they are normalized to slash-separated relative paths.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"slices"
	"strings"
)

var ErrNotFound = errors.New("mapprep: file not found in archive")

// Accessor gives random access to the files of an archive.
type Accessor interface {
	// Open returns a reader for the file or an error wrapping ErrNotFound.
	Open(name string) (io.ReadCloser, error)

	// Names yields every logical path in the archive in sorted order.
	Names() iter.Seq[string]
}

// Clean normalizes a logical path.
func Clean(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	return strings.TrimLeft(name, "/")
}

type fsAccessor struct {
	fsys  fs.FS
	names []string
}

// FromFS returns an accessor over a file system. The file list is read once.
func FromFS(fsys fs.FS) (Accessor, error) {
	var names []string
	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	slices.Sort(names)
	return &fsAccessor{fsys: fsys, names: names}, nil
}

// Dir returns an accessor over an extracted archive directory.
func Dir(path string) (Accessor, error) {
	return FromFS(os.DirFS(path))
}

func (a *fsAccessor) Open(name string) (io.ReadCloser, error) {
	file, err := a.fsys.Open(Clean(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (a *fsAccessor) Names() iter.Seq[string] {
	return slices.Values(a.names)
}

type overlay struct {
	layers []Accessor
}

// Overlay stacks accessors; files of later accessors override earlier ones.
func Overlay(layers ...Accessor) Accessor {
	return &overlay{layers: layers}
}

func (o *overlay) Open(name string) (io.ReadCloser, error) {
	for _, layer := range slices.Backward(o.layers) {
		r, err := layer.Open(name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return r, err
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

func (o *overlay) Names() iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := make(map[string]struct{})
		for _, layer := range o.layers {
			for name := range layer.Names() {
				seen[Clean(name)] = struct{}{}
			}
		}
		names := make([]string, 0, len(seen))
		for name := range seen {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			if !yield(name) {
				return
			}
		}
	}
}

// Match matches a logical path against a pattern with a single '*' and
// returns the text captured by the wildcard.
func Match(pattern, name string) (string, bool) {
	prefix, suffix, found := strings.Cut(Clean(pattern), "*")
	name = Clean(name)
	if !found {
		return "", name == prefix
	}
	if len(name) < len(prefix)+len(suffix) {
		return "", false
	}
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return "", false
	}
	return name[len(prefix) : len(name)-len(suffix)], true
}

// Expand replaces the '*' of a pattern.
func Expand(pattern, value string) string {
	return strings.Replace(pattern, "*", value, 1)
}
