// Package atlas packs equally sized sprites into a single grid image.
package atlas

import (
	"errors"
	"fmt"

	"github.com/eak1mov/go-mapprep/raster"
)

var (
	ErrDimensionMismatch = errors.New("mapprep: source dimensions are not a multiple of cell dimensions")
	ErrSizeMismatch      = errors.New("mapprep: sprite size mismatch")
	ErrAtlasFull         = errors.New("mapprep: atlas is full")
	ErrFinished          = errors.New("mapprep: atlas already finished")
)

// GridSize returns the near-square grid used for count sprites:
// columns = ceil(sqrt(count)), rows = ceil(count / columns).
//
// For counts that are not perfect squares this keeps the grid as square as
// possible, e.g. 15 sprites give 4x4 and 17 sprites give 5x4.
func GridSize(count int) (columns, rows int) {
	if count <= 0 {
		return 0, 0
	}
	for columns*columns < count {
		columns++
	}
	rows = (count + columns - 1) / columns
	return columns, rows
}

// Manifest describes where each sprite is stored in the atlas image.
type Manifest struct {
	Columns        uint32    `json:"columns"`
	CellDimensions [2]uint32 `json:"cell_dimensions"`
	// OrderedNames[i] is stored at cell (i % Columns, i / Columns).
	OrderedNames []string `json:"ordered_names"`
}

// Cell returns the grid position of the i-th sprite.
func (m Manifest) Cell(i int) (x, y uint32) {
	return uint32(i) % m.Columns, uint32(i) / m.Columns
}

// Index returns the insertion index of the named sprite, or -1.
func (m Manifest) Index(name string) int {
	for i, n := range m.OrderedNames {
		if n == name {
			return i
		}
	}
	return -1
}

// Packer places sprites into consecutive grid cells, row by row.
// It must be finished with Finish, after which it can no longer be used.
type Packer struct {
	image    *raster.Buffer
	source   raster.Dimensions
	cell     raster.Dimensions
	scaleX   uint32
	scaleY   uint32
	columns  int
	rows     int
	names    []string
	finished bool
}

// NewPacker creates a packer for expected sprites of the source size, each
// downscaled to the cell size.
func NewPacker(source, cell raster.Dimensions, expected int) (*Packer, error) {
	if expected <= 0 {
		return nil, fmt.Errorf("%w: expected sprite count %d", raster.ErrInvalidSize, expected)
	}
	if cell.Width == 0 || cell.Height == 0 || source.Width == 0 || source.Height == 0 {
		return nil, fmt.Errorf("%w: source %v, cell %v", raster.ErrInvalidSize, source, cell)
	}
	if source.Width%cell.Width != 0 || source.Height%cell.Height != 0 {
		return nil, fmt.Errorf("%w: %v %% %v != 0", ErrDimensionMismatch, source, cell)
	}

	columns, rows := GridSize(expected)
	return &Packer{
		image:   raster.New(cell.Width*uint32(columns), cell.Height*uint32(rows)),
		source:  source,
		cell:    cell,
		scaleX:  source.Width / cell.Width,
		scaleY:  source.Height / cell.Height,
		columns: columns,
		rows:    rows,
	}, nil
}

// Len returns the number of sprites added so far.
func (p *Packer) Len() int {
	return len(p.names)
}

// Capacity returns the number of cells in the grid.
func (p *Packer) Capacity() int {
	return p.columns * p.rows
}

// Add downscales img and stores it in the next free cell under name.
func (p *Packer) Add(img *raster.Buffer, name string) error {
	if p.finished {
		return ErrFinished
	}
	if got := img.Dimensions(); got != p.source {
		return fmt.Errorf("%w: %q expected %v, got %v", ErrSizeMismatch, name, p.source, got)
	}

	index := len(p.names)
	cellX, cellY := index%p.columns, index/p.columns
	if cellY >= p.rows {
		return fmt.Errorf("%w: sprite %d (%q) does not fit into %dx%d cells", ErrAtlasFull, index, name, p.columns, p.rows)
	}

	scaled, err := img.ScaleDown(p.scaleX, p.scaleY)
	if err != nil {
		return fmt.Errorf("scale %q: %w", name, err)
	}
	if err := p.image.Blit(uint32(cellX)*p.cell.Width, uint32(cellY)*p.cell.Height, scaled); err != nil {
		return fmt.Errorf("blit %q: %w", name, err)
	}

	p.names = append(p.names, name)
	return nil
}

// Finish returns the atlas image and its manifest and invalidates the packer.
func (p *Packer) Finish() (*raster.Buffer, Manifest) {
	if p.finished {
		panic(ErrFinished)
	}
	p.finished = true

	image := p.image
	manifest := Manifest{
		Columns:        uint32(p.columns),
		CellDimensions: [2]uint32{p.cell.Width, p.cell.Height},
		OrderedNames:   p.names,
	}
	p.image, p.names = nil, nil
	return image, manifest
}
