// Package mb stores map pyramids in MBTiles (SQLite) files.
//
// Rows are stored in the TMS scheme required by MBTiles; tile.ID rows are
// flipped on the way in and out.
//
// Note: User must properly initialize the sqlite3 library generic driver
// (e.g. import _ "github.com/mattn/go-sqlite3") before using this package.
package mb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eak1mov/go-mapprep/tile"
)

var ErrNoMetadata = errors.New("mapprep: metadata entry not found")

// Reader implements tile.Reader and tile.Visitor interfaces for MBTiles format.
type Reader struct {
	db   *sql.DB
	stmt *sql.Stmt
}

// NewReader opens an MBTiles file read-only.
//
// The returned Reader must be closed after use to release database resources.
func NewReader(filePath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", filePath))
	if err != nil {
		return nil, err
	}

	stmt, err := db.Prepare("SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?")
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Reader{db: db, stmt: stmt}, nil
}

func (r *Reader) Close() error {
	return errors.Join(r.stmt.Close(), r.db.Close())
}

func (r *Reader) ReadMetadata() (map[string]string, error) {
	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		metadata[name] = value
	}
	return metadata, rows.Err()
}

// ReadMetadataJSON decodes the JSON value of the named metadata entry into v.
func (r *Reader) ReadMetadataJSON(name string, v any) error {
	var value string
	err := r.db.QueryRow("SELECT value FROM metadata WHERE name = ?", name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNoMetadata, name)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(value), v)
}

func flipY(y, z uint32) uint32 {
	return (1 << z) - 1 - y
}

func (r *Reader) ReadTile(tileID tile.ID) ([]byte, error) {
	var tileData []byte
	err := r.stmt.QueryRow(tileID.Z, tileID.X, flipY(tileID.Y, tileID.Z)).Scan(&tileData)
	if errors.Is(err, sql.ErrNoRows) {
		return make([]byte, 0), nil
	}
	if err != nil {
		return nil, err
	}
	return tileData, nil
}

func (r *Reader) VisitTiles(visitor func(tile.ID, []byte) error) error {
	return r.visit(visitor, "SELECT zoom_level, tile_column, tile_row, tile_data FROM tiles")
}

// VisitZoom visits the tiles of a single zoom level.
func (r *Reader) VisitZoom(z uint32, visitor func(tile.ID, []byte) error) error {
	return r.visit(visitor, "SELECT zoom_level, tile_column, tile_row, tile_data FROM tiles WHERE zoom_level = ?", z)
}

func (r *Reader) visit(visitor func(tile.ID, []byte) error, query string, args ...any) error {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var x, y, z uint32
		var tileData []byte
		if err := rows.Scan(&z, &x, &y, &tileData); err != nil {
			return err
		}
		if err := visitor(tile.ID{X: x, Y: flipY(y, z), Z: z}, tileData); err != nil {
			return err
		}
	}
	return rows.Err()
}
