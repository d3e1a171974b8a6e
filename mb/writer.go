package mb

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/eak1mov/go-mapprep/tile"
)

// Writer implements tile.Writer interface for MBTiles format.
// It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	db     *sql.DB
	stmt   *sql.Stmt
	logger *slog.Logger
}

type writerConfig struct {
	Metadata map[string]string
	Logger   *slog.Logger
}

type WriterOption func(*writerConfig)

// WithMetadata sets rows of the metadata table (e.g. "name", "format", "json").
func WithMetadata(metadata map[string]string) WriterOption {
	return func(c *writerConfig) { c.Metadata = metadata }
}

func WithLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) { c.Logger = logger }
}

// NewWriter creates a new Writer for writing to a MBTiles file.
// It applies given options and initializes database for writing tiles.
func NewWriter(filePath string, opts ...WriterOption) (*Writer, error) {
	config := writerConfig{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	var err error
	db, err := sql.Open("sqlite3", filePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()
	// a single connection keeps the prepared statement on one sqlite handle
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE metadata (name TEXT, value TEXT);
		CREATE TABLE tiles (
			zoom_level INTEGER,
			tile_column INTEGER,
			tile_row INTEGER,
			tile_data BLOB
		);
	`)
	if err != nil {
		return nil, err
	}

	for _, k := range slices.Sorted(maps.Keys(config.Metadata)) {
		_, err = db.Exec("INSERT INTO metadata (name, value) VALUES (?, ?)", k, config.Metadata[k])
		if err != nil {
			return nil, err
		}
	}

	stmt, err := db.Prepare("INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return nil, err
	}

	return &Writer{db: db, stmt: stmt, logger: config.Logger}, nil
}

func (w *Writer) Close() error {
	return errors.Join(w.stmt.Close(), w.db.Close())
}

func (w *Writer) WriteTile(tileID tile.ID, tileData []byte) error {
	if !tileID.Valid() {
		return fmt.Errorf("mapprep: invalid tile %v", tileID)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.stmt.Exec(tileID.Z, tileID.X, flipY(tileID.Y, tileID.Z), tileData)
	return err
}

func (w *Writer) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.logger.Debug("mapprep: creating index")
	_, err := w.db.Exec("CREATE UNIQUE INDEX tile_index ON tiles (zoom_level, tile_column, tile_row)")

	w.logger.Debug("mapprep: done!")
	return err
}
