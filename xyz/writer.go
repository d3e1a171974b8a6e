package xyz

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/eak1mov/go-mapprep/tile"
)

// Writer implements tile.Writer interface for tiles in XYZ format.
// It is safe for concurrent use.
type Writer struct {
	filePattern string
	logger      *slog.Logger
	dirs        sync.Map // directory path -> struct{}
}

type writerConfig struct {
	Logger *slog.Logger
}

type WriterOption func(*writerConfig)

func WithLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) { c.Logger = logger }
}

// NewWriter creates a new Writer for the given file pattern (e.g. "/home/user/maps/3/{z}/{y}_{x}.webp").
func NewWriter(filePattern string, opts ...WriterOption) (*Writer, error) {
	config := writerConfig{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}
	if err := validatePattern(filePattern); err != nil {
		return nil, err
	}
	return &Writer{filePattern: filePattern, logger: config.Logger}, nil
}

func (w *Writer) WriteTile(tileID tile.ID, tileData []byte) error {
	filePath := formatPattern(w.filePattern, tileID)

	dirPath := filepath.Dir(filePath)
	if _, ok := w.dirs.Load(dirPath); !ok {
		if err := os.MkdirAll(dirPath, 0755); err != nil {
			return err
		}
		w.dirs.Store(dirPath, struct{}{})
	}

	return os.WriteFile(filePath, tileData, 0644)
}

func (w *Writer) Finalize() error {
	w.logger.Debug("mapprep: xyz tiles written", "root", rootDir(w.filePattern))
	return nil
}
