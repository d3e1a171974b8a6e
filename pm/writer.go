package pm

import (
	"bufio"
	"cmp"
	"crypto/md5"
	"errors"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/eak1mov/go-mapprep/pm/format"
	"github.com/eak1mov/go-mapprep/tile"
)

var ErrFinalized = errors.New("mapprep: pmtiles writer already finalized")

// Writer implements tile.Writer interface for PMTiles format.
// Identical tiles are stored once. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	logger *slog.Logger
	file   *os.File
	header format.Header

	tileWriter *bufio.Writer
	tileOffset uint64

	entries   []format.Entry
	locations map[[16]byte]uint32 // hash -> entry index
}

type writerConfig struct {
	Metadata            []byte
	HeaderMetadata      HeaderMetadata
	InternalCompression format.Compression
	Logger              *slog.Logger
}

type WriterOption func(*writerConfig)

// WithMetadata sets the JSON metadata block.
func WithMetadata(metadata []byte) WriterOption {
	return func(c *writerConfig) { c.Metadata = metadata }
}

func WithHeaderMetadata(metadata HeaderMetadata) WriterOption {
	return func(c *writerConfig) { c.HeaderMetadata = metadata }
}

// WithInternalCompression sets the compression of directories and metadata.
// The default is gzip.
func WithInternalCompression(compression format.Compression) WriterOption {
	return func(c *writerConfig) { c.InternalCompression = compression }
}

func WithLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) { c.Logger = logger }
}

// NewWriter creates a PMTiles file. Tiles are appended as they are written,
// directories and header are written by Finalize.
func NewWriter(filePath string, opts ...WriterOption) (w *Writer, err error) {
	config := writerConfig{
		InternalCompression: format.CompressionGzip,
		Logger:              slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	var metadata []byte
	if len(config.Metadata) > 0 {
		metadata, err = format.Compress(config.Metadata, config.InternalCompression)
		if err != nil {
			return nil, err
		}
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			file.Close()
		}
	}()

	header := format.Header{
		HeaderMagic:         format.HeaderMagicV3,
		Clustered:           true,
		InternalCompression: config.InternalCompression,
	}
	config.HeaderMetadata.copyToHeader(&header)

	offset := uint64(format.HeaderRootDirMaxLength)
	if _, err = file.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if _, err = file.Write(metadata); err != nil {
			return nil, err
		}
		header.MetadataOffset = offset
		header.MetadataLength = uint64(len(metadata))
		offset += header.MetadataLength
	}
	header.TileDataOffset = offset

	return &Writer{
		logger:     config.Logger,
		file:       file,
		header:     header,
		tileWriter: bufio.NewWriter(file),
		locations:  make(map[[16]byte]uint32),
	}, nil
}

func (w *Writer) WriteTile(tileID tile.ID, tileData []byte) error {
	if len(tileData) == 0 {
		return nil
	}
	digest := md5.Sum(tileData)
	tileCode := format.EncodeTileID(tileID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tileWriter == nil {
		return ErrFinalized
	}

	w.header.AddressedTilesCount++
	if entryIdx, exists := w.locations[digest]; exists {
		w.entries = append(w.entries, format.Entry{
			TileCode:  tileCode,
			Offset:    w.entries[entryIdx].Offset,
			Length:    w.entries[entryIdx].Length,
			RunLength: 1,
		})
		return nil
	}

	if _, err := w.tileWriter.Write(tileData); err != nil {
		return err
	}
	w.locations[digest] = uint32(len(w.entries))
	w.entries = append(w.entries, format.Entry{
		TileCode:  tileCode,
		Offset:    w.tileOffset,
		Length:    uint32(len(tileData)),
		RunLength: 1,
	})
	w.tileOffset += uint64(len(tileData))
	w.header.TileContentsCount++
	return nil
}

func (w *Writer) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tileWriter == nil {
		return ErrFinalized
	}

	w.logger.Debug("mapprep: flush tiles", "tiles", w.header.AddressedTilesCount, "contents", w.header.TileContentsCount)
	if err := w.tileWriter.Flush(); err != nil {
		return err
	}
	w.header.TileDataLength = w.tileOffset
	w.tileWriter = nil

	slices.SortFunc(w.entries, func(a, b format.Entry) int {
		return cmp.Compare(a.TileCode, b.TileCode)
	})
	w.entries = format.CompactEntries(w.entries)
	w.header.TileEntriesCount = uint64(len(w.entries))

	w.logger.Debug("mapprep: serialize directories", "entries", len(w.entries))
	rootBytes, leavesBytes, err := format.SerializeAll(w.entries, w.header.InternalCompression)
	if err != nil {
		return err
	}

	leavesOffset, err := w.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := w.file.Write(leavesBytes); err != nil {
		return err
	}
	w.header.LeafDirectoryOffset = uint64(leavesOffset)
	w.header.LeafDirectoryLength = uint64(len(leavesBytes))

	if _, err := w.file.WriteAt(rootBytes, format.RootDirOffset); err != nil {
		return err
	}
	w.header.RootOffset = format.RootDirOffset
	w.header.RootLength = uint64(len(rootBytes))

	if _, err := w.file.WriteAt(format.SerializeHeader(&w.header), 0); err != nil {
		return err
	}

	err = w.file.Close()
	w.file = nil
	w.logger.Debug("mapprep: done!")
	return err
}

// Close releases the file of a writer that was not finalized.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
