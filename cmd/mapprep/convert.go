package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/eak1mov/go-mapprep/index"
	"github.com/eak1mov/go-mapprep/mb"
	"github.com/eak1mov/go-mapprep/pm"
	"github.com/eak1mov/go-mapprep/pm/format"
	"github.com/eak1mov/go-mapprep/tile"
	"github.com/eak1mov/go-mapprep/xyz"
	"github.com/google/subcommands"
)

type convertCmd struct {
	inputFormat  string
	inputPath    string
	tilesPath    string
	outputFormat string
	outputPath   string
}

func (c *convertCmd) Name() string     { return "convert" }
func (c *convertCmd) Synopsis() string { return "convert a map pyramid between tile storage formats" }
func (c *convertCmd) Usage() string {
	return "mapprep convert -i <path> -o <path> [-if <format> | -of <format>] [-t <path>]\n"
}
func (c *convertCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input path")
	f.StringVar(&c.inputFormat, "if", "", "Input format (mbtiles, pmtiles, xyz, index)")
	f.StringVar(&c.tilesPath, "t", "", "Tile data file of an index input")
	f.StringVar(&c.outputPath, "o", "", "Output path")
	f.StringVar(&c.outputFormat, "of", "", "Output format (mbtiles, pmtiles, xyz)")
}

// pyramidMetadata is the metadata carried over between formats.
type pyramidMetadata struct {
	Format  string
	MinZoom uint8
	MaxZoom uint8
	JSON    []byte
}

func readMetadata(reader tile.Visitor) (pyramidMetadata, error) {
	var result pyramidMetadata
	switch r := reader.(type) {
	case *mb.Reader:
		metadata, err := r.ReadMetadata()
		if err != nil {
			return result, err
		}
		result.Format = metadata["format"]
		result.JSON = []byte(metadata["json"])
		for key, value := range map[string]*uint8{"minzoom": &result.MinZoom, "maxzoom": &result.MaxZoom} {
			if s, found := metadata[key]; found {
				z, err := strconv.ParseUint(s, 10, 8)
				if err != nil {
					return result, fmt.Errorf("metadata %s: %w", key, err)
				}
				*value = uint8(z)
			}
		}
	case *pm.Reader:
		header := r.HeaderMetadata()
		metadata, err := r.ReadMetadata()
		if err != nil {
			return result, err
		}
		result.Format = header.TileType.Extension()
		result.MinZoom = header.MinZoom
		result.MaxZoom = header.MaxZoom
		result.JSON = metadata
	}
	return result, nil
}

func (m pyramidMetadata) mbMetadata() map[string]string {
	metadata := map[string]string{
		"minzoom": strconv.Itoa(int(m.MinZoom)),
		"maxzoom": strconv.Itoa(int(m.MaxZoom)),
	}
	if m.Format != "" {
		metadata["format"] = m.Format
	}
	if len(m.JSON) > 0 {
		metadata["json"] = string(m.JSON)
	}
	return metadata
}

func (m pyramidMetadata) pmHeaderMetadata() pm.HeaderMetadata {
	header := pm.HeaderMetadata{
		TileCompression: format.CompressionNone,
		TileType:        format.TileTypeForExtension(m.Format),
		MinZoom:         m.MinZoom,
		MaxZoom:         m.MaxZoom,
	}
	if header.TileType == format.TileTypeMvt {
		header.TileCompression = format.CompressionGzip
	}
	return header
}

func (c *convertCmd) openReader(inputFormat string) (tile.Visitor, error) {
	switch inputFormat {
	case "mbtiles":
		return mb.NewReader(c.inputPath)
	case "pmtiles":
		return pm.NewFileReader(c.inputPath)
	case "index":
		return index.NewFileReader(c.inputPath, c.tilesPath)
	case "xyz", "":
		return xyz.NewReader(c.inputPath)
	}
	return nil, fmt.Errorf("invalid input format: %q", inputFormat)
}

func (c *convertCmd) openWriter(outputFormat string, metadata pyramidMetadata) (tile.Writer, error) {
	logger := slog.Default()
	switch outputFormat {
	case "mbtiles":
		return mb.NewWriter(c.outputPath, mb.WithMetadata(metadata.mbMetadata()), mb.WithLogger(logger))
	case "pmtiles":
		return pm.NewWriter(
			c.outputPath,
			pm.WithMetadata(metadata.JSON),
			pm.WithHeaderMetadata(metadata.pmHeaderMetadata()),
			pm.WithLogger(logger),
		)
	case "xyz", "":
		return xyz.NewWriter(c.outputPath, xyz.WithLogger(logger))
	}
	return nil, fmt.Errorf("invalid output format: %q", outputFormat)
}

func (c *convertCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	reader, err := c.openReader(deduceFormat(c.inputFormat, c.inputPath))
	if err != nil {
		slog.Error("failed to open input", "path", c.inputPath, "error", err)
		return subcommands.ExitFailure
	}
	if closer, ok := reader.(io.Closer); ok {
		defer closer.Close()
	}

	metadata, err := readMetadata(reader)
	if err != nil {
		slog.Error("failed to read metadata", "error", err)
		return subcommands.ExitFailure
	}

	writer, err := c.openWriter(deduceFormat(c.outputFormat, c.outputPath), metadata)
	if err != nil {
		slog.Error("failed to open output", "path", c.outputPath, "error", err)
		return subcommands.ExitFailure
	}
	if closer, ok := writer.(io.Closer); ok {
		defer closer.Close()
	}

	bar := newSpinner("converting")
	counter := &tile.Counter{Writer: writer, OnTile: func(tile.ID) { bar.Add(1) }}
	count, err := tile.Copy(counter, reader)
	bar.Finish()
	fmt.Println()

	if err != nil {
		slog.Error("conversion failed", "tiles", count, "error", err)
		return subcommands.ExitFailure
	}
	slog.Info("conversion finished", "tiles", count, "bytes", counter.Bytes())
	return subcommands.ExitSuccess
}
