package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/eak1mov/go-mapprep/index"
	"github.com/eak1mov/go-mapprep/tile"
	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
)

type exportCmd struct {
	inputFormat     string
	inputPath       string
	outputIndexPath string
	outputTilesPath string
}

func (c *exportCmd) Name() string     { return "export_index" }
func (c *exportCmd) Synopsis() string { return "export a map pyramid as tile index and data files" }
func (c *exportCmd) Usage() string {
	return "mapprep export_index -i <path> -o <path> -t <path> [-if <format>]\n"
}
func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input path")
	f.StringVar(&c.inputFormat, "if", "", "Input format (mbtiles, pmtiles, xyz)")
	f.StringVar(&c.outputIndexPath, "o", "", "Output index file path")
	f.StringVar(&c.outputTilesPath, "t", "", "Output tiles file path")
}

func (c *exportCmd) export(reader tile.Visitor) (int, error) {
	tilesFile, err := os.Create(c.outputTilesPath)
	if err != nil {
		return 0, err
	}
	defer tilesFile.Close()
	tilesWriter := bufio.NewWriter(tilesFile)

	bar := progressbar.DefaultBytes(-1, "exporting")
	items, err := index.Export(reader, io.MultiWriter(tilesWriter, bar))
	bar.Finish()
	fmt.Println()
	if err != nil {
		return 0, err
	}
	if err := tilesWriter.Flush(); err != nil {
		return 0, err
	}
	if err := tilesFile.Close(); err != nil {
		return 0, err
	}

	indexFile, err := os.Create(c.outputIndexPath)
	if err != nil {
		return 0, err
	}
	defer indexFile.Close()
	indexWriter := bufio.NewWriter(indexFile)
	if err := index.Write(indexWriter, items); err != nil {
		return 0, err
	}
	if err := indexWriter.Flush(); err != nil {
		return 0, err
	}
	return len(items), indexFile.Close()
}

func (c *exportCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.outputIndexPath == "" || c.outputTilesPath == "" {
		slog.Error("index and tiles paths are required")
		return subcommands.ExitUsageError
	}

	inputFormat := deduceFormat(c.inputFormat, c.inputPath)
	if inputFormat == "index" {
		slog.Error("input is already an index", "path", c.inputPath)
		return subcommands.ExitUsageError
	}
	reader, err := (&convertCmd{inputPath: c.inputPath}).openReader(inputFormat)
	if err != nil {
		slog.Error("failed to open input", "path", c.inputPath, "error", err)
		return subcommands.ExitFailure
	}
	if closer, ok := reader.(io.Closer); ok {
		defer closer.Close()
	}

	count, err := c.export(reader)
	if err != nil {
		slog.Error("export failed", "error", err)
		return subcommands.ExitFailure
	}
	slog.Info("export finished", "tiles", count)
	return subcommands.ExitSuccess
}
