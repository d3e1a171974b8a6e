package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eak1mov/go-mapprep/archive"
	"github.com/eak1mov/go-mapprep/prep"
	"github.com/eak1mov/go-mapprep/texture"
	"github.com/google/subcommands"
)

// pathList collects a repeated path flag.
type pathList []string

func (p *pathList) String() string     { return strings.Join(*p, ",") }
func (p *pathList) Set(v string) error { *p = append(*p, v); return nil }

type extractCmd struct {
	inputPaths  pathList
	outputPath  string
	configPath  string
	categories  string
	sink        string
	dryRun      bool
	optimizePNG bool
	verbose     bool
}

func (c *extractCmd) Name() string     { return "extract" }
func (c *extractCmd) Synopsis() string { return "extract sprite atlases, map pyramids and sheet sprites" }
func (c *extractCmd) Usage() string {
	return "mapprep extract -i <dir> [-i <dir>...] -o <dir> [-config <file>] [-category sprites,maps,sheets] [-sink xyz|mbtiles|pmtiles] [-d] [-c] [-v]\n"
}
func (c *extractCmd) SetFlags(f *flag.FlagSet) {
	f.Var(&c.inputPaths, "i", "Extracted archive directory, later ones override earlier ones (repeatable)")
	f.StringVar(&c.outputPath, "o", "", "Output directory")
	f.StringVar(&c.configPath, "config", "", "Job config file (toml, yaml, json)")
	f.StringVar(&c.categories, "category", "", "Comma-separated categories to extract (sprites, maps, sheets)")
	f.StringVar(&c.sink, "sink", "", "Map tile storage (xyz, mbtiles, pmtiles)")
	f.BoolVar(&c.dryRun, "d", false, "Dry run, decode and encode without writing files")
	f.BoolVar(&c.optimizePNG, "c", false, "Compress PNG files harder")
	f.BoolVar(&c.verbose, "v", false, "Verbose logging")
}

func (c *extractCmd) config() (prep.Config, error) {
	config, err := prep.LoadConfig(c.configPath)
	if err != nil {
		return prep.Config{}, err
	}
	if c.categories != "" {
		config.Categories = strings.Split(c.categories, ",")
	}
	if c.sink != "" {
		config.Sink = c.sink
	}
	config.DryRun = config.DryRun || c.dryRun
	config.OptimizePNG = config.OptimizePNG || c.optimizePNG
	return config, nil
}

func (c *extractCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}
	config, err := c.config()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return subcommands.ExitFailure
	}
	if len(c.inputPaths) == 0 || (c.outputPath == "" && !config.DryRun) {
		slog.Error("input and output paths are required")
		return subcommands.ExitUsageError
	}

	layers := make([]archive.Accessor, 0, len(c.inputPaths))
	for _, path := range c.inputPaths {
		layer, err := archive.Dir(path)
		if err != nil {
			slog.Error("failed to open archive", "path", path, "error", err)
			return subcommands.ExitFailure
		}
		layers = append(layers, layer)
	}

	progress := newBarProgress("extracting")
	runner, err := prep.NewRunner(config, archive.Overlay(layers...), texture.ImageDecoder{}, c.outputPath,
		prep.WithLogger(slog.Default()),
		prep.WithProgress(progress),
	)
	if err != nil {
		slog.Error("invalid config", "error", err)
		return subcommands.ExitFailure
	}

	summary := runner.Run(ctx)
	progress.Finish()
	fmt.Println()

	slog.Info("extraction finished", "succeeded", summary.Succeeded, "skipped", summary.Skipped, "failed", summary.Failed)
	if err := summary.Err(); err != nil {
		slog.Error("some items failed", "error", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
