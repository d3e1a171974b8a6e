// Package prep runs the batch jobs that turn archived textures into web
// artifacts: sprite atlases, map tile pyramids and cut-out sheet sprites.
//
// A failing sprite, map or region is logged and counted, and the run
// continues with the next one. Run returns a Summary of the whole batch.
package prep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/eak1mov/go-mapprep/archive"
	"github.com/eak1mov/go-mapprep/raster"
	"github.com/eak1mov/go-mapprep/sheet"
	"github.com/eak1mov/go-mapprep/texture"
)

// Summary counts the outcome of every unit of work of a run.
type Summary struct {
	mu        sync.Mutex
	Succeeded int
	Skipped   int
	Failed    int
	errs      []error
}

func (s *Summary) succeed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Succeeded++
}

func (s *Summary) skip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Skipped++
}

func (s *Summary) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failed++
	s.errs = append(s.errs, err)
}

// Err joins the errors of all failed units, or returns nil.
func (s *Summary) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.errs...)
}

func (s *Summary) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%d succeeded, %d skipped, %d failed", s.Succeeded, s.Skipped, s.Failed)
}

// Progress receives the amount of planned and finished work. Both methods
// may be called concurrently.
type Progress interface {
	// Expect adds n units to the planned work.
	Expect(n int)
	// Done marks n units as finished.
	Done(n int)
}

type nopProgress struct{}

func (nopProgress) Expect(int) {}
func (nopProgress) Done(int)   {}

// Runner executes the jobs of a Config against one archive.
type Runner struct {
	config   Config
	archive  archive.Accessor
	decoder  texture.Decoder
	output   string
	logger   *slog.Logger
	progress Progress

	// serializes archive reads and decoding
	archiveMu sync.Mutex
}

type runnerConfig struct {
	Logger   *slog.Logger
	Progress Progress
}

type Option func(*runnerConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *runnerConfig) { c.Logger = logger }
}

func WithProgress(progress Progress) Option {
	return func(c *runnerConfig) { c.Progress = progress }
}

// NewRunner validates config and returns a Runner writing below output.
func NewRunner(config Config, a archive.Accessor, d texture.Decoder, output string, opts ...Option) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	rc := runnerConfig{
		Logger:   slog.New(slog.DiscardHandler),
		Progress: nopProgress{},
	}
	for _, opt := range opts {
		opt(&rc)
	}
	return &Runner{
		config:   config,
		archive:  a,
		decoder:  d,
		output:   output,
		logger:   rc.Logger,
		progress: rc.Progress,
	}, nil
}

// Run executes every enabled job. Cancelling ctx stops the run after the
// current unit of work; the cancellation is reported as a failure.
func (r *Runner) Run(ctx context.Context) *Summary {
	summary := &Summary{}

	if r.config.Enabled(CategorySprites) {
		for _, set := range r.config.Sprites {
			if err := ctx.Err(); err != nil {
				summary.fail(err)
				return summary
			}
			r.logger.Info("extracting sprites", "subdir", set.Subdir)
			r.runSprites(ctx, set, summary)
		}
	}

	if r.config.Enabled(CategoryMaps) {
		for _, set := range r.config.Maps {
			if err := ctx.Err(); err != nil {
				summary.fail(err)
				return summary
			}
			r.logger.Info("extracting maps", "subdir", set.Subdir)
			r.runMaps(ctx, set, summary)
		}
	}

	if r.config.Enabled(CategorySheets) && len(r.config.Sheets) > 0 {
		var opts []sheet.Option
		if r.config.SheetCacheSize > 0 {
			opts = append(opts, sheet.WithCacheSize(r.config.SheetCacheSize))
		}
		cutter, err := sheet.NewCutter(r.archive, r.decoder, append(opts, sheet.WithLogger(r.logger))...)
		if err != nil {
			summary.fail(fmt.Errorf("sheets: %w", err))
			return summary
		}
		defer cutter.Close()
		for _, set := range r.config.Sheets {
			if err := ctx.Err(); err != nil {
				summary.fail(err)
				return summary
			}
			r.logger.Info("cutting sheets", "subdir", set.Subdir)
			r.runSheets(ctx, cutter, set, summary)
		}
	}

	r.logger.Info("run finished", "succeeded", summary.Succeeded, "skipped", summary.Skipped, "failed", summary.Failed)
	return summary
}

// decode returns texture index of the named container. The caller holds
// archiveMu.
func (r *Runner) decode(name string, index int) (texture.Texture, error) {
	file, err := r.archive.Open(name)
	if err != nil {
		return texture.Texture{}, err
	}
	defer file.Close()
	return texture.Nth(r.decoder, file, index)
}

// dimensions returns the size of the first texture of the named container.
// The caller holds archiveMu.
func (r *Runner) dimensions(name string) (raster.Dimensions, error) {
	file, err := r.archive.Open(name)
	if err != nil {
		return raster.Dimensions{}, err
	}
	defer file.Close()
	return texture.Dimensions(r.decoder, file)
}

// outputPath maps a slash-separated output name to a file path.
func (r *Runner) outputPath(name string) string {
	return filepath.Join(r.output, filepath.FromSlash(name))
}

func (r *Runner) writeFile(name string, data []byte) error {
	if r.config.DryRun {
		r.logger.Debug("dry run, skipping write", "file", name, "bytes", len(data))
		return nil
	}
	path := r.outputPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	r.logger.Debug("writing file", "file", name, "bytes", len(data))
	return os.WriteFile(path, data, 0o644)
}

func (r *Runner) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return r.writeFile(name, append(data, '\n'))
}
