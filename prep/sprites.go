package prep

import (
	"cmp"
	"context"
	"fmt"
	"path"
	"slices"
	"strconv"

	"github.com/eak1mov/go-mapprep/archive"
	"github.com/eak1mov/go-mapprep/atlas"
	"github.com/eak1mov/go-mapprep/encode"
	"github.com/eak1mov/go-mapprep/raster"
	"github.com/eak1mov/go-mapprep/texture"
)

// AtlasDir holds the manifests of all sprite atlases.
const AtlasDir = "texture-atlases"

type spriteEntry struct {
	file string
	id   int
}

// spriteEntries returns the files matching pattern ordered by numeric id.
func (r *Runner) spriteEntries(pattern string) []spriteEntry {
	var entries []spriteEntry
	for name := range r.archive.Names() {
		capture, ok := archive.Match(pattern, name)
		if !ok {
			continue
		}
		id, err := strconv.Atoi(capture)
		if err != nil || id < 0 {
			r.logger.Debug("ignoring sprite without numeric id", "file", name)
			continue
		}
		entries = append(entries, spriteEntry{file: name, id: id})
	}
	slices.SortFunc(entries, func(a, b spriteEntry) int {
		return cmp.Compare(a.id, b.id)
	})
	return entries
}

func (r *Runner) runSprites(ctx context.Context, set SpriteSet, summary *Summary) {
	logger := r.logger.With("subdir", set.Subdir)

	entries := r.spriteEntries(set.Pattern)
	if len(entries) == 0 {
		logger.Info("no sprites found", "pattern", set.Pattern)
		return
	}
	packer, err := atlas.NewPacker(set.source(), set.cell(), len(entries))
	if err != nil {
		summary.fail(fmt.Errorf("sprites %s: %w", set.Subdir, err))
		return
	}
	atlasEncoder, err := encode.ForExtension(set.AtlasFormat, r.config.OptimizePNG)
	if err != nil {
		summary.fail(fmt.Errorf("sprites %s: %w", set.Subdir, err))
		return
	}
	spriteEncoder := encode.PNG{Optimize: r.config.OptimizePNG}

	logger.Debug("packing sprites", "count", len(entries))
	r.progress.Expect(len(entries) + 1)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			summary.fail(err)
			return
		}
		err := r.extractSprite(set, entry, packer, spriteEncoder)
		r.progress.Done(1)
		if err != nil {
			logger.Error("sprite failed", "file", entry.file, "error", err)
			summary.fail(fmt.Errorf("sprite %s: %w", entry.file, err))
			continue
		}
		summary.succeed()
	}

	img, manifest := packer.Finish()
	err = r.writeAtlas(set, img, manifest, atlasEncoder)
	r.progress.Done(1)
	if err != nil {
		logger.Error("atlas failed", "error", err)
		summary.fail(fmt.Errorf("atlas %s: %w", set.Subdir, err))
		return
	}
	logger.Info("atlas written", "sprites", len(manifest.OrderedNames), "columns", manifest.Columns)
	summary.succeed()
}

func (r *Runner) extractSprite(set SpriteSet, entry spriteEntry, packer *atlas.Packer, encoder encode.Encoder) error {
	img, err := r.loadSprite(entry.file, set.source())
	if err != nil {
		return err
	}
	name := strconv.Itoa(entry.id)
	data, err := encoder.Encode(img)
	if err != nil {
		return err
	}
	if err := r.writeFile(path.Join(set.Subdir, name+".png"), data); err != nil {
		return err
	}
	return packer.Add(img, name)
}

func (r *Runner) loadSprite(file string, want raster.Dimensions) (*raster.Buffer, error) {
	r.archiveMu.Lock()
	defer r.archiveMu.Unlock()
	tex, err := r.decode(file, 0)
	if err != nil {
		return nil, err
	}
	return texture.Expect(tex, want)
}

func (r *Runner) writeAtlas(set SpriteSet, img *raster.Buffer, manifest atlas.Manifest, encoder encode.Encoder) error {
	data, err := encoder.Encode(img)
	if err != nil {
		return err
	}
	if err := r.writeFile(path.Join(set.Subdir, "packed."+encoder.Extension()), data); err != nil {
		return err
	}
	return r.writeJSON(path.Join(AtlasDir, set.Subdir+".json"), manifest)
}
