package prep

import (
	"context"
	"fmt"
	"path"

	"github.com/eak1mov/go-mapprep/encode"
	"github.com/eak1mov/go-mapprep/sheet"
)

func (r *Runner) runSheets(ctx context.Context, cutter *sheet.Cutter, set SheetSet, summary *Summary) {
	logger := r.logger.With("subdir", set.Subdir)
	encoder := encode.PNG{Optimize: r.config.OptimizePNG}

	r.progress.Expect(len(set.Regions))
	for _, region := range set.Regions {
		if err := ctx.Err(); err != nil {
			summary.fail(err)
			return
		}
		err := r.cutRegion(cutter, set.Subdir, region, encoder)
		r.progress.Done(1)
		if err != nil {
			logger.Error("region failed", "region", region.Name, "error", err)
			summary.fail(fmt.Errorf("region %s: %w", region.Name, err))
			continue
		}
		summary.succeed()
	}
}

func (r *Runner) cutRegion(cutter *sheet.Cutter, subdir string, region sheet.Region, encoder encode.Encoder) error {
	if region.Name == "" || path.Base(region.Name) != region.Name {
		return fmt.Errorf("%w: region name %q", ErrInvalidConfig, region.Name)
	}
	img, err := cutter.Cut(region)
	if err != nil {
		return err
	}
	data, err := encoder.Encode(img)
	if err != nil {
		return err
	}
	return r.writeFile(path.Join(subdir, region.Name+".png"), data)
}
