package pipeline

import (
	"context"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/onsdata/crosswalk-cli/pkg/geocode"
)

// geocode runs the batch, drawing a progress bar on an interactive stderr
// and logging each result at debug level otherwise.
func (p *Pipeline) geocode(ctx context.Context, codes []string) ([]geocode.Result, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	var bar *progressbar.ProgressBar
	if p.opts.Progress && isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(codes),
			progressbar.OptionSetDescription("Geocoding"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	onDone := func(r geocode.Result) {
		if bar != nil {
			_ = bar.Add(1)
			return
		}
		zap.L().Debug("pipeline: geocoded",
			zap.String("postal_code", r.PostalCode),
			zap.Bool("matched", r.Matched),
			zap.String("status", r.Status),
			zap.Bool("cached", r.Cached),
		)
	}

	results, err := geocode.Batch(ctx, p.geocoder, codes, p.opts.Concurrency, onDone)
	if bar != nil {
		_ = bar.Finish()
	}
	return results, err
}
