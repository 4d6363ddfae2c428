package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/onsdata/crosswalk-cli/internal/crosswalk"
	"github.com/onsdata/crosswalk-cli/internal/pipeline"
	"github.com/onsdata/crosswalk-cli/pkg/geocode"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Geocode missing postal codes and augment the crosswalks",
	Long: "Loads the candidate list, both crosswalks and the neighbourhood polygons, geocodes candidate codes " +
		"missing from the single-link crosswalk, assigns them to neighbourhoods and writes the additions, " +
		"the ungeocodable ledger and the augmented crosswalks.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyReconcileFlags(cmd)
		if err := cfg.Validate("reconcile"); err != nil {
			return err
		}

		dateFlag, _ := cmd.Flags().GetString("date")
		date, err := runDate(dateFlag)
		if err != nil {
			return err
		}

		log := zap.L().With(zap.String("command", "reconcile"))

		policy, err := crosswalk.ParseConflictPolicy(cfg.Merge.ConflictPolicy)
		if err != nil {
			return err
		}
		validator, err := crosswalk.NewValidator(cfg.Validation.Pattern, cfg.Validation.MinLength)
		if err != nil {
			return err
		}

		// Credential first: a missing key aborts before any work.
		gc, closeGeocoder, err := newGeocoder(cfg.Geocode)
		if err != nil {
			return err
		}
		defer closeGeocoder()

		candidates, sli, err := loadCodes(ctx, cfg.Inputs)
		if err != nil {
			return err
		}
		weighted, err := crosswalk.LoadWeighted(cfg.Inputs.WeightedCrosswalk)
		if err != nil {
			return eris.Wrap(err, "load weighted crosswalk")
		}
		hoods, err := loadLayer(cfg.Inputs.Neighbourhoods, cfg.Spatial.NeighbourhoodIDField, cfg.Spatial.NeighbourhoodEPSG)
		if err != nil {
			return eris.Wrap(err, "load neighbourhoods")
		}
		in := pipeline.Inputs{
			Candidates:     candidates,
			SLI:            sli,
			Weighted:       weighted,
			Neighbourhoods: hoods,
		}
		if cfg.Inputs.ReferenceShapefile != "" {
			in.Reference, err = loadLayer(cfg.Inputs.ReferenceShapefile, cfg.Spatial.ReferenceIDField, cfg.Spatial.ReferenceEPSG)
			if err != nil {
				return eris.Wrap(err, "load reference layer")
			}
		}

		log.Info("inputs loaded",
			zap.Int("candidates", len(candidates)),
			zap.Int("sli_rows", len(sli)),
			zap.Int("weighted_rows", len(weighted)),
			zap.Int("neighbourhoods", hoods.Len()),
			zap.String("crs", hoods.CRS().String()),
		)

		outDir := cfg.Output.Dir
		p := pipeline.New(gc, pipeline.Options{
			Concurrency: cfg.Geocode.Concurrency,
			Policy:      policy,
			Validator:   validator,
			Progress:    cfg.Output.Progress,
			Checkpoint: func(rs []geocode.Result) error {
				return pipeline.WriteGeocodeResults(outDir, date, rs)
			},
		})

		start := time.Now()
		res, err := p.Run(ctx, in)
		if err != nil {
			return err
		}

		written, err := pipeline.WriteOutputs(outDir, date, res)
		if err != nil {
			return err
		}

		s := res.Summary
		fmt.Printf("Reconcile complete (run %s, %s)\n", s.RunID, time.Since(start).Round(time.Millisecond))
		fmt.Printf("  candidates: %d (%d duplicates), missing: %d, invalid: %d\n", s.Candidates, s.DuplicateCandidates, s.Missing, s.Invalid)
		fmt.Printf("  matched: %d, outside: %d, not geocoded: %d, cache hits: %d\n", s.Matched, s.Outside, s.NotGeocoded, s.CacheHits)
		fmt.Printf("  conflicts: %d, skipped: %d\n", s.Conflicts, s.Skipped)
		for _, path := range written {
			fmt.Printf("  wrote %s\n", path)
		}
		return nil
	},
}

// applyReconcileFlags lets flags override configuration for one run.
func applyReconcileFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.Output.Dir, _ = flags.GetString("output-dir")
	}
	if flags.Changed("concurrency") {
		cfg.Geocode.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("conflict-policy") {
		cfg.Merge.ConflictPolicy, _ = flags.GetString("conflict-policy")
	}
	if flags.Changed("no-progress") {
		noProgress, _ := flags.GetBool("no-progress")
		cfg.Output.Progress = !noProgress
	}
}

func init() {
	reconcileCmd.Flags().String("output-dir", "", "directory for output files (overrides output.dir)")
	reconcileCmd.Flags().String("date", "", "run date stamped on output files, YYYY-MM-DD (default today)")
	reconcileCmd.Flags().Int("concurrency", 1, "geocode workers sharing the rate limit (overrides geocode.concurrency)")
	reconcileCmd.Flags().String("conflict-policy", "append", "append, skip or fail when a code already exists (overrides merge.conflict_policy)")
	reconcileCmd.Flags().Bool("no-progress", false, "disable the progress bar")
	rootCmd.AddCommand(reconcileCmd)
}
