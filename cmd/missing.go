package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/onsdata/crosswalk-cli/internal/crosswalk"
	"github.com/onsdata/crosswalk-cli/internal/pipeline"
)

var missingCmd = &cobra.Command{
	Use:   "missing",
	Short: "List candidate postal codes absent from the single-link crosswalk",
	Long:  "Runs only the set difference between the candidate list and the single-link crosswalk. No geocoding, no credential needed.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("missing"); err != nil {
			return err
		}

		candidates, sli, err := loadCodes(cmd.Context(), cfg.Inputs)
		if err != nil {
			return err
		}

		missing := crosswalk.Missing(candidates, crosswalk.Codes(sli))
		zap.L().Info("missing codes computed",
			zap.String("command", "missing"),
			zap.Int("candidates", len(candidates)),
			zap.Int("duplicates", crosswalk.CountDuplicates(candidates)),
			zap.Int("missing", len(missing)),
		)

		write, _ := cmd.Flags().GetBool("write")
		if !write {
			for _, code := range missing {
				fmt.Fprintln(cmd.OutOrStdout(), code)
			}
			return nil
		}

		dateFlag, _ := cmd.Flags().GetString("date")
		date, err := runDate(dateFlag)
		if err != nil {
			return err
		}
		dir := cfg.Output.Dir
		if cmd.Flags().Changed("output-dir") {
			dir, _ = cmd.Flags().GetString("output-dir")
		}
		path, err := pipeline.WriteMissing(dir, date, missing)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d missing codes to %s\n", len(missing), path)
		return nil
	},
}

func init() {
	missingCmd.Flags().Bool("write", false, "write missing_<date>.csv instead of printing")
	missingCmd.Flags().String("output-dir", "", "directory for the CSV (overrides output.dir)")
	missingCmd.Flags().String("date", "", "date stamped on the file name, YYYY-MM-DD (default today)")
	rootCmd.AddCommand(missingCmd)
}
