package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/onsdata/crosswalk-cli/pkg/geocode"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode CODE...",
	Short: "Geocode postal codes ad hoc",
	Long:  "Looks up each code through the configured geocoder, rate limit and cache, and prints the result.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("geocode"); err != nil {
			return err
		}

		gc, closeGeocoder, err := newGeocoder(cfg.Geocode)
		if err != nil {
			return err
		}
		defer closeGeocoder()

		results, err := geocode.Batch(ctx, gc, args, cfg.Geocode.Concurrency, nil)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "POSTAL CODE\tLAT\tLNG\tSTATUS\tCACHED")
		for _, r := range results {
			lat, lng := "-", "-"
			if r.Matched {
				lat = fmt.Sprintf("%.6f", r.Latitude)
				lng = fmt.Sprintf("%.6f", r.Longitude)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", r.PostalCode, lat, lng, r.Status, r.Cached)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
}
