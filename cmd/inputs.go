package main

import (
	"context"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/onsdata/crosswalk-cli/internal/config"
	"github.com/onsdata/crosswalk-cli/internal/crosswalk"
	"github.com/onsdata/crosswalk-cli/internal/spatial"
	"github.com/onsdata/crosswalk-cli/internal/tabular"
	"github.com/onsdata/crosswalk-cli/pkg/geocode"
)

// runDate parses --date, defaulting to today.
func runDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "invalid --date %q (want YYYY-MM-DD)", s)
	}
	return d, nil
}

// loadCodes reads the candidate list and the SLI crosswalk.
func loadCodes(ctx context.Context, in config.InputsConfig) ([]string, []crosswalk.Row, error) {
	opts := tabular.ColumnOptions{Sheet: in.CandidatesSheet, SkipRows: in.CandidatesSkipRows}
	if d, _ := utf8.DecodeRuneInString(in.CandidatesDelim); d != utf8.RuneError {
		opts.Delimiter = d
	}
	candidates, err := tabular.ReadColumn(ctx, in.Candidates, opts)
	if err != nil {
		return nil, nil, eris.Wrap(err, "load candidates")
	}
	sli, err := crosswalk.LoadSLI(in.SLICrosswalk)
	if err != nil {
		return nil, nil, eris.Wrap(err, "load sli crosswalk")
	}
	return candidates, sli, nil
}

// loadLayer resolves the CRS of a shapefile and loads it.
func loadLayer(path, idField string, epsg int) (*spatial.Layer, error) {
	crs, err := spatial.ResolveCRS(path, epsg)
	if err != nil {
		return nil, err
	}
	return spatial.LoadShapefile(path, idField, crs)
}

// newGeocoder builds the geocode client from config, wrapped in the SQLite
// cache when one is configured. The returned close func releases the cache.
func newGeocoder(gc config.GeocodeConfig) (geocode.Client, func(), error) {
	client, err := geocode.NewClient(gc.APIKey,
		geocode.WithBaseURL(gc.BaseURL),
		geocode.WithRegion(gc.Region),
		geocode.WithRateLimit(gc.RateLimit, gc.Burst),
		geocode.WithHTTPClient(&http.Client{Timeout: time.Duration(gc.TimeoutSecs) * time.Second}),
	)
	if err != nil {
		return nil, nil, err
	}

	if gc.CachePath == "" {
		return client, func() {}, nil
	}

	cache, err := geocode.OpenCache(gc.CachePath)
	if err != nil {
		return nil, nil, err
	}
	zap.L().Debug("geocode cache enabled", zap.String("path", gc.CachePath), zap.Int("ttl_days", gc.CacheTTLDays))
	return geocode.NewCachedClient(client, cache, gc.CacheTTLDays), func() { _ = cache.Close() }, nil
}
