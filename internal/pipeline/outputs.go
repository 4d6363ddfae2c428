package pipeline

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/onsdata/crosswalk-cli/internal/crosswalk"
	"github.com/onsdata/crosswalk-cli/pkg/geocode"
)

// DateLayout stamps output file names.
const DateLayout = "2006-01-02"

// Output file name prefixes; each file is <prefix>_<date>.<ext>.
const (
	FileSLIAdditions      = "geocodable_sli"
	FileWeightedAdditions = "geocodable_weighted"
	FileLedger            = "ungeocodable"
	FileWeighted          = "crosswalk_weighted"
	FileSLI               = "crosswalk_sli"
	FileGeocodeResults    = "geocode_results"
	FilePoints            = "geocoded_points"
	FileSummary           = "run_summary"
	FileMissing           = "missing"
)

// OutputPath returns dir/<prefix>_<date>.<ext>.
func OutputPath(dir, prefix string, date time.Time, ext string) string {
	return filepath.Join(dir, prefix+"_"+date.Format(DateLayout)+"."+ext)
}

// geocodeRow is the checkpoint representation of a geocode result.
type geocodeRow struct {
	PostalCode string `csv:"postal_code"`
	Latitude   string `csv:"lat"`
	Longitude  string `csv:"lng"`
	Status     string `csv:"status"`
}

// WriteGeocodeResults writes the geocode checkpoint. Unmatched codes have
// empty coordinates.
func WriteGeocodeResults(dir string, date time.Time, results []geocode.Result) error {
	rows := make([]geocodeRow, len(results))
	for i, r := range results {
		rows[i] = geocodeRow{PostalCode: r.PostalCode, Status: r.Status}
		if r.Matched {
			rows[i].Latitude = strconv.FormatFloat(r.Latitude, 'f', -1, 64)
			rows[i].Longitude = strconv.FormatFloat(r.Longitude, 'f', -1, 64)
		}
	}
	return crosswalk.WriteCSV(OutputPath(dir, FileGeocodeResults, date, "csv"), rows)
}

// WriteMissing writes the missing-code list alone.
func WriteMissing(dir string, date time.Time, codes []string) (string, error) {
	type row struct {
		PostalCode string `csv:"postal_code"`
	}
	rows := make([]row, len(codes))
	for i, c := range codes {
		rows[i] = row{PostalCode: c}
	}
	path := OutputPath(dir, FileMissing, date, "csv")
	return path, crosswalk.WriteCSV(path, rows)
}

// WriteOutputs writes the additions, ledger, augmented crosswalks, points
// audit and run summary into dir and returns the paths written.
func WriteOutputs(dir string, date time.Time, res *Result) ([]string, error) {
	if res == nil || res.Merge == nil {
		return nil, eris.New("pipeline: nothing to write")
	}
	m := res.Merge

	var written []string
	write := func(prefix string, fn func(path string) error) error {
		path := OutputPath(dir, prefix, date, "csv")
		if err := fn(path); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	steps := []struct {
		prefix string
		fn     func(string) error
	}{
		{FileSLIAdditions, func(p string) error { return crosswalk.WriteCSV(p, m.SLIAdditions) }},
		{FileWeightedAdditions, func(p string) error { return crosswalk.WriteCSV(p, m.WeightedAdditions) }},
		{FileLedger, func(p string) error { return crosswalk.WriteCSV(p, res.Ledger) }},
		{FileWeighted, func(p string) error { return crosswalk.WriteCSV(p, m.Weighted) }},
		{FileSLI, func(p string) error { return crosswalk.WriteCSV(p, m.SLI) }},
		{FilePoints, func(p string) error { return crosswalk.WriteCSV(p, res.Points) }},
	}
	for _, s := range steps {
		if err := write(s.prefix, s.fn); err != nil {
			return written, eris.Wrapf(err, "pipeline: write %s", s.prefix)
		}
	}

	summaryPath := OutputPath(dir, FileSummary, date, "yaml")
	data, err := yaml.Marshal(res.Summary)
	if err != nil {
		return written, eris.Wrap(err, "pipeline: marshal summary")
	}
	if err := os.WriteFile(summaryPath, data, 0o644); err != nil {
		return written, eris.Wrap(err, "pipeline: write summary")
	}
	written = append(written, summaryPath)

	zap.L().Info("pipeline: outputs written", zap.String("dir", dir), zap.Int("files", len(written)))
	return written, nil
}
