package tabular

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ColumnOptions tunes how a candidate list is read.
type ColumnOptions struct {
	Sheet     string // XLSX sheet name; empty means the first sheet
	Delimiter rune   // CSV/TXT field separator; 0 means ','
	SkipRows  int    // leading rows to drop, e.g. a header
}

// ReadColumn returns the first column of a CSV, TXT or XLSX file. No header
// is assumed unless SkipRows says so. Blank cells are skipped; every other
// value is returned verbatim, without trimming or case folding.
func ReadColumn(ctx context.Context, path string, opts ColumnOptions) ([]string, error) {
	var rows [][]string

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		r, err := readSheet(path, opts.Sheet)
		if err != nil {
			return nil, eris.Wrapf(err, "tabular: read %s", path)
		}
		rows = r
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "tabular: open %s", path)
		}
		defer f.Close() //nolint:errcheck

		r, err := readDelimited(ctx, f, opts.Delimiter)
		if err != nil {
			return nil, eris.Wrapf(err, "tabular: read %s", path)
		}
		rows = r
	default:
		return nil, eris.Errorf("tabular: unsupported file type %q", filepath.Ext(path))
	}

	if opts.SkipRows >= len(rows) {
		return []string{}, nil
	}
	rows = rows[max(opts.SkipRows, 0):]

	values := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		values = append(values, row[0])
	}
	return values, nil
}
