// Package tabular reads the row-oriented inputs of a reconcile run: CSV and XLSX.
package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// NewBOMReader strips a leading UTF-8 or UTF-16 byte order mark, decoding
// UTF-16 input to UTF-8. Spreadsheet exports often carry one, and it would
// otherwise end up glued to the first header name.
func NewBOMReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// readDelimited reads every record of a delimited file. Records may have any
// number of fields and stray quotes are tolerated.
func readDelimited(ctx context.Context, r io.Reader, delim rune) ([][]string, error) {
	cr := csv.NewReader(NewBOMReader(r))
	if delim != 0 {
		cr.Comma = delim
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "csv: context cancelled")
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "csv: read row %d", len(rows)+1)
		}
		rows = append(rows, record)
	}
}
