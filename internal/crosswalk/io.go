package crosswalk

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/onsdata/crosswalk-cli/internal/tabular"
)

// LoadSLI reads a single-link crosswalk CSV with POSTALCODE and ONS_ID columns.
// Extra columns are ignored.
func LoadSLI(path string) ([]Row, error) {
	return loadCSV[Row](path, "POSTALCODE", "ONS_ID")
}

// LoadWeighted reads a weighted crosswalk CSV with POSTALCODE, ONS_ID and
// weight columns. Extra columns are ignored.
func LoadWeighted(path string) ([]WeightedRow, error) {
	return loadCSV[WeightedRow](path, "POSTALCODE", "ONS_ID", "weight")
}

func loadCSV[T any](path string, required ...string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "crosswalk: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return decodeCSV[T](f, path, required...)
}

func decodeCSV[T any](r io.Reader, name string, required ...string) ([]T, error) {
	cr := csv.NewReader(tabular.NewBOMReader(r))
	cr.FieldsPerRecord = -1

	dec, err := csvutil.NewDecoder(cr)
	if errors.Is(err, io.EOF) {
		return nil, eris.Errorf("crosswalk: %s is empty", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "crosswalk: read header of %s", name)
	}

	header := dec.Header()
	for _, col := range required {
		if !slices.Contains(header, col) {
			return nil, eris.Errorf("crosswalk: %s has no %s column (header %v)", name, col, header)
		}
	}

	var rows []T
	for {
		var row T
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "crosswalk: decode %s row %d", name, len(rows)+2)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCSV writes rows with a header line derived from T's csv tags. An empty
// slice still produces the header.
func WriteCSV[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "crosswalk: create directory for %s", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "crosswalk: create %s", path)
	}

	if err := EncodeCSV(f, rows); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "crosswalk: write %s", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "crosswalk: close %s", path)
	}
	return nil
}

// EncodeCSV writes rows as CSV to w, header first.
func EncodeCSV[T any](w io.Writer, rows []T) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	if len(rows) == 0 {
		var zero T
		if err := enc.EncodeHeader(zero); err != nil {
			return eris.Wrap(err, "crosswalk: encode header")
		}
	} else if err := enc.Encode(rows); err != nil {
		return eris.Wrap(err, "crosswalk: encode rows")
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "crosswalk: flush csv")
}
