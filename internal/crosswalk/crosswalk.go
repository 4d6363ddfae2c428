// Package crosswalk models postal code to neighbourhood crosswalks: loading
// and writing the tables, finding candidate codes they lack, and merging
// newly resolved codes back in.
package crosswalk

import (
	"strconv"
)

// Row is one record of a single-link indicator (SLI) crosswalk.
type Row struct {
	PostalCode string `csv:"POSTALCODE"`
	ONSID      string `csv:"ONS_ID"`
}

// WeightedRow is one record of a long/weighted crosswalk. Weights of a code
// sum to 1 across its neighbourhoods.
type WeightedRow struct {
	PostalCode string  `csv:"POSTALCODE"`
	ONSID      string  `csv:"ONS_ID"`
	Weight     float64 `csv:"weight"`
}

// LedgerRow records a code that could not be placed in any neighbourhood.
// ONSID is always nil and is written as an empty cell.
type LedgerRow struct {
	PostalCode string  `csv:"postal_code"`
	ONSID      *string `csv:"ONS_ID"`
}

// Outcome is the terminal state of a missing code after a run.
type Outcome int

// Outcomes. Every resolved code is in exactly one.
const (
	OutcomeMatched     Outcome = iota + 1 // geocoded and inside a neighbourhood
	OutcomeOutside                        // geocoded, no containing polygon
	OutcomeNotGeocoded                    // no geocode result, or structurally invalid
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomeOutside:
		return "outside"
	case OutcomeNotGeocoded:
		return "not_geocoded"
	default:
		return "unknown(" + strconv.Itoa(int(o)) + ")"
	}
}

// Resolution carries a missing code through geocoding and the spatial join.
type Resolution struct {
	PostalCode string
	Latitude   float64
	Longitude  float64
	Geocoded   bool
	Invalid    bool
	// ONSID is empty when no polygon contains the point.
	ONSID string
}

// Outcome classifies r.
func (r Resolution) Outcome() Outcome {
	switch {
	case r.Invalid || !r.Geocoded:
		return OutcomeNotGeocoded
	case r.ONSID == "":
		return OutcomeOutside
	default:
		return OutcomeMatched
	}
}

// Codes returns the postal code column of an SLI table.
func Codes(rows []Row) []string {
	codes := make([]string, len(rows))
	for i, r := range rows {
		codes[i] = r.PostalCode
	}
	return codes
}
