package config

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// Validate checks that the settings required by a command are present.
// Modes: reconcile, missing, geocode, publish.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "reconcile":
		errs = append(errs, c.requireInputs(true)...)
		errs = append(errs, c.validateGeocode()...)
		errs = append(errs, c.validateMerge()...)
		errs = append(errs, c.validatePattern()...)
		if c.Output.Dir == "" {
			errs = append(errs, "output.dir is required")
		}
	case "missing":
		errs = append(errs, c.requireInputs(false)...)
	case "geocode":
		errs = append(errs, c.validateGeocode()...)
	case "publish":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Store.SLITable == "" || c.Store.WeightedTable == "" {
			errs = append(errs, "store.sli_table and store.weighted_table are required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) requireInputs(full bool) []string {
	var errs []string
	if c.Inputs.Candidates == "" {
		errs = append(errs, "inputs.candidates is required")
	}
	if c.Inputs.SLICrosswalk == "" {
		errs = append(errs, "inputs.sli_crosswalk is required")
	}
	if utf8.RuneCountInString(c.Inputs.CandidatesDelim) > 1 {
		errs = append(errs, "inputs.candidates_delimiter must be a single character")
	}
	if c.Inputs.CandidatesSkipRows < 0 {
		errs = append(errs, "inputs.candidates_skip_rows must be >= 0")
	}
	if !full {
		return errs
	}
	if c.Inputs.WeightedCrosswalk == "" {
		errs = append(errs, "inputs.weighted_crosswalk is required")
	}
	if c.Inputs.Neighbourhoods == "" {
		errs = append(errs, "inputs.neighbourhoods is required")
	}
	if c.Spatial.NeighbourhoodIDField == "" {
		errs = append(errs, "spatial.neighbourhood_id_field is required")
	}
	if c.Inputs.ReferenceShapefile != "" && c.Spatial.ReferenceIDField == "" {
		errs = append(errs, "spatial.reference_id_field is required with inputs.reference_shapefile")
	}
	return errs
}

// validateGeocode does not check the API key: its absence is reported by the
// geocode client itself before any request is made.
func (c *Config) validateGeocode() []string {
	var errs []string
	if c.Geocode.RateLimit <= 0 || c.Geocode.RateLimit > 50 {
		errs = append(errs, "geocode.rate_limit must be in (0, 50]")
	}
	if c.Geocode.Burst < 1 {
		errs = append(errs, "geocode.burst must be >= 1")
	}
	if c.Geocode.Concurrency < 1 || c.Geocode.Concurrency > 16 {
		errs = append(errs, "geocode.concurrency must be between 1 and 16")
	}
	if c.Geocode.BaseURL == "" {
		errs = append(errs, "geocode.base_url is required")
	}
	return errs
}

func (c *Config) validateMerge() []string {
	switch c.Merge.ConflictPolicy {
	case "append", "skip", "fail":
		return nil
	default:
		return []string{"merge.conflict_policy must be one of append, skip, fail"}
	}
}

func (c *Config) validatePattern() []string {
	if c.Validation.Pattern == "" {
		return nil
	}
	if _, err := regexp.Compile(c.Validation.Pattern); err != nil {
		return []string{"validate.pattern is not a valid regular expression"}
	}
	return nil
}
