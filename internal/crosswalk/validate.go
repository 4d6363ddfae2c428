package crosswalk

import (
	"regexp"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// Validity patterns. DefaultPattern only rejects structural garbage: codes
// are format-free, so case and spacing are left to the geocoder.
// StrictPattern is the opt-in Canadian form, a forward sortation area (A9A)
// or a full code (A9A9A9), upper case without the space.
const (
	DefaultPattern = `^[A-Za-z0-9 ]+$`
	StrictPattern  = `^[A-Z][0-9][A-Z]([0-9][A-Z][0-9])?$`
)

// Validator decides whether a postal code is structurally usable. Invalid
// codes are not geocoded and go straight to the ungeocodable ledger.
type Validator struct {
	pattern   *regexp.Regexp
	minLength int
}

// NewValidator compiles pattern. An empty pattern disables the pattern check;
// minLength <= 0 disables the length check.
func NewValidator(pattern string, minLength int) (*Validator, error) {
	v := &Validator{minLength: minLength}
	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "crosswalk: compile validity pattern %q", pattern)
		}
		v.pattern = re
	}
	return v, nil
}

// Valid reports whether code passes every configured check. A nil Validator
// accepts everything.
func (v *Validator) Valid(code string) bool {
	if v == nil {
		return true
	}
	if v.minLength > 0 && utf8.RuneCountInString(code) < v.minLength {
		return false
	}
	if v.pattern != nil && !v.pattern.MatchString(code) {
		return false
	}
	return true
}
