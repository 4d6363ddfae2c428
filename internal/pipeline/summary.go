package pipeline

import (
	"time"

	"github.com/onsdata/crosswalk-cli/internal/crosswalk"
)

// PhaseSummary records how one step went.
type PhaseSummary struct {
	Name       string `yaml:"name"`
	DurationMS int64  `yaml:"duration_ms"`
	Status     string `yaml:"status"`
}

// Summary is the run report written next to the outputs. It never carries
// configuration values, so the API key cannot leak through it.
type Summary struct {
	RunID            string    `yaml:"run_id"`
	StartedAt        time.Time `yaml:"started_at"`
	NeighbourhoodCRS string    `yaml:"neighbourhood_crs"`

	Candidates          int `yaml:"candidates"`
	DuplicateCandidates int `yaml:"duplicate_candidates"`
	Missing             int `yaml:"missing"`
	Invalid             int `yaml:"invalid"`
	Geocoded            int `yaml:"geocoded"`
	CacheHits           int `yaml:"cache_hits"`

	Matched     int `yaml:"matched"`
	Outside     int `yaml:"outside"`
	NotGeocoded int `yaml:"not_geocoded"`

	SLIAdditions      int `yaml:"sli_additions"`
	WeightedAdditions int `yaml:"weighted_additions"`
	SLIRows           int `yaml:"sli_rows"`
	WeightedRows      int `yaml:"weighted_rows"`
	LedgerRows        int `yaml:"ledger_rows"`
	Conflicts         int `yaml:"conflicts"`
	Skipped           int `yaml:"skipped"`

	Phases []PhaseSummary `yaml:"phases"`
}

// tally fills the outcome counts. Matched + Outside + NotGeocoded always
// equals Missing.
func (s *Summary) tally(res *Result) {
	for _, r := range res.Resolutions {
		switch r.Outcome() {
		case crosswalk.OutcomeMatched:
			s.Matched++
		case crosswalk.OutcomeOutside:
			s.Outside++
		case crosswalk.OutcomeNotGeocoded:
			s.NotGeocoded++
		}
	}
	s.LedgerRows = len(res.Ledger)
	if m := res.Merge; m != nil {
		s.SLIAdditions = len(m.SLIAdditions)
		s.WeightedAdditions = len(m.WeightedAdditions)
		s.SLIRows = len(m.SLI)
		s.WeightedRows = len(m.Weighted)
		s.Conflicts = len(m.Conflicts)
		s.Skipped = m.Skipped
	}
}
