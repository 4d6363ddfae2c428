package crosswalk

import (
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrConflict is returned by Merge under PolicyFail when a new code already
// exists in a crosswalk under a different neighbourhood.
var ErrConflict = eris.New("crosswalk: postal code already mapped to a different neighbourhood")

// ConflictPolicy decides what Merge does with a code already in the table.
type ConflictPolicy string

// Conflict policies.
const (
	// PolicyAppend appends regardless; old and new rows coexist.
	PolicyAppend ConflictPolicy = "append"
	// PolicySkip leaves codes already in the table untouched.
	PolicySkip ConflictPolicy = "skip"
	// PolicyFail aborts when a code exists under a different neighbourhood
	// and skips codes that exist under the same one.
	PolicyFail ConflictPolicy = "fail"
)

// ParseConflictPolicy validates a configured policy name.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch p := ConflictPolicy(s); p {
	case PolicyAppend, PolicySkip, PolicyFail:
		return p, nil
	case "":
		return PolicyAppend, nil
	default:
		return "", eris.Errorf("crosswalk: unknown conflict policy %q", s)
	}
}

// Conflict describes a new row whose code is already mapped elsewhere.
type Conflict struct {
	Table      string
	PostalCode string
	Existing   []string
	New        string
}

// MergeResult holds the additions and the augmented tables.
type MergeResult struct {
	SLIAdditions      []Row
	WeightedAdditions []WeightedRow
	SLI               []Row
	Weighted          []WeightedRow
	Conflicts         []Conflict
	Skipped           int
}

// Partition splits resolutions into matched ones and ledger rows for the
// rest (outside every polygon, never geocoded, or invalid).
func Partition(resolutions []Resolution) (matched []Resolution, ledger []LedgerRow) {
	for _, r := range resolutions {
		if r.Outcome() == OutcomeMatched {
			matched = append(matched, r)
			continue
		}
		ledger = append(ledger, LedgerRow{PostalCode: r.PostalCode})
	}
	return matched, ledger
}

// Merge formats matched resolutions as (code, id) and (code, id, 1) rows and
// appends them to copies of the existing tables. Existing rows are never
// modified, deduplicated or reordered.
func Merge(existingSLI []Row, existingWeighted []WeightedRow, matched []Resolution, policy ConflictPolicy) (*MergeResult, error) {
	if policy == "" {
		policy = PolicyAppend
	}

	sliIDs := make(map[string][]string, len(existingSLI))
	for _, r := range existingSLI {
		sliIDs[r.PostalCode] = append(sliIDs[r.PostalCode], r.ONSID)
	}
	weightedIDs := make(map[string][]string, len(existingWeighted))
	for _, r := range existingWeighted {
		weightedIDs[r.PostalCode] = append(weightedIDs[r.PostalCode], r.ONSID)
	}

	res := &MergeResult{}
	for _, m := range matched {
		addSLI, err := admit(res, "sli", sliIDs, m, policy)
		if err != nil {
			return nil, err
		}
		if addSLI {
			res.SLIAdditions = append(res.SLIAdditions, Row{PostalCode: m.PostalCode, ONSID: m.ONSID})
		}

		addWeighted, err := admit(res, "weighted", weightedIDs, m, policy)
		if err != nil {
			return nil, err
		}
		if addWeighted {
			res.WeightedAdditions = append(res.WeightedAdditions, WeightedRow{PostalCode: m.PostalCode, ONSID: m.ONSID, Weight: 1})
		}
	}

	res.SLI = append(slices.Clone(existingSLI), res.SLIAdditions...)
	res.Weighted = append(slices.Clone(existingWeighted), res.WeightedAdditions...)
	return res, nil
}

// admit applies policy to one new row and records conflicts on res.
func admit(res *MergeResult, table string, ids map[string][]string, m Resolution, policy ConflictPolicy) (bool, error) {
	existing, ok := ids[m.PostalCode]
	if !ok {
		return true, nil
	}

	if !slices.Contains(existing, m.ONSID) {
		c := Conflict{Table: table, PostalCode: m.PostalCode, Existing: existing, New: m.ONSID}
		res.Conflicts = append(res.Conflicts, c)
		zap.L().Warn("crosswalk: postal code already mapped to a different neighbourhood",
			zap.String("table", table),
			zap.String("postal_code", m.PostalCode),
			zap.Strings("existing_ons_id", existing),
			zap.String("new_ons_id", m.ONSID),
			zap.String("policy", string(policy)),
		)
		if policy == PolicyFail {
			return false, eris.Wrapf(ErrConflict, "%s table, postal code %s", table, m.PostalCode)
		}
	}

	if policy == PolicyAppend {
		return true, nil
	}
	res.Skipped++
	return false, nil
}
