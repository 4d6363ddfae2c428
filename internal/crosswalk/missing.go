package crosswalk

// Missing returns the candidate codes absent from existing. Matching is exact
// and case-sensitive; spacing and casing are never normalized. Each missing
// code appears once, in the order it was first seen among candidates.
func Missing(candidates, existing []string) []string {
	known := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		known[c] = struct{}{}
	}

	seen := make(map[string]struct{})
	var missing []string
	for _, c := range candidates {
		if _, ok := known[c]; ok {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		missing = append(missing, c)
	}
	return missing
}

// CountDuplicates reports how many entries of codes repeat an earlier entry.
func CountDuplicates(codes []string) int {
	seen := make(map[string]struct{}, len(codes))
	dups := 0
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			dups++
			continue
		}
		seen[c] = struct{}{}
	}
	return dups
}
