package sync

import "sort"

// PlaceholderTeams is the default rotation used to backfill services with
// no resolved mapping.
var PlaceholderTeams = []string{"team 1", "team 2"}

// Fill deterministically assigns placeholder teams to unmapped services:
// the identifiers are deduplicated and sorted, then teams are assigned
// round-robin by sorted position. Identical input sets always produce
// identical assignments regardless of input order, which keeps re-runs
// idempotent.
func Fill(unmapped []string, teams []string) map[string]string {
	assigned := make(map[string]string)
	if len(teams) == 0 {
		return assigned
	}

	set := make(map[string]struct{}, len(unmapped))
	for _, svc := range unmapped {
		if svc != "" {
			set[svc] = struct{}{}
		}
	}

	for idx, svc := range sortedSet(set) {
		assigned[svc] = teams[idx%len(teams)]
	}
	return assigned
}

// sortedSet returns the members of a set in sorted order.
func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for member := range set {
		out = append(out, member)
	}
	sort.Strings(out)
	return out
}
