package align

import "perp-strategy-lab/internal/domain"

// Resolve collapses candidates sharing an entry time into at most one
// position. Within each group the majority side wins and the first
// candidate of that side (by input order) is kept; an equal count of
// Longs and Shorts cancels the whole group, so no trade opens at that
// timestamp. Candidates must already be ordered by entry time (see
// SortCandidates). The output therefore has no duplicate entry times.
func Resolve(candidates []Candidate) []Candidate {
	var out []Candidate

	for start := 0; start < len(candidates); {
		end := start + 1
		for end < len(candidates) && candidates[end].Entry.StartTime == candidates[start].Entry.StartTime {
			end++
		}

		if kept, ok := resolveGroup(candidates[start:end]); ok {
			out = append(out, kept)
		}
		start = end
	}
	return out
}

// resolveGroup applies the majority rule to one entry-time group.
func resolveGroup(group []Candidate) (Candidate, bool) {
	longs := 0
	for _, c := range group {
		if c.Signal.Side == domain.SideLong {
			longs++
		}
	}
	shorts := len(group) - longs

	var winner domain.Side
	switch {
	case longs > shorts:
		winner = domain.SideLong
	case shorts > longs:
		winner = domain.SideShort
	default:
		// Tie cancels: the net signal is flat.
		return Candidate{}, false
	}

	for _, c := range group {
		if c.Signal.Side == winner {
			return c, true
		}
	}
	return Candidate{}, false
}
