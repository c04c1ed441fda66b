package dedup

import (
	"sort"
	"strings"
)

// SortByIntersection returns a copy of pairs ordered by intersection count,
// largest first. Pairs with equal counts keep their enumeration order.
func SortByIntersection(pairs []PairResult) []PairResult {
	out := make([]PairResult, len(pairs))
	copy(out, pairs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IntersectionCount > out[j].IntersectionCount
	})
	return out
}

// PairFilter narrows a pair list for display.
type PairFilter struct {
	// MinIntersection hides pairs with fewer shared queries.
	MinIntersection int
	// Search matches case-insensitively against set names, cluster names
	// and shared queries.
	Search string
}

// FilterPairs returns the pairs matching f, in their original order.
func FilterPairs(pairs []PairResult, f PairFilter) []PairResult {
	needle := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]PairResult, 0, len(pairs))
	for _, p := range pairs {
		if p.IntersectionCount < f.MinIntersection {
			continue
		}
		if needle != "" && !pairMatches(p, needle) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func pairMatches(p PairResult, needle string) bool {
	for _, field := range []string{p.NameA, p.NameB, p.ClusterA, p.ClusterB} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	for _, item := range p.Intersection {
		if strings.Contains(strings.ToLower(item.Query), needle) {
			return true
		}
	}
	return false
}
