package dedup

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/querydedup/pkg/errors"
)

// Compare intersects two query sets. The intersection follows a's order.
//
// When the same text occurs more than once inside one set, the first
// occurrence is used and later ones are ignored, so each shared query is
// reported once.
func Compare(a, b QuerySet) (PairResult, error) {
	if a.ID == b.ID {
		return PairResult{}, fmt.Errorf("comparing set %q with itself: %w", a.ID, apperrors.ErrInvalidPair)
	}

	inB := make(map[string]int64, len(b.Entries))
	for _, e := range b.Entries {
		if _, seen := inB[e.Text]; !seen {
			inB[e.Text] = e.Count
		}
	}

	items := make([]IntersectionItem, 0)
	emitted := make(map[string]struct{})
	for _, e := range a.Entries {
		countB, ok := inB[e.Text]
		if !ok {
			continue
		}
		if _, dup := emitted[e.Text]; dup {
			continue
		}
		emitted[e.Text] = struct{}{}
		items = append(items, IntersectionItem{
			Query:          e.Text,
			CountInA:       e.Count,
			CountInB:       countB,
			DefaultStaysIn: stayingSide(e.Count, countB),
		})
	}

	return PairResult{
		IDA:               a.ID,
		IDB:               b.ID,
		NameA:             a.Name,
		NameB:             b.Name,
		ClusterA:          a.ClusterName,
		ClusterB:          b.ClusterName,
		CountA:            len(a.Entries),
		CountB:            len(b.Entries),
		Intersection:      items,
		IntersectionCount: len(items),
	}, nil
}

// stayingSide keeps a duplicate in the set with the higher volume. Equal
// volumes keep it in A.
func stayingSide(countInA, countInB int64) Side {
	if countInA >= countInB {
		return SideA
	}
	return SideB
}
