package dedup

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/querydedup/pkg/errors"
)

// RemovalReport lists which duplicates to delete from each side of a pair
// once overrides are applied. Every duplicate lands on exactly one removal
// list, so RemoveFromA+RemoveFromB always equals IntersectionCount.
type RemovalReport struct {
	IDA                    string   `json:"id_a"`
	IDB                    string   `json:"id_b"`
	IntersectionCount      int      `json:"intersection_count"`
	RemoveFromA            int      `json:"remove_from_a"`
	RemoveFromB            int      `json:"remove_from_b"`
	Overridden             int      `json:"overridden"`
	QueriesToRemoveFromA   []string `json:"queries_to_remove_from_a"`
	QueriesToRemoveFromB   []string `json:"queries_to_remove_from_b"`
	AllIntersectingQueries []string `json:"all_intersecting_queries"`
}

// Report builds the removal report for pair. overrides may be nil.
func Report(pair PairResult, overrides OverrideLookup) RemovalReport {
	r := RemovalReport{
		IDA:                    pair.IDA,
		IDB:                    pair.IDB,
		IntersectionCount:      len(pair.Intersection),
		QueriesToRemoveFromA:   make([]string, 0),
		QueriesToRemoveFromB:   make([]string, 0),
		AllIntersectingQueries: make([]string, 0, len(pair.Intersection)),
	}
	for _, item := range pair.Intersection {
		side := effectiveSide(pair, item, overrides)
		if side != item.DefaultStaysIn {
			r.Overridden++
		}
		// The duplicate stays on one side and is removed from the other.
		if side == SideB {
			r.QueriesToRemoveFromA = append(r.QueriesToRemoveFromA, item.Query)
		} else {
			r.QueriesToRemoveFromB = append(r.QueriesToRemoveFromB, item.Query)
		}
		r.AllIntersectingQueries = append(r.AllIntersectingQueries, item.Query)
	}
	r.RemoveFromA = len(r.QueriesToRemoveFromA)
	r.RemoveFromB = len(r.QueriesToRemoveFromB)
	return r
}

func effectiveSide(pair PairResult, item IntersectionItem, overrides OverrideLookup) Side {
	if overrides == nil {
		return item.DefaultStaysIn
	}
	return overrides.Get(OverrideKey{IDA: pair.IDA, IDB: pair.IDB, Query: item.Query}, item.DefaultStaysIn)
}

// ExportList selects one of the report's query lists.
type ExportList string

const (
	ExportRemoveFromA ExportList = "remove_a"
	ExportRemoveFromB ExportList = "remove_b"
	ExportAll         ExportList = "all"
)

// ParseExportList validates a list name coming from a caller.
func ParseExportList(v string) (ExportList, error) {
	switch l := ExportList(v); l {
	case ExportRemoveFromA, ExportRemoveFromB, ExportAll:
		return l, nil
	}
	return "", fmt.Errorf("export list %q: %w", v, apperrors.ErrInvalidInput)
}

// Queries returns the selected list.
func (r RemovalReport) Queries(list ExportList) []string {
	switch list {
	case ExportRemoveFromA:
		return r.QueriesToRemoveFromA
	case ExportRemoveFromB:
		return r.QueriesToRemoveFromB
	default:
		return r.AllIntersectingQueries
	}
}

// ExportLines formats queries one per line for copy and paste.
func ExportLines(queries []string) string {
	return strings.Join(queries, "\n")
}

// ItemState tells whether a duplicate follows its computed decision or a
// manual override.
type ItemState string

const (
	StateDefaultA    ItemState = "default_a"
	StateDefaultB    ItemState = "default_b"
	StateOverriddenA ItemState = "overridden_a"
	StateOverriddenB ItemState = "overridden_b"
)

// ItemView is an intersection item with its resolved decision.
type ItemView struct {
	IntersectionItem
	EffectiveStaysIn Side      `json:"effective_stays_in"`
	State            ItemState `json:"state"`
}

// ItemViews resolves every intersection item of pair against overrides.
func ItemViews(pair PairResult, overrides *OverrideStore) []ItemView {
	views := make([]ItemView, 0, len(pair.Intersection))
	for _, item := range pair.Intersection {
		key := OverrideKey{IDA: pair.IDA, IDB: pair.IDB, Query: item.Query}
		v := ItemView{IntersectionItem: item, EffectiveStaysIn: item.DefaultStaysIn}
		if side, ok := lookupOverride(overrides, key); ok {
			v.EffectiveStaysIn = side
			v.State = StateOverriddenA
			if side == SideB {
				v.State = StateOverriddenB
			}
		} else {
			v.State = StateDefaultA
			if item.DefaultStaysIn == SideB {
				v.State = StateDefaultB
			}
		}
		views = append(views, v)
	}
	return views
}

func lookupOverride(overrides *OverrideStore, key OverrideKey) (Side, bool) {
	if overrides == nil {
		return "", false
	}
	return overrides.Lookup(key)
}
