// Package dedup finds search queries shared between subclusters, decides by
// search volume which subcluster keeps each duplicate, and reports what should
// be removed from each side of a pair. Everything here is in-process and
// synchronous; loading query sets and persisting results belong to callers.
package dedup

import (
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/querydedup/pkg/errors"
)

// Side names one member of a compared pair.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// Valid reports whether s is SideA or SideB.
func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

// Opposite returns the other side of the pair.
func (s Side) Opposite() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// ParseSide accepts "A"/"B" in either case.
func ParseSide(v string) (Side, error) {
	switch v {
	case "A", "a":
		return SideA, nil
	case "B", "b":
		return SideB, nil
	}
	return "", fmt.Errorf("side %q: %w", v, apperrors.ErrInvalidSide)
}

// QueryEntry is one query of a subcluster with its search volume.
type QueryEntry struct {
	Text  string `json:"text" yaml:"text"`
	Count int64  `json:"count" yaml:"count"`
}

// QuerySet is a subcluster: a named, ordered list of queries belonging to a
// parent cluster. Query text is matched case-sensitively.
type QuerySet struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	ClusterName string       `json:"cluster_name" yaml:"cluster"`
	Entries     []QueryEntry `json:"entries" yaml:"queries"`
}

// IntersectionItem is a query present in both sets of a pair.
type IntersectionItem struct {
	Query          string `json:"query"`
	CountInA       int64  `json:"count_in_a"`
	CountInB       int64  `json:"count_in_b"`
	DefaultStaysIn Side   `json:"default_stays_in"`
}

// PairResult is the comparison of two query sets. A is always the set that
// comes first in the analyzed input.
type PairResult struct {
	IDA               string             `json:"id_a"`
	IDB               string             `json:"id_b"`
	NameA             string             `json:"name_a"`
	NameB             string             `json:"name_b"`
	ClusterA          string             `json:"cluster_a"`
	ClusterB          string             `json:"cluster_b"`
	CountA            int                `json:"count_a"`
	CountB            int                `json:"count_b"`
	Intersection      []IntersectionItem `json:"intersection"`
	IntersectionCount int                `json:"intersection_count"`
}

// Snapshot is the result of one all-pairs analysis. It is replaced as a whole
// on every run and must be treated as read-only once returned.
type Snapshot struct {
	Pairs       []PairResult `json:"pairs"`
	SetCount    int          `json:"set_count"`
	ComputedAt  time.Time    `json:"computed_at"`
	Fingerprint string       `json:"fingerprint"`
}

// TotalDuplicates sums the intersection counts of every pair.
func (s *Snapshot) TotalDuplicates() int {
	if s == nil {
		return 0
	}
	total := 0
	for _, p := range s.Pairs {
		total += p.IntersectionCount
	}
	return total
}

// Find returns the pair with exactly the given (A, B) order.
func (s *Snapshot) Find(idA, idB string) (PairResult, bool) {
	if s == nil {
		return PairResult{}, false
	}
	for _, p := range s.Pairs {
		if p.IDA == idA && p.IDB == idB {
			return p, true
		}
	}
	return PairResult{}, false
}
