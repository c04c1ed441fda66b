package dedup

import (
	"fmt"
	"testing"
)

// benchSets builds n sets of size queries each, where neighbouring sets share
// roughly half of their queries.
func benchSets(n, size int) []QuerySet {
	sets := make([]QuerySet, n)
	for i := range sets {
		entries := make([]QueryEntry, size)
		for j := range entries {
			entries[j] = QueryEntry{
				Text:  fmt.Sprintf("query %d", i*size/2+j),
				Count: int64((i*7 + j*13) % 1000),
			}
		}
		sets[i] = QuerySet{ID: fmt.Sprintf("set-%d", i), Name: fmt.Sprintf("Set %d", i), Entries: entries}
	}
	return sets
}

// BenchmarkCompare measures a single pair comparison for growing set sizes.
func BenchmarkCompare(b *testing.B) {
	for _, size := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("queries_%d", size), func(b *testing.B) {
			sets := benchSets(2, size)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := Compare(sets[0], sets[1]); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkAnalyzeAll measures the full all-pairs run without memoization.
func BenchmarkAnalyzeAll(b *testing.B) {
	for _, n := range []int{10, 50} {
		b.Run(fmt.Sprintf("sets_%d", n), func(b *testing.B) {
			sets := benchSets(n, 200)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := AnalyzeAll(sets); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkAnalyzer_Memoized(b *testing.B) {
	sets := benchSets(50, 200)
	a := NewAnalyzer()
	if _, err := a.AnalyzeAll(sets); err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := a.AnalyzeAll(sets); err != nil {
			b.Fatal(err)
		}
	}
}
