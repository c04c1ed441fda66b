package dedup

import (
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/querydedup/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func set(id string, entries ...QueryEntry) QuerySet {
	return QuerySet{ID: id, Name: "set " + id, ClusterName: "cluster", Entries: entries}
}

func q(text string, count int64) QueryEntry {
	return QueryEntry{Text: text, Count: count}
}

func TestCompare_SingleSharedQuery(t *testing.T) {
	a := set("a", q("tour paris", 100), q("hotel rome", 50))
	b := set("b", q("tour paris", 80), q("flight madrid", 30))

	pair, err := Compare(a, b)
	require.NoError(t, err)

	assert.Equal(t, "a", pair.IDA)
	assert.Equal(t, "b", pair.IDB)
	assert.Equal(t, 2, pair.CountA)
	assert.Equal(t, 2, pair.CountB)
	assert.Equal(t, 1, pair.IntersectionCount)
	assert.Equal(t, []IntersectionItem{
		{Query: "tour paris", CountInA: 100, CountInB: 80, DefaultStaysIn: SideA},
	}, pair.Intersection)
}

func TestCompare_StayingSide(t *testing.T) {
	tests := []struct {
		name     string
		countA   int64
		countB   int64
		expected Side
	}{
		{"a higher", 10, 5, SideA},
		{"b higher", 5, 10, SideB},
		{"equal keeps a", 10, 10, SideA},
		{"both zero keeps a", 0, 0, SideA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := Compare(set("a", q("x", tt.countA)), set("b", q("x", tt.countB)))
			require.NoError(t, err)
			require.Len(t, pair.Intersection, 1)
			assert.Equal(t, tt.expected, pair.Intersection[0].DefaultStaysIn)

			again, err := Compare(set("a", q("x", tt.countA)), set("b", q("x", tt.countB)))
			require.NoError(t, err)
			assert.Equal(t, pair, again)
		})
	}
}

func TestCompare_NoOverlap(t *testing.T) {
	pair, err := Compare(set("a", q("a", 1)), set("b", q("b", 1)))
	require.NoError(t, err)
	assert.Equal(t, 0, pair.IntersectionCount)
	assert.Empty(t, pair.Intersection)
	assert.NotNil(t, pair.Intersection)
}

func TestCompare_EmptySets(t *testing.T) {
	pair, err := Compare(set("a"), set("b", q("x", 1)))
	require.NoError(t, err)
	assert.Equal(t, 0, pair.IntersectionCount)
	assert.Equal(t, 0, pair.CountA)
	assert.Equal(t, 1, pair.CountB)
}

func TestCompare_SameIDRejected(t *testing.T) {
	_, err := Compare(set("a", q("x", 1)), set("a", q("x", 1)))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidPair)
}

func TestCompare_OrderFollowsA(t *testing.T) {
	a := set("a", q("z", 1), q("m", 1), q("a", 1))
	b := set("b", q("a", 1), q("z", 1), q("m", 1))

	pair, err := Compare(a, b)
	require.NoError(t, err)

	got := make([]string, 0, len(pair.Intersection))
	for _, item := range pair.Intersection {
		got = append(got, item.Query)
	}
	assert.Equal(t, []string{"z", "m", "a"}, got)
}

func TestCompare_CaseSensitiveMatch(t *testing.T) {
	pair, err := Compare(set("a", q("Tour Paris", 1)), set("b", q("tour paris", 1)))
	require.NoError(t, err)
	assert.Equal(t, 0, pair.IntersectionCount)
}

func TestCompare_DuplicateTextFirstOccurrenceWins(t *testing.T) {
	a := set("a", q("x", 5), q("x", 50))
	b := set("b", q("x", 10), q("x", 1))

	pair, err := Compare(a, b)
	require.NoError(t, err)
	require.Len(t, pair.Intersection, 1)
	assert.Equal(t, int64(5), pair.Intersection[0].CountInA)
	assert.Equal(t, int64(10), pair.Intersection[0].CountInB)
	assert.Equal(t, SideB, pair.Intersection[0].DefaultStaysIn)
}

func TestCompare_IntersectionMatchesReference(t *testing.T) {
	a := set("a", q("one", 1), q("two", 2), q("three", 3), q("four", 4), q("five", 5))
	b := set("b", q("five", 9), q("six", 1), q("two", 2), q("seven", 7), q("one", 0))

	pair, err := Compare(a, b)
	require.NoError(t, err)

	textsB := make(map[string]bool)
	for _, e := range b.Entries {
		textsB[e.Text] = true
	}
	expected := make(map[string]bool)
	for _, e := range a.Entries {
		if textsB[e.Text] {
			expected[e.Text] = true
		}
	}

	got := make(map[string]bool)
	for _, item := range pair.Intersection {
		assert.False(t, got[item.Query], "duplicate item %q", item.Query)
		got[item.Query] = true
	}
	assert.Equal(t, expected, got)
}

func TestCompare_DoesNotMutateInputs(t *testing.T) {
	a := set("a", q("x", 1), q("y", 2))
	b := set("b", q("y", 3), q("x", 4))
	origA := append([]QueryEntry(nil), a.Entries...)
	origB := append([]QueryEntry(nil), b.Entries...)

	_, err := Compare(a, b)
	require.NoError(t, err)

	assert.Equal(t, origA, a.Entries)
	assert.Equal(t, origB, b.Entries)
}
