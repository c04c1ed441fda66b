package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/dedup"
	apperrors "github.com/Adithya-Monish-Kumar-K/querydedup/pkg/errors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	in := []dedup.QuerySet{{
		ID:   " s1 ",
		Name: "",
		Entries: []dedup.QueryEntry{
			{Text: "  tour paris ", Count: 10},
			{Text: "   ", Count: 4},
			{Text: "louvre", Count: 0},
		},
	}}
	out, err := Normalize(in)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "s1", out[0].ID)
	assert.Equal(t, "s1", out[0].Name)
	assert.Equal(t, []dedup.QueryEntry{{Text: "tour paris", Count: 10}, {Text: "louvre", Count: 0}}, out[0].Entries)

	assert.Equal(t, "  tour paris ", in[0].Entries[0].Text, "input must not be modified")
}

func TestNormalize_Rejects(t *testing.T) {
	tests := []struct {
		name string
		sets []dedup.QuerySet
	}{
		{"empty id", []dedup.QuerySet{{ID: " "}}},
		{"duplicate id", []dedup.QuerySet{{ID: "a"}, {ID: "a "}}},
		{"negative count", []dedup.QuerySet{{ID: "a", Entries: []dedup.QueryEntry{{Text: "x", Count: -1}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.sets)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Equal(t, 400, apperrors.HTTPStatusCode(err))
		})
	}
}

const sampleYAML = `
subclusters:
  - id: paris
    name: Paris tours
    cluster: France
    queries:
      - text: tour paris
        count: 100
      - text: louvre tickets
        count: 40
  - id: lyon
    name: Lyon food
    cluster: France
    queries:
      - text: tour paris
        count: 80
`

func TestDecode_YAML(t *testing.T) {
	sets, err := Decode(strings.NewReader(sampleYAML), 0)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "Paris tours", sets[0].Name)
	assert.Equal(t, "France", sets[0].ClusterName)
	assert.Equal(t, int64(100), sets[0].Entries[0].Count)
	assert.Equal(t, "lyon", sets[1].ID)
}

func TestDecode_JSON(t *testing.T) {
	doc := `{"subclusters":[{"id":"a","name":"A","cluster":"c","queries":[{"text":"x","count":2}]},{"id":"b","queries":[]}]}`
	sets, err := Decode(strings.NewReader(doc), 0)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, []dedup.QueryEntry{{Text: "x", Count: 2}}, sets[0].Entries)
	assert.Equal(t, "b", sets[1].Name)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(strings.NewReader("subclusters: [\n"), 0)
	assert.Error(t, err)

	_, err = Decode(strings.NewReader("subclusters:\n  - id: a\n    bogus: 1\n"), 0)
	assert.Error(t, err, "unknown fields are rejected")

	_, err = Decode(strings.NewReader(sampleYAML), 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDecode_Empty(t *testing.T) {
	sets, err := Decode(strings.NewReader(""), 0)
	require.NoError(t, err)
	assert.Empty(t, sets)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	sets, err := ReadFile(path, 10)
	require.NoError(t, err)
	assert.Len(t, sets, 2)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.yaml"), 10)
	assert.Error(t, err)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(errors.New("connection reset")))
	assert.False(t, isTransient(context.Canceled))
	assert.True(t, isTransient(&pq.Error{Code: "08006"}))
	assert.False(t, isTransient(&pq.Error{Code: "42P01"}))
}

func TestLoadClusters_NoIDs(t *testing.T) {
	l := NewPostgresLoader(nil, 0)
	_, err := l.LoadClusters(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
