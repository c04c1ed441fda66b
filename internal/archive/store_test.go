package archive

import (
	"context"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/postgres/postgrestest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveLatestList(t *testing.T) {
	db := postgrestest.Connect(t)
	store := NewStore(db)
	ctx := context.Background()

	snap, err := dedup.AnalyzeAll([]dedup.QuerySet{
		{ID: "a", Entries: []dedup.QueryEntry{{Text: "x", Count: 1}, {Text: "y", Count: 9}}},
		{ID: "b", Entries: []dedup.QueryEntry{{Text: "x", Count: 2}}},
		{ID: "c", Entries: []dedup.QueryEntry{{Text: "y", Count: 9}}},
	})
	require.NoError(t, err)

	sessionID := uuid.NewString()
	id, err := store.Save(ctx, sessionID, snap)
	require.NoError(t, err)
	assert.Positive(t, id)

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, snap.Fingerprint, latest.Fingerprint)
	assert.Equal(t, snap.Pairs, latest.Pairs)

	entries, err := store.List(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, sessionID, entries[0].SessionID)
	assert.Equal(t, 3, entries[0].SetCount)
	assert.Equal(t, 3, entries[0].PairCount)
}

func TestStore_SaveNil(t *testing.T) {
	store := NewStore(nil)
	_, err := store.Save(context.Background(), "s", nil)
	assert.Error(t, err)
}
