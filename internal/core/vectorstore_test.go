package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gwi.com/docqa/internal/params"
	"gwi.com/docqa/internal/store"
)

func TestUpsertGeneratesDistinctIDs(t *testing.T) {
	ctx := context.Background()
	vs := NewVectorStore(store.NewCollection(store.NewMemoryStore(), "ns"), &letterEmbedder{})

	texts := []string{"a", "b", "c", "d", "e"}
	ids, err := vs.Upsert(ctx, texts, nil, nil)
	require.NoError(t, err)
	require.Len(t, ids, len(texts))

	seen := map[string]bool{}
	for _, id := range ids {
		assert.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}

	empty, err := vs.IsEmpty(ctx)
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestUpsertKeepsGivenIDs(t *testing.T) {
	ctx := context.Background()
	vs := NewVectorStore(store.NewCollection(store.NewMemoryStore(), "ns"), &letterEmbedder{})

	given := []string{"z-3", "a-1", "m-2"}
	ids, err := vs.Upsert(ctx, []string{"x", "y", "z"}, []map[string]any{{"page": 1}, {"page": 2}, {"page": 3}}, given)
	require.NoError(t, err)
	assert.Equal(t, given, ids)

	_, err = vs.Upsert(ctx, []string{"x"}, nil, []string{"1", "2"})
	assert.Error(t, err)
	_, err = vs.Upsert(ctx, []string{"x"}, []map[string]any{}, nil)
	assert.Error(t, err)
}

func TestUpsertWithoutEmbedderStoresPlainRecords(t *testing.T) {
	ctx := context.Background()
	c := store.NewCollection(store.NewMemoryStore(), "ns")
	vs := NewVectorStore(c, nil)

	ids, err := vs.Upsert(ctx, []string{"plain"}, nil, nil)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = vs.Search(ctx, "plain", params.SearchSimilarity, 1)
	assert.Error(t, err)
}

func TestIsEmpty(t *testing.T) {
	vs := NewVectorStore(store.NewCollection(store.NewMemoryStore(), "ns"), &letterEmbedder{})
	empty, err := vs.IsEmpty(context.Background())
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestSearchSimilarityAndMMR(t *testing.T) {
	ctx := context.Background()
	vs := NewVectorStore(store.NewCollection(store.NewMemoryStore(), "ns"), &letterEmbedder{})
	_, err := vs.Upsert(ctx, []string{"aaab", "aaab", "bbbc", "zzzz"}, nil, []string{"1", "2", "3", "4"})
	require.NoError(t, err)

	sim, err := vs.Search(ctx, "aaa", params.SearchSimilarity, 2)
	require.NoError(t, err)
	require.Len(t, sim, 2)
	assert.ElementsMatch(t, []string{"1", "2"}, []string{sim[0].ID, sim[1].ID})

	mmr, err := vs.Search(ctx, "aaa", params.SearchMMR, 2)
	require.NoError(t, err)
	require.Len(t, mmr, 2)
	assert.Equal(t, "1", mmr[0].ID)
	assert.NotEqual(t, "2", mmr[1].ID, "the exact duplicate is skipped")

	_, err = vs.Search(ctx, "aaa", "fuzzy", 2)
	assert.Error(t, err)
}
