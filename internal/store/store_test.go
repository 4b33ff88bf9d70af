package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Backend{
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
}

func TestCollectionUpsertCountSearch(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := NewCollection(b, "docs/session-a")

			n, err := c.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)

			require.NoError(t, c.Upsert(ctx, []Record{
				{ID: "a", Document: "apples", Metadata: map[string]any{"page": float64(1)}, Embedding: []float32{1, 0, 0}},
				{ID: "b", Document: "bananas", Embedding: []float32{0, 1, 0}},
				{ID: "c", Document: "cherries", Embedding: []float32{0.9, 0.1, 0}},
				{ID: "d", Document: "no vector"},
			}))

			n, err = c.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 4, n)

			matches, err := c.Search(ctx, []float32{1, 0, 0}, 2)
			require.NoError(t, err)
			require.Len(t, matches, 2)
			assert.Equal(t, "a", matches[0].ID)
			assert.Equal(t, "c", matches[1].ID)
			assert.Equal(t, float64(1), matches[0].Metadata["page"])
			assert.InDelta(t, 1.0, matches[0].Score, 1e-6)

			all, err := c.Search(ctx, []float32{1, 0, 0}, 10)
			require.NoError(t, err)
			assert.Len(t, all, 3, "records without vectors are not searchable")
		})
	}
}

func TestCollectionUpsertOverwritesSameID(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := NewCollection(b, "ns")
			require.NoError(t, c.Upsert(ctx, []Record{{ID: "x", Document: "old", Embedding: []float32{1, 0}}}))
			require.NoError(t, c.Upsert(ctx, []Record{{ID: "x", Document: "new", Embedding: []float32{1, 0}}}))

			n, err := c.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			matches, err := c.Search(ctx, []float32{1, 0}, 1)
			require.NoError(t, err)
			require.Len(t, matches, 1)
			assert.Equal(t, "new", matches[0].Document)
		})
	}
}

func TestNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			first := NewCollection(b, "store/one")
			second := NewCollection(b, "store/two")

			require.NoError(t, first.Upsert(ctx, []Record{{ID: "1", Document: "first", Embedding: []float32{1}}}))

			n, err := second.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)

			matches, err := second.Search(ctx, []float32{1}, 5)
			require.NoError(t, err)
			assert.Empty(t, matches)

			require.NoError(t, first.Drop(ctx))
			n, err = first.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}
