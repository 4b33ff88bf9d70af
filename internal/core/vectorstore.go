package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gwi.com/docqa/internal/params"
	"gwi.com/docqa/internal/store"
	"gwi.com/docqa/internal/utils"
)

const (
	mmrLambda   = 0.5
	mmrMinFetch = 20
)

type ScoredChunk struct {
	ID string `json:"id"`
	Document
	Similarity float32 `json:"similarity"`
}

// VectorStore adds id generation and query embedding on top of a Collection.
type VectorStore struct {
	collection Collection
	embedder   Embedder
}

// NewVectorStore wraps c. A nil embedder stores records without vectors, which
// leaves them out of every search.
func NewVectorStore(c Collection, e Embedder) *VectorStore {
	return &VectorStore{collection: c, embedder: e}
}

// Upsert stores texts and returns the ids used. Missing ids are generated;
// given ids are returned unchanged and in order.
func (v *VectorStore) Upsert(ctx context.Context, texts []string, metadatas []map[string]any, ids []string) ([]string, error) {
	if metadatas != nil && len(metadatas) != len(texts) {
		return nil, fmt.Errorf("got %d metadatas for %d texts", len(metadatas), len(texts))
	}
	if ids == nil {
		ids = make([]string, len(texts))
		for i := range ids {
			ids[i] = uuid.NewString()
		}
	} else if len(ids) != len(texts) {
		return nil, fmt.Errorf("got %d ids for %d texts", len(ids), len(texts))
	}
	if len(texts) == 0 {
		return ids, nil
	}

	var embeddings [][]float32
	if v.embedder != nil {
		var err error
		embeddings, err = v.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed documents: %w", err)
		}
		if len(embeddings) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(embeddings), len(texts))
		}
	}

	records := make([]store.Record, len(texts))
	for i, text := range texts {
		records[i] = store.Record{ID: ids[i], Document: text}
		if metadatas != nil {
			records[i].Metadata = metadatas[i]
		}
		if embeddings != nil {
			records[i].Embedding = embeddings[i]
		}
	}
	if err := v.collection.Upsert(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to upsert records: %w", err)
	}
	return ids, nil
}

func (v *VectorStore) IsEmpty(ctx context.Context) (bool, error) {
	n, err := v.collection.Count(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Search retrieves k chunks for query using plain similarity or maximal marginal relevance.
func (v *VectorStore) Search(ctx context.Context, query string, searchType params.SearchType, k int) ([]ScoredChunk, error) {
	if v.embedder == nil {
		return nil, errors.New("search requires an embedding function")
	}
	if k <= 0 {
		return nil, nil
	}

	qv, err := v.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	switch searchType {
	case params.SearchMMR:
		fetch := k * 4
		if fetch < mmrMinFetch {
			fetch = mmrMinFetch
		}
		candidates, err := v.collection.Search(ctx, qv, fetch)
		if err != nil {
			return nil, err
		}
		vectors := make([][]float32, len(candidates))
		for i, c := range candidates {
			vectors[i] = c.Embedding
		}
		picked := utils.MaxMarginalRelevance(qv, vectors, k, mmrLambda)
		out := make([]ScoredChunk, 0, len(picked))
		for _, i := range picked {
			out = append(out, toScored(candidates[i]))
		}
		return out, nil

	case params.SearchSimilarity, "":
		matches, err := v.collection.Search(ctx, qv, k)
		if err != nil {
			return nil, err
		}
		out := make([]ScoredChunk, len(matches))
		for i, m := range matches {
			out[i] = toScored(m)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown search type %q", searchType)
}

// Drop removes every record of the underlying namespace.
func (v *VectorStore) Drop(ctx context.Context) error {
	return v.collection.Drop(ctx)
}

func toScored(m store.Match) ScoredChunk {
	return ScoredChunk{
		ID:         m.ID,
		Document:   Document{Content: m.Document, Metadata: m.Metadata},
		Similarity: m.Score,
	}
}
