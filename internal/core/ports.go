package core

import (
	"context"

	"gwi.com/docqa/internal/params"
	"gwi.com/docqa/internal/store"
)

// Document is a piece of text with opaque provenance metadata (source, page).
type Document struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Embedder turns text into vectors. Implementations are shared by every
// session and must be safe for concurrent use.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type GenerateRequest struct {
	Prompt string
	Params params.Parameters
}

// Generator runs one completion against the hosted model.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

type DocumentLoader interface {
	Load(ctx context.Context, path string) ([]Document, error)
}

// Collection is a namespaced vector collection, see store.Collection.
type Collection interface {
	Upsert(ctx context.Context, records []store.Record) error
	Count(ctx context.Context) (int, error)
	Search(ctx context.Context, query []float32, k int) ([]store.Match, error)
	Drop(ctx context.Context) error
}
