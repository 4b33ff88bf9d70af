package store

import (
	"context"
	"sort"

	"gwi.com/docqa/internal/utils"
)

// Backend persists records partitioned by namespace.
type Backend interface {
	Upsert(ctx context.Context, namespace string, records []Record) error
	Count(ctx context.Context, namespace string) (int, error)
	Records(ctx context.Context, namespace string) ([]Record, error)
	DropNamespace(ctx context.Context, namespace string) error
	Close() error
}

// Collection is a Backend bound to one namespace.
type Collection struct {
	backend   Backend
	namespace string
}

func NewCollection(b Backend, namespace string) *Collection {
	return &Collection{backend: b, namespace: namespace}
}

func (c *Collection) Namespace() string {
	return c.namespace
}

func (c *Collection) Upsert(ctx context.Context, records []Record) error {
	return c.backend.Upsert(ctx, c.namespace, records)
}

func (c *Collection) Count(ctx context.Context) (int, error) {
	return c.backend.Count(ctx, c.namespace)
}

// Search returns up to k records ranked by cosine similarity to query.
// Records stored without an embedding are skipped.
func (c *Collection) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	records, err := c.backend.Records(ctx, c.namespace)
	if err != nil {
		return nil, err
	}
	return rank(query, records, k), nil
}

func (c *Collection) Drop(ctx context.Context) error {
	return c.backend.DropNamespace(ctx, c.namespace)
}

func rank(query []float32, records []Record, k int) []Match {
	matches := make([]Match, 0, len(records))
	for _, r := range records {
		if len(r.Embedding) == 0 {
			continue
		}
		sim, err := utils.CosineSimilarity(query, r.Embedding)
		if err != nil {
			continue
		}
		matches = append(matches, Match{Record: r, Score: sim})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k >= 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
