package store

import "time"

// Record is one entry of a vector collection. Embedding may be nil when the
// collection was filled without an embedding function.
type Record struct {
	ID        string         `json:"id"`
	Document  string         `json:"document"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
}

// Match is a record scored against a query vector.
type Match struct {
	Record
	Score float32 `json:"score"`
}
