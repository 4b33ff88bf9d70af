package core

import (
	"context"
	"strings"
	"sync"

	"gwi.com/docqa/internal/store"
)

// letterEmbedder maps text to its letter histogram, enough for cosine ranking in tests.
type letterEmbedder struct {
	mu        sync.Mutex
	documents int
	queries   int
	err       error
}

func letters(text string) []float32 {
	v := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v
}

func (e *letterEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.documents++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = letters(t)
	}
	return out, nil
}

func (e *letterEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.queries++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	return letters(text), nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	respond func(prompt string) (string, error)
}

func (g *fakeGenerator) Generate(_ context.Context, req GenerateRequest) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, req.Prompt)
	g.mu.Unlock()
	if g.respond == nil {
		return "an answer", nil
	}
	return g.respond(req.Prompt)
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// countingCollection records how often each operation reaches the backend.
type countingCollection struct {
	inner    *store.Collection
	mu       sync.Mutex
	upserts  int
	counts   int
	searches int
}

func newCountingCollection(b store.Backend, namespace string) *countingCollection {
	return &countingCollection{inner: store.NewCollection(b, namespace)}
}

func (c *countingCollection) Upsert(ctx context.Context, records []store.Record) error {
	c.mu.Lock()
	c.upserts++
	c.mu.Unlock()
	return c.inner.Upsert(ctx, records)
}

func (c *countingCollection) Count(ctx context.Context) (int, error) {
	c.mu.Lock()
	c.counts++
	c.mu.Unlock()
	return c.inner.Count(ctx)
}

func (c *countingCollection) Search(ctx context.Context, query []float32, k int) ([]store.Match, error) {
	c.mu.Lock()
	c.searches++
	c.mu.Unlock()
	return c.inner.Search(ctx, query, k)
}

func (c *countingCollection) Drop(ctx context.Context) error {
	return c.inner.Drop(ctx)
}

func (c *countingCollection) operations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.upserts + c.counts + c.searches
}

type staticLoader struct {
	docs []Document
	err  error
}

func (l staticLoader) Load(context.Context, string) ([]Document, error) {
	return l.docs, l.err
}

func pages(texts ...string) []Document {
	docs := make([]Document, len(texts))
	for i, t := range texts {
		docs[i] = Document{Content: t, Metadata: map[string]any{"source": "test.pdf", "page": i + 1}}
	}
	return docs
}

// blockingEmbedder parks EmbedDocuments until release is closed, ignoring ctx.
type blockingEmbedder struct {
	letterEmbedder
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingEmbedder() *blockingEmbedder {
	return &blockingEmbedder{entered: make(chan struct{}), release: make(chan struct{})}
}

func (e *blockingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.once.Do(func() { close(e.entered) })
	<-e.release
	return e.letterEmbedder.EmbedDocuments(ctx, texts)
}

// blockingReader hands out its content only after release is closed.
type blockingReader struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	data    *strings.Reader
}

func newBlockingReader(content string) *blockingReader {
	return &blockingReader{entered: make(chan struct{}), release: make(chan struct{}), data: strings.NewReader(content)}
}

func (r *blockingReader) Read(p []byte) (int, error) {
	r.once.Do(func() { close(r.entered) })
	<-r.release
	return r.data.Read(p)
}
