package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yaoapp/kun/log"
	"gwi.com/docqa/internal/params"
)

type State string

const (
	StateNoFileLoaded         State = "no_file_loaded"
	StateFileLoadedNotIndexed State = "file_loaded_not_indexed"
	StateReady                State = "ready"
)

// Stage is the ingestion step last reached, shown by the indexing view.
type Stage string

const (
	StageIdle     Stage = ""
	StageLoading  Stage = "loading"
	StageChunking Stage = "chunking"
	StageIndexing Stage = "indexing"
	StageDone     Stage = "done"
	StageFailed   Stage = "failed"
)

type EngineOptions struct {
	UploadDir  string
	Params     params.Parameters
	Loader     DocumentLoader
	Embedder   Embedder
	Generator  Generator
	Collection Collection
	// Timeout bounds one query, zero means no limit.
	Timeout time.Duration
}

// Engine drives one document from upload to answering questions:
// NoFileLoaded -> FileLoadedNotIndexed -> Ready. There is no way back.
type Engine struct {
	opts EngineOptions

	mu       sync.RWMutex
	params   params.Parameters
	state    State
	filename string
	path     string
	docs     []Document
	chunks   []Document
	store    *VectorStore
	stage    Stage
	progress int
	lastErr  error
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Loader == nil {
		return nil, errors.New("engine: document loader is required")
	}
	if opts.Generator == nil {
		return nil, errors.New("engine: generator is required")
	}
	if opts.Collection == nil {
		return nil, errors.New("engine: collection is required")
	}
	if opts.UploadDir == "" {
		opts.UploadDir = "."
	}
	return &Engine{opts: opts, params: opts.Params, state: StateNoFileLoaded}, nil
}

// SaveFile stores the upload under its base name. An existing file of that
// name is kept as is.
//
// Engine steps are serialised by their caller. The lock only guards reading
// inputs and committing results, so snapshots stay available during I/O.
func (e *Engine) SaveFile(name string, r io.Reader) error {
	if e.State() != StateNoFileLoaded {
		return fmt.Errorf("save file: %w", ErrInvalidTransition)
	}
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		return fmt.Errorf("invalid file name %q", name)
	}
	if err := os.MkdirAll(e.opts.UploadDir, 0755); err != nil {
		return fmt.Errorf("failed to create upload dir: %w", err)
	}

	path := filepath.Join(e.opts.UploadDir, base)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	switch {
	case errors.Is(err, os.ErrExist):
		log.Info("File %s already present, keeping it", path)
	case err != nil:
		return fmt.Errorf("failed to create %s: %w", path, err)
	default:
		_, copyErr := io.Copy(f, r)
		closeErr := f.Close()
		if err := errors.Join(copyErr, closeErr); err != nil {
			os.Remove(path)
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	e.mu.Lock()
	e.filename = base
	e.path = path
	e.state = StateFileLoadedNotIndexed
	e.mu.Unlock()
	log.Info("File %s saved", base)
	return nil
}

func (e *Engine) LoadData(ctx context.Context) error {
	e.mu.RLock()
	state, path, filename := e.state, e.path, e.filename
	e.mu.RUnlock()

	if state == StateNoFileLoaded {
		return fmt.Errorf("load data: %w", ErrInvalidTransition)
	}
	docs, err := e.opts.Loader.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", filename, err)
	}

	e.mu.Lock()
	e.docs = docs
	e.mu.Unlock()
	return nil
}

// ChunkData splits the loaded documents. It returns ErrNoText when nothing is left to index.
func (e *Engine) ChunkData() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.docs == nil {
		return fmt.Errorf("chunk data: %w", ErrInvalidTransition)
	}
	splitter := NewTextSplitter(e.params.ChunkSize, e.params.OverlapChars())
	chunks := splitter.SplitDocuments(e.docs)
	if len(chunks) == 0 {
		e.chunks = nil
		return ErrNoText
	}
	e.chunks = chunks
	log.Info("Split %s into %d chunks (size %d, overlap %d)", e.filename, len(chunks), splitter.ChunkSize, splitter.ChunkOverlap)
	return nil
}

// CreateVectorStore connects to the session collection and fills it if empty.
func (e *Engine) CreateVectorStore(ctx context.Context) error {
	e.mu.RLock()
	chunks, filename := e.chunks, e.filename
	e.mu.RUnlock()

	if len(chunks) == 0 {
		return fmt.Errorf("create vector store: %w", ErrInvalidTransition)
	}

	vs := NewVectorStore(e.opts.Collection, e.opts.Embedder)
	empty, err := vs.IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("failed to inspect collection: %w", err)
	}
	if empty {
		texts := make([]string, len(chunks))
		metadatas := make([]map[string]any, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
			metadatas[i] = c.Metadata
		}
		ids, err := vs.Upsert(ctx, texts, metadatas, nil)
		if err != nil {
			return err
		}
		log.Info("Indexed %d chunks of %s", len(ids), filename)
	} else {
		log.Info("Collection already populated, skipping indexing of %s", filename)
	}

	e.mu.Lock()
	e.store = vs
	e.state = StateReady
	e.mu.Unlock()
	return nil
}

// Ingest runs load, chunk and index in order, reporting progress after each step.
func (e *Engine) Ingest(ctx context.Context, progress func(Stage, int)) error {
	report := func(s Stage, pct int) {
		e.mu.Lock()
		e.stage, e.progress = s, pct
		e.mu.Unlock()
		if progress != nil {
			progress(s, pct)
		}
	}

	steps := []struct {
		stage Stage
		pct   int
		run   func() error
	}{
		{StageLoading, 20, func() error { return e.LoadData(ctx) }},
		{StageChunking, 60, e.ChunkData},
		{StageIndexing, 100, func() error { return e.CreateVectorStore(ctx) }},
	}

	e.setErr(nil)
	report(StageLoading, 0)
	for i, step := range steps {
		if err := step.run(); err != nil {
			e.setErr(err)
			report(StageFailed, e.Snapshot().Progress)
			return err
		}
		next := StageDone
		if i+1 < len(steps) {
			next = steps[i+1].stage
		}
		report(next, step.pct)
	}
	return nil
}

// Query answers q from the indexed document. It never fails: errors are
// logged and reported through the Answer kind.
func (e *Engine) Query(ctx context.Context, q string) Answer {
	e.mu.RLock()
	p := e.params
	vs := e.store
	e.mu.RUnlock()

	if vs == nil {
		return Answer{Kind: KindFailed, Err: ErrNotReady}
	}
	logParams(p)

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	chain, err := NewChain(e.opts.Generator, p)
	if err != nil {
		return e.fail(q, err)
	}
	chunks, err := vs.Search(ctx, q, p.SearchType, p.SearchK)
	if err != nil {
		return e.fail(q, err)
	}
	if len(chunks) == 0 {
		log.Info("No chunks retrieved for query: %s", q)
		return Answer{Kind: KindEmptyRetrieval}
	}

	text, err := chain.Run(ctx, q, chunks)
	if err != nil {
		return e.fail(q, err)
	}
	if text == "" {
		return Answer{Kind: KindEmptyRetrieval, Sources: chunks}
	}
	return Answer{Kind: KindAnswered, Text: text, Sources: chunks}
}

func (e *Engine) fail(q string, err error) Answer {
	ans := failedAnswer(err)
	log.With(log.F{"query": q, "kind": string(ans.Kind), "file": e.Filename()}).Error("Query failed: %v", err)
	return ans
}

// SetParams replaces the parameters. Chunking fields are frozen once a file is loaded.
func (e *Engine) SetParams(p params.Parameters) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateNoFileLoaded && e.params.IngestionChanged(p) {
		return ErrParamsLocked
	}
	e.params = p
	return nil
}

func (e *Engine) Params() params.Parameters {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.params
}

func (e *Engine) IsFileLoaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state != StateNoFileLoaded
}

func (e *Engine) IsVectorStoreLoaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state == StateReady
}

func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) Filename() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.filename
}

// Chunks returns the number of chunks produced for the current file.
func (e *Engine) Chunks() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.chunks)
}

// Close drops the indexed records of this engine.
func (e *Engine) Close(ctx context.Context) error {
	return e.opts.Collection.Drop(ctx)
}

func (e *Engine) setErr(err error) {
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
}

func logParams(p params.Parameters) {
	log.With(log.F{
		"chunk_size":         p.ChunkSize,
		"chunk_overlap":      p.ChunkOverlap,
		"model":              p.Model,
		"temperature":        p.Temperature,
		"top_k":              p.TopK,
		"top_p":              p.TopP,
		"repetition_penalty": p.RepetitionPenalty,
		"min_new_tokens":     p.MinNewTokens,
		"max_new_tokens":     p.MaxNewTokens,
		"chain_type":         string(p.ChainType),
		"search_type":        string(p.SearchType),
		"search_k":           p.SearchK,
	}).Debug("Query parameters")
}
