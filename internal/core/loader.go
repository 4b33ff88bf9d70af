package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/yaoapp/kun/log"
)

// PDFLoader extracts plain text, one Document per page.
type PDFLoader struct{}

func (PDFLoader) Load(ctx context.Context, path string) (docs []Document, err error) {
	// The pdf reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("failed to parse pdf %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn("Could not extract text from page %d of %s: %v", i, path, err)
			continue
		}
		docs = append(docs, Document{
			Content:  text,
			Metadata: map[string]any{"source": filepath.Base(path), "page": i},
		})
	}
	log.Debug("Loaded %d pages from %s", len(docs), path)
	return docs, nil
}

// TextLoader reads the whole file as a single Document.
type TextLoader struct{}

func (TextLoader) Load(_ context.Context, path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return []Document{{
		Content:  string(data),
		Metadata: map[string]any{"source": filepath.Base(path)},
	}}, nil
}

// FileLoader picks a loader from the file extension.
type FileLoader struct {
	loaders map[string]DocumentLoader
}

func NewFileLoader() *FileLoader {
	return &FileLoader{loaders: map[string]DocumentLoader{
		".pdf": PDFLoader{},
		".txt": TextLoader{},
		".md":  TextLoader{},
	}}
}

// Supports reports whether name has an extension the loader can read.
func (l *FileLoader) Supports(name string) bool {
	_, ok := l.loaders[strings.ToLower(filepath.Ext(name))]
	return ok
}

func (l *FileLoader) Load(ctx context.Context, path string) ([]Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	loader, ok := l.loaders[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	return loader.Load(ctx, path)
}
