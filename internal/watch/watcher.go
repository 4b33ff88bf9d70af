// Package watch turns a drop folder into a stream of documents ready to ingest.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/yaoapp/kun/log"
)

// DefaultSettle is how long a file must stay unchanged before it is emitted.
const DefaultSettle = 500 * time.Millisecond

// Watcher emits each new supported file in a directory once its writes settle.
type Watcher struct {
	watcher  *fsnotify.Watcher
	supports func(name string) bool
	settle   time.Duration
}

// NewWatcher builds a watcher; supports filters file names, settle falls back to DefaultSettle.
func NewWatcher(supports func(name string) bool, settle time.Duration) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Watcher{watcher: w, supports: supports, settle: settle}, nil
}

// Watch monitors dir until ctx is done. Every path is emitted at most once.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan string, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	out := make(chan string, 16)
	go func() {
		defer close(out)

		pending := make(map[string]time.Time)
		emitted := make(map[string]bool)
		ticker := time.NewTicker(w.settle / 2)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				if emitted[event.Name] || !w.supports(filepath.Base(event.Name)) {
					continue
				}
				pending[event.Name] = time.Now()
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Warn("File watcher error on %s: %v", dir, err)
			case now := <-ticker.C:
				for path, last := range pending {
					if now.Sub(last) < w.settle {
						continue
					}
					delete(pending, path)
					emitted[path] = true
					log.Debug("Picked up %s", path)
					select {
					case out <- path:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
