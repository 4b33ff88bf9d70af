package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/yaoapp/kun/log"
	"gwi.com/docqa/internal/params"
	"gwi.com/docqa/internal/store"
)

const sessionIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

type ManagerOptions struct {
	Backend        store.Backend
	CollectionName string
	UploadDir      string
	Params         params.Parameters
	Loader         DocumentLoader
	Embedder       Embedder
	Generator      Generator
	Timeout        time.Duration
}

// Manager owns every live session. Each session gets its own collection
// namespace and upload directory so concurrent users never see each other's
// documents.
type Manager struct {
	opts   ManagerOptions
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(opts ManagerOptions) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session with its own event loop.
func (m *Manager) Create() (*Session, error) {
	id, err := gonanoid.Generate(sessionIDAlphabet, 16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	engine, err := NewEngine(EngineOptions{
		UploadDir:  filepath.Join(m.opts.UploadDir, id),
		Params:     m.opts.Params,
		Loader:     m.opts.Loader,
		Embedder:   m.opts.Embedder,
		Generator:  m.opts.Generator,
		Collection: store.NewCollection(m.opts.Backend, m.opts.CollectionName+"/"+id),
		Timeout:    m.opts.Timeout,
	})
	if err != nil {
		return nil, err
	}

	s := NewSession(id, engine)
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	go s.Run(m.ctx)
	log.Info("Session %s created", id)
	return s, nil
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close ends a session, dropping its records and uploaded file once its
// event loop has stopped.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return nil
	}

	s.Close()
	// Wait for an in-flight handler so nothing is written after the drop.
	select {
	case <-s.Stopped():
	case <-ctx.Done():
		go func() {
			<-s.Stopped()
			if err := m.release(context.Background(), s); err != nil {
				log.Error("%v", err)
			}
		}()
		return fmt.Errorf("session %s is still busy, cleanup deferred: %w", id, ctx.Err())
	}
	return m.release(ctx, s)
}

// release drops the records and uploads of a stopped session.
func (m *Manager) release(ctx context.Context, s *Session) error {
	var firstErr error
	if err := s.engine.Close(ctx); err != nil {
		firstErr = fmt.Errorf("failed to drop session %s records: %w", s.ID, err)
	}
	if err := os.RemoveAll(s.uploadDir); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to remove session %s uploads: %w", s.ID, err)
	}
	log.Info("Session %s closed", s.ID)
	return firstErr
}

// CloseAll ends every session and stops their event loops.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.Close(ctx, id); err != nil {
			log.Error("%v", err)
		}
	}
	m.cancel()
}
