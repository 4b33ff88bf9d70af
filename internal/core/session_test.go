package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gwi.com/docqa/internal/params"
	"gwi.com/docqa/internal/store"
)

func runSession(t *testing.T, f *engineFixture) *Session {
	t.Helper()
	s := NewSession("test", f.engine)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(func() {
		cancel()
		s.Close()
	})
	return s
}

// waitFor reads snapshots until one matches or the deadline passes.
func waitFor(t *testing.T, ch <-chan Snapshot, match func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-ch:
			require.True(t, ok, "subscription closed")
			if match(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func TestSessionDrivesEngineThroughEvents(t *testing.T) {
	f := newFixture(t, staticLoader{docs: pages("alpha text", "beta text")}, nil)
	s := runSession(t, f)
	ctx := context.Background()

	updates, cancel := s.Subscribe()
	defer cancel()

	first := <-updates
	assert.Equal(t, ViewUpload, first.View)

	require.NoError(t, s.Upload(ctx, "doc.pdf", strings.NewReader("%PDF")))
	snap := waitFor(t, updates, func(s Snapshot) bool { return s.State == StateFileLoadedNotIndexed })
	assert.Equal(t, ViewIndexing, snap.View)
	assert.Equal(t, "doc.pdf", snap.Filename)

	require.NoError(t, s.Index(ctx))
	snap = waitFor(t, updates, func(s Snapshot) bool { return s.View == ViewChat })
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, 2, snap.Chunks)

	ans, err := s.Ask(ctx, "alpha?")
	require.NoError(t, err)
	assert.True(t, ans.OK())
}

func TestSessionUpdateParams(t *testing.T) {
	f := newFixture(t, staticLoader{docs: pages("text")}, nil)
	s := runSession(t, f)
	ctx := context.Background()

	p := s.Engine().Params()
	p.SearchK = 9
	require.NoError(t, s.UpdateParams(ctx, p))
	assert.Equal(t, 9, s.Engine().Params().SearchK)

	require.NoError(t, s.Upload(ctx, "doc.pdf", strings.NewReader("x")))
	p.ChunkSize = 300
	assert.ErrorIs(t, s.UpdateParams(ctx, p), ErrParamsLocked)
}

func TestSessionIndexFailureIsVisibleToSubscribers(t *testing.T) {
	f := newFixture(t, staticLoader{docs: pages("")}, nil)
	s := runSession(t, f)
	ctx := context.Background()

	updates, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.Upload(ctx, "empty.pdf", strings.NewReader("x")))
	assert.ErrorIs(t, s.Index(ctx), ErrNoText)

	snap := waitFor(t, updates, func(s Snapshot) bool { return s.Stage == StageFailed })
	assert.Equal(t, ErrNoText.Error(), snap.Error)
	assert.Equal(t, ViewIndexing, snap.View)
}

func TestSessionClose(t *testing.T) {
	f := newFixture(t, staticLoader{docs: pages("text")}, nil)
	s := runSession(t, f)

	updates, _ := s.Subscribe()
	<-updates
	s.Close()

	_, ok := <-updates
	assert.False(t, ok, "subscriptions are closed with the session")
	assert.ErrorIs(t, s.Upload(context.Background(), "a.pdf", strings.NewReader("x")), ErrSessionClosed)

	late, _ := s.Subscribe()
	<-late
	_, ok = <-late
	assert.False(t, ok)
}

func TestManagerIsolatesSessions(t *testing.T) {
	backend := store.NewMemoryStore()
	uploads := t.TempDir()
	m := NewManager(ManagerOptions{
		Backend:        backend,
		CollectionName: "store_minilm6v2",
		UploadDir:      uploads,
		Params:         params.New("m"),
		Loader:         staticLoader{docs: pages("shared text")},
		Embedder:       &letterEmbedder{},
		Generator:      &fakeGenerator{},
	})
	defer m.CloseAll(context.Background())
	ctx := context.Background()

	a, err := m.Create()
	require.NoError(t, err)
	b, err := m.Create()
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, m.Len())

	got, ok := m.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)

	require.NoError(t, a.Upload(ctx, "a.pdf", strings.NewReader("x")))
	require.NoError(t, a.Index(ctx))
	require.NoError(t, b.Upload(ctx, "a.pdf", strings.NewReader("y")))
	require.NoError(t, b.Index(ctx))

	for _, s := range []*Session{a, b} {
		n, err := backend.Count(ctx, "store_minilm6v2/"+s.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "each session indexes into its own namespace")
	}

	require.NoError(t, m.Close(ctx, a.ID))
	_, ok = m.Get(a.ID)
	assert.False(t, ok)
	n, err := backend.Count(ctx, "store_minilm6v2/"+a.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = os.Stat(a.uploadDir)
	assert.True(t, os.IsNotExist(err))

	n, err = backend.Count(ctx, "store_minilm6v2/"+b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestManagerCloseDuringIndexingDropsRecords(t *testing.T) {
	backend := store.NewMemoryStore()
	embedder := newBlockingEmbedder()
	m := NewManager(ManagerOptions{
		Backend:        backend,
		CollectionName: "c",
		UploadDir:      t.TempDir(),
		Params:         params.New("m"),
		Loader:         staticLoader{docs: pages("text being indexed")},
		Embedder:       embedder,
		Generator:      &fakeGenerator{},
	})
	defer m.CloseAll(context.Background())
	ctx := context.Background()

	s, err := m.Create()
	require.NoError(t, err)
	require.NoError(t, s.Upload(ctx, "doc.pdf", strings.NewReader("x")))
	require.NoError(t, s.Post(ctx, IndexRequested{}))
	<-embedder.entered

	closed := make(chan error, 1)
	go func() { closed <- m.Close(ctx, s.ID) }()

	select {
	case <-closed:
		t.Fatal("close returned while ingestion was still running")
	case <-time.After(100 * time.Millisecond):
	}
	close(embedder.release)
	require.NoError(t, <-closed)

	n, err := backend.Count(ctx, "c/"+s.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestManagerCloseDefersCleanupWhenContextEnds(t *testing.T) {
	backend := store.NewMemoryStore()
	embedder := newBlockingEmbedder()
	m := NewManager(ManagerOptions{
		Backend:        backend,
		CollectionName: "c",
		UploadDir:      t.TempDir(),
		Params:         params.New("m"),
		Loader:         staticLoader{docs: pages("text")},
		Embedder:       embedder,
		Generator:      &fakeGenerator{},
	})

	s, err := m.Create()
	require.NoError(t, err)
	require.NoError(t, s.Upload(context.Background(), "doc.pdf", strings.NewReader("x")))
	require.NoError(t, s.Post(context.Background(), IndexRequested{}))
	<-embedder.entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Close(ctx, s.ID), context.DeadlineExceeded)

	close(embedder.release)
	<-s.Stopped()
	assert.Eventually(t, func() bool {
		n, err := backend.Count(context.Background(), "c/"+s.ID)
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUploadWaitsForCopyAfterContextEnds(t *testing.T) {
	f := newFixture(t, staticLoader{docs: pages("text")}, nil)
	s := runSession(t, f)

	data := newBlockingReader("%PDF-1.4")
	ctx, cancel := context.WithCancel(context.Background())
	uploaded := make(chan error, 1)
	go func() { uploaded <- s.Upload(ctx, "doc.pdf", data) }()

	<-data.entered
	cancel()
	select {
	case <-uploaded:
		t.Fatal("upload returned while the file was still being read")
	case <-time.After(100 * time.Millisecond):
	}

	close(data.release)
	require.NoError(t, <-uploaded)
	saved, err := os.ReadFile(filepath.Join(f.uploadDir, "doc.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(saved))
}
