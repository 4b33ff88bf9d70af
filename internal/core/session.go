package core

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/yaoapp/kun/log"
	"gwi.com/docqa/internal/params"
)

// Event is something that happens to a session. Events are handled one at a
// time, in the order they were posted.
type Event interface {
	handle(ctx context.Context, s *Session)
}

// FileReceived saves an upload. Done, when set, receives the result.
type FileReceived struct {
	Name string
	Data io.Reader
	Done chan<- error
}

// IndexRequested runs the whole ingestion pipeline.
type IndexRequested struct {
	Done chan<- error
}

// QuerySubmitted asks a question; the answer is sent on Reply.
type QuerySubmitted struct {
	Ctx      context.Context
	Question string
	Reply    chan<- Answer
}

// ParamsChanged replaces the session parameters.
type ParamsChanged struct {
	Params params.Parameters
	Done   chan<- error
}

func reply[T any](ch chan<- T, v T) {
	if ch != nil {
		ch <- v
	}
}

func (ev FileReceived) handle(_ context.Context, s *Session) {
	reply(ev.Done, s.engine.SaveFile(ev.Name, ev.Data))
}

func (ev IndexRequested) handle(ctx context.Context, s *Session) {
	err := s.engine.Ingest(ctx, func(Stage, int) { s.publish() })
	if err != nil {
		log.With(log.F{"session": s.ID, "file": s.engine.Filename()}).Error("Ingestion failed: %v", err)
	}
	reply(ev.Done, err)
}

func (ev QuerySubmitted) handle(ctx context.Context, s *Session) {
	if ev.Ctx != nil {
		ctx = ev.Ctx
	}
	reply(ev.Reply, s.engine.Query(ctx, ev.Question))
}

func (ev ParamsChanged) handle(_ context.Context, s *Session) {
	reply(ev.Done, s.engine.SetParams(ev.Params))
}

// Session serialises every operation on one Engine through a single
// goroutine and broadcasts a Snapshot after each event.
type Session struct {
	ID        string
	CreatedAt time.Time

	engine    *Engine
	uploadDir string
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once

	// ctx is handed to event handlers and cancelled by Close.
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}

	mu      sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

func NewSession(id string, engine *Engine) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ctx:       ctx,
		cancel:    cancel,
		stopped:   make(chan struct{}),
		ID:        id,
		CreatedAt: time.Now(),
		engine:    engine,
		uploadDir: engine.opts.UploadDir,
		events:    make(chan Event, 16),
		done:      make(chan struct{}),
		subs:      make(map[int]chan Snapshot),
	}
}

func (s *Session) Engine() *Engine {
	return s.engine
}

// Run handles events until ctx is cancelled or the session is closed.
// Call it once; Stopped is closed when it returns.
func (s *Session) Run(ctx context.Context) {
	defer close(s.stopped)
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			// Queued events are dropped once the session is closing.
			if s.ctx.Err() != nil {
				return
			}
			ev.handle(s.ctx, s)
			s.publish()
		}
	}
}

// Stopped is closed once Run has returned and no handler is running.
func (s *Session) Stopped() <-chan struct{} {
	return s.stopped
}

// Post queues ev. It fails once the session is closed.
func (s *Session) Post(ctx context.Context, ev Event) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, s *Session, ch <-chan T) (T, error) {
	var zero T
	select {
	case v := <-ch:
		return v, nil
	case <-s.done:
		return zero, ErrSessionClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Upload posts a FileReceived event and waits for the file to be saved.
// Once posted it does not return before the event loop is done with data,
// even if ctx ends, so the caller may close data afterwards.
func (s *Session) Upload(ctx context.Context, name string, data io.Reader) error {
	done := make(chan error, 1)
	if err := s.Post(ctx, FileReceived{Name: name, Data: data, Done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-s.stopped:
		// The handler may have finished just before Run returned.
		select {
		case err := <-done:
			return err
		default:
			return ErrSessionClosed
		}
	}
}

// Index posts an IndexRequested event and waits for ingestion to finish.
func (s *Session) Index(ctx context.Context) error {
	done := make(chan error, 1)
	if err := s.Post(ctx, IndexRequested{Done: done}); err != nil {
		return err
	}
	err, waitErr := await[error](ctx, s, done)
	if waitErr != nil {
		return waitErr
	}
	return err
}

// Ask posts a QuerySubmitted event and waits for the answer.
func (s *Session) Ask(ctx context.Context, question string) (Answer, error) {
	answer := make(chan Answer, 1)
	if err := s.Post(ctx, QuerySubmitted{Ctx: ctx, Question: question, Reply: answer}); err != nil {
		return Answer{}, err
	}
	return await[Answer](ctx, s, answer)
}

// UpdateParams posts a ParamsChanged event and waits for it to apply.
func (s *Session) UpdateParams(ctx context.Context, p params.Parameters) error {
	done := make(chan error, 1)
	if err := s.Post(ctx, ParamsChanged{Params: p, Done: done}); err != nil {
		return err
	}
	err, waitErr := await[error](ctx, s, done)
	if waitErr != nil {
		return waitErr
	}
	return err
}

// Subscribe returns a channel that receives the current snapshot at once
// and then one after every change. A slow reader only misses intermediate
// snapshots, never the latest. The channel is closed by cancel or Close.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	ch <- s.engine.Snapshot()

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	if s.subs == nil {
		close(ch)
	} else {
		s.subs[id] = ch
	}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (s *Session) publish() {
	snap := s.engine.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Replace the stale snapshot the reader has not picked up yet.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// Close stops the event loop and closes every subscription.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		close(s.done)
		s.mu.Lock()
		for id, ch := range s.subs {
			close(ch)
			delete(s.subs, id)
		}
		s.subs = nil
		s.mu.Unlock()
	})
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}
