package core

import "gwi.com/docqa/internal/params"

// View is the screen a presentation shows for a session.
type View string

const (
	ViewUpload   View = "upload"
	ViewIndexing View = "indexing"
	ViewChat     View = "chat"
)

// SelectView depends on nothing but the two engine predicates.
func SelectView(fileLoaded, vectorStoreLoaded bool) View {
	switch {
	case !fileLoaded:
		return ViewUpload
	case !vectorStoreLoaded:
		return ViewIndexing
	default:
		return ViewChat
	}
}

// Snapshot is everything a presentation needs to render a session.
type Snapshot struct {
	State    State             `json:"state"`
	View     View              `json:"view"`
	Filename string            `json:"filename,omitempty"`
	Stage    Stage             `json:"stage,omitempty"`
	Progress int               `json:"progress"`
	Chunks   int               `json:"chunks"`
	Error    string            `json:"error,omitempty"`
	Params   params.Parameters `json:"params"`
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Snapshot{
		State:    e.state,
		View:     SelectView(e.state != StateNoFileLoaded, e.state == StateReady),
		Filename: e.filename,
		Stage:    e.stage,
		Progress: e.progress,
		Chunks:   len(e.chunks),
		Params:   e.params,
	}
	if e.lastErr != nil {
		s.Error = e.lastErr.Error()
	}
	return s
}
