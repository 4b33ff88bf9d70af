package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/yaoapp/kun/log"
	"gwi.com/docqa/internal/core"
	"gwi.com/docqa/internal/params"
)

const (
	SessionCookie = "docqa_session"
	SessionHeader = "X-Session-ID"

	maxUploadBytes = 64 << 20
)

type ctxKey string

const sessionKey ctxKey = "session"

type APIHandler struct {
	sessions *core.Manager
	loader   *core.FileLoader
}

func NewAPIHandler(m *core.Manager, loader *core.FileLoader) *APIHandler {
	return &APIHandler{sessions: m, loader: loader}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response: %v", err)
	}
}

func sessionFrom(r *http.Request) *core.Session {
	return r.Context().Value(sessionKey).(*core.Session)
}

// SessionMiddleware resolves the session from the X-Session-ID header or the session cookie.
func (h *APIHandler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SessionHeader)
		if id == "" {
			if c, err := r.Cookie(SessionCookie); err == nil {
				id = c.Value
			}
		}
		if id == "" {
			http.Error(w, "Session is required", http.StatusUnauthorized)
			return
		}

		s, ok := h.sessions.Get(id)
		if !ok {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type SessionResponse struct {
	ID string `json:"id"`
	core.Snapshot
}

func (h *APIHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Create()
	if err != nil {
		log.Error("Error creating session: %v", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusCreated, SessionResponse{ID: s.ID, Snapshot: s.Engine().Snapshot()})
}

func (h *APIHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	writeJSON(w, http.StatusOK, SessionResponse{ID: s.ID, Snapshot: s.Engine().Snapshot()})
}

func (h *APIHandler) CloseSessionHandler(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	if err := h.sessions.Close(r.Context(), s.ID); err != nil {
		log.Error("Error closing session %s: %v", s.ID, err)
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

type ParamsErrorResponse struct {
	Error string `json:"error"`
}

func (h *APIHandler) UpdateParamsHandler(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	p, err := params.Apply(s.Engine().Params(), fields)
	if err == nil {
		err = params.Validate(p)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ParamsErrorResponse{Error: err.Error()})
		return
	}

	if err := s.UpdateParams(r.Context(), p); err != nil {
		if errors.Is(err, core.ErrParamsLocked) {
			writeJSON(w, http.StatusConflict, ParamsErrorResponse{Error: err.Error()})
			return
		}
		log.Error("Error updating params for session %s: %v", s.ID, err)
		http.Error(w, "Failed to update parameters", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s.Engine().Params())
}

// UploadFileHandler saves the multipart "file" field and starts indexing in the background.
// Progress is reported through GET /session and the events socket.
func (h *APIHandler) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "A file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !h.loader.Supports(header.Filename) {
		http.Error(w, "Only PDF, text and markdown files are supported", http.StatusUnsupportedMediaType)
		return
	}

	if err := s.Upload(r.Context(), header.Filename, file); err != nil {
		if errors.Is(err, core.ErrInvalidTransition) {
			http.Error(w, "A file is already loaded for this session", http.StatusConflict)
			return
		}
		log.Error("Error saving upload for session %s: %v", s.ID, err)
		http.Error(w, "Failed to save file", http.StatusInternalServerError)
		return
	}

	// Indexing outlives the request.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Post(ctx, core.IndexRequested{}); err != nil {
		log.Error("Error queueing indexing for session %s: %v", s.ID, err)
		http.Error(w, "Failed to start indexing", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, SessionResponse{ID: s.ID, Snapshot: s.Engine().Snapshot()})
}

type QueryRequest struct {
	Question string `json:"question"`
}

type QueryResponse struct {
	Answer  string             `json:"answer"`
	Kind    core.AnswerKind    `json:"kind"`
	Notice  string             `json:"notice,omitempty"`
	Error   string             `json:"error,omitempty"`
	Sources []core.ScoredChunk `json:"sources,omitempty"`
}

func (h *APIHandler) QueryHandler(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "Question cannot be empty", http.StatusBadRequest)
		return
	}
	if !s.Engine().IsVectorStoreLoaded() {
		http.Error(w, "The document is not indexed yet", http.StatusConflict)
		return
	}

	ans, err := s.Ask(r.Context(), req.Question)
	if err != nil {
		log.Error("Error posting query for session %s: %v", s.ID, err)
		http.Error(w, "Failed to process question", http.StatusServiceUnavailable)
		return
	}

	resp := QueryResponse{
		Answer:  ans.Display(),
		Kind:    ans.Kind,
		Notice:  ans.Notice(),
		Sources: ans.Sources,
	}
	if ans.Err != nil {
		resp.Error = ans.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
