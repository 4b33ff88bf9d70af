package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
		r.Post("/sessions", apiHandler.CreateSessionHandler)

		// Session-scoped routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.SessionMiddleware)

			r.Get("/session", apiHandler.GetSessionHandler)
			r.Delete("/session", apiHandler.CloseSessionHandler)
			r.Put("/session/params", apiHandler.UpdateParamsHandler)
			r.Post("/session/file", apiHandler.UploadFileHandler)
			r.Post("/session/query", apiHandler.QueryHandler)
			r.Get("/session/events", apiHandler.EventsHandler)
		})
	})

	return r
}
