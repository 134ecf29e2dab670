package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vaultgraph/internal/graphservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *graphservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Graph.
	r.Route("/graph", func(r chi.Router) {
		r.Get("/", h.Stats)
		r.Post("/build", h.Build)
		r.Get("/search", h.Search)
		r.Get("/navigate/*", h.Navigate)
		r.Post("/suggest", h.Suggest)
		r.Get("/stale", h.Stale)
	})

	// Notes.
	r.Post("/notes", h.CreateNote)
	r.Post("/notes/move", h.MoveNote)
	r.Delete("/notes/*", h.DeleteNote)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
