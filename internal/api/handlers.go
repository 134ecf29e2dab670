package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vaultgraph/internal/graphservice"
	"github.com/starford/vaultgraph/internal/models"
	"github.com/starford/vaultgraph/internal/suggest"
)

// Handler holds API route handlers.
type Handler struct {
	svc *graphservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *graphservice.Service) *Handler {
	return &Handler{svc: svc}
}

// wildcardPath extracts the note path from the URL wildcard.
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func wildcardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Build handles POST /api/graph/build.
//
//	@Summary		Build or refresh the knowledge graph
//	@Tags			graph
//	@Accept			json
//	@Produce		json
//	@Param			body	body		BuildRequest	false	"Build options"
//	@Success		200		{object}	graphservice.BuildResult
//	@Security		BearerAuth
//	@Router			/graph/build [post]
func (h *Handler) Build(w http.ResponseWriter, r *http.Request) {
	var req BuildRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if r.URL.Query().Get("full") == "true" {
		req.Full = true
	}

	res, err := h.svc.Build(r.Context(), req)
	if err != nil {
		writeError(w, "build", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Stats handles GET /api/graph.
//
//	@Summary		Summarize the loaded graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	graphservice.Stats
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Search handles GET /api/graph/search.
//
//	@Summary		Spreading activation search from seed notes or keywords
//	@Tags			graph
//	@Produce		json
//	@Param			seed				query		[]string	true	"Seed path or keyword (repeatable)"
//	@Param			layer				query		[]int		false	"Layer filter (repeatable)"
//	@Param			threshold			query		number		false	"Minimum activation"
//	@Param			max_hops			query		int			false	"Maximum depth"
//	@Param			max_active_nodes	query		int			false	"Soft cap on activated nodes"
//	@Param			decay				query		number		false	"Decay override"
//	@Param			limit				query		int			false	"Max results"
//	@Success		200					{object}	SearchResponse
//	@Failure		400					{object}	errResponse
//	@Failure		404					{object}	errResponse
//	@Security		BearerAuth
//	@Router			/graph/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := graphservice.SearchRequest{Seeds: q["seed"]}
	if len(req.Seeds) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'seed' is required"))
		return
	}
	for _, raw := range q["layer"] {
		n, err := strconv.Atoi(raw)
		if err != nil || !models.Layer(n).Valid() {
			writeJSON(w, http.StatusBadRequest, errorBody("layer must be 1-5"))
			return
		}
		req.Layers = append(req.Layers, models.Layer(n))
	}
	req.Threshold, _ = strconv.ParseFloat(q.Get("threshold"), 64)
	req.MaxHops, _ = strconv.Atoi(q.Get("max_hops"))
	req.MaxActiveNodes, _ = strconv.Atoi(q.Get("max_active_nodes"))
	req.Limit, _ = strconv.Atoi(q.Get("limit"))
	if raw := q.Get("decay"); raw != "" {
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil || d <= 0 || d > 1 {
			writeJSON(w, http.StatusBadRequest, errorBody("decay must be in (0, 1]"))
			return
		}
		req.Decay = &d
	}

	hits, err := h.svc.Search(r.Context(), req)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits})
}

// Navigate handles GET /api/graph/navigate/*.
//
//	@Summary		Links, hierarchy and relationships around a note
//	@Tags			graph
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	graphservice.Navigation
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/graph/navigate/{path} [get]
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	nav, err := h.svc.Navigate(r.Context(), path)
	if err != nil {
		writeError(w, "navigate", err)
		return
	}
	writeJSON(w, http.StatusOK, nav)
}

// Suggest handles POST /api/graph/suggest.
//
//	@Summary		Suggest link targets for an existing or planned note
//	@Tags			graph
//	@Accept			json
//	@Produce		json
//	@Param			body	body		suggest.Request	true	"Source note or tags"
//	@Success		200		{object}	SuggestResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/graph/suggest [post]
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req suggest.Request
	if !readJSON(w, r, &req) {
		return
	}
	out, err := h.svc.SuggestLinks(r.Context(), req)
	if err != nil {
		writeError(w, "suggest", err)
		return
	}
	if out == nil {
		out = []suggest.Suggestion{}
	}
	writeJSON(w, http.StatusOK, SuggestResponse{Suggestions: out})
}

// Stale handles GET /api/graph/stale.
//
//	@Summary		Stale ledger and rebuild recommendation
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	graphservice.StaleReport
//	@Security		BearerAuth
//	@Router			/graph/stale [get]
func (h *Handler) Stale(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Stale(r.Context()))
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	graphservice.NoteResult
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Path == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and content are required"))
		return
	}
	note, err := h.svc.CreateNote(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// MoveNote handles POST /api/notes/move.
//
//	@Summary		Rename a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MoveNoteRequest	true	"Old and new path"
//	@Success		200		{object}	graphservice.NoteResult
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/move [post]
func (h *Handler) MoveNote(w http.ResponseWriter, r *http.Request) {
	var req MoveNoteRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.From == "" || req.To == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("from and to are required"))
		return
	}
	note, err := h.svc.MoveNote(r.Context(), req.From, req.To)
	if err != nil {
		writeError(w, "move note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/*.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			path	path	string	true	"Note path"
//	@Success		204		"Note deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteNote(r.Context(), path); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
