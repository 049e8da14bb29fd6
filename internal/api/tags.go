package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joestump/bookmarks/internal/store"
	"github.com/joestump/bookmarks/internal/updater"
)

// tagsAPIHandler provides REST handlers for tag endpoints.
type tagsAPIHandler struct {
	store   *store.BookmarkStore
	updater *updater.Updater
}

func registerTagRoutes(r chi.Router, deps Deps) {
	h := &tagsAPIHandler{store: deps.Store, updater: deps.Updater}
	r.Get("/tags", h.List)
	r.Delete("/tags/{name}", h.Delete)
	r.Post("/tags/{name}/rename", h.Rename)
}

// List returns every tag in use with its bookmark count.
// GET /api/v1/tags
func (h *tagsAPIHandler) List(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.TagCounts(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	resp := TagListResponse{Tags: make([]TagResponse, 0, len(counts))}
	for _, c := range counts {
		resp.Tags = append(resp.Tags, TagResponse{Name: c.Name, BookmarkCount: c.Count})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete removes a tag from every bookmark. Unknown tags are not an error.
// DELETE /api/v1/tags/{name}
func (h *tagsAPIHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.updater.DeleteTag(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rename moves every bookmark from one tag to another.
// POST /api/v1/tags/{name}/rename
func (h *tagsAPIHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req RenameTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "invalid_request")
		return
	}
	if err := h.updater.RenameTag(r.Context(), chi.URLParam(r, "name"), req.To); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
