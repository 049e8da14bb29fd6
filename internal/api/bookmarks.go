package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/joestump/bookmarks/internal/query"
	"github.com/joestump/bookmarks/internal/store"
	"github.com/joestump/bookmarks/internal/thumbnail"
	"github.com/joestump/bookmarks/internal/updater"
)

// bookmarksAPIHandler provides REST handlers for bookmark endpoints. Reads
// go to the store; writes go through the updater so they reach the remote.
type bookmarksAPIHandler struct {
	store      *store.BookmarkStore
	updater    *updater.Updater
	thumbnails *thumbnail.Manager
	now        func() time.Time
}

func registerBookmarkRoutes(r chi.Router, deps Deps) {
	h := &bookmarksAPIHandler{
		store:      deps.Store,
		updater:    deps.Updater,
		thumbnails: deps.Thumbnails,
		now:        time.Now,
	}
	r.Get("/bookmarks", h.List)
	r.Get("/bookmarks/{id}", h.Get)
	r.Put("/bookmarks/{id}", h.Put)
	r.Delete("/bookmarks/{id}", h.Delete)
	r.Get("/bookmarks/{id}/thumbnail", h.Thumbnail)
}

// List returns bookmarks matching the filter query parameter, newest first.
// GET /api/v1/bookmarks?filter=tag:go+status:unread&limit=50&cursor=...
func (h *bookmarksAPIHandler) List(w http.ResponseWriter, r *http.Request) {
	p := query.Parse(r.URL.Query().Get("filter"))
	cursor, limit := parsePagination(r)

	all, err := h.store.Bookmarks(r.Context(), p)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	offset := decodeCursor(cursor)
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}

	resp := BookmarkListResponse{
		Bookmarks: make([]BookmarkResponse, 0, end-offset),
		Total:     len(all),
	}
	for _, b := range all[offset:end] {
		resp.Bookmarks = append(resp.Bookmarks, toBookmarkResponse(b))
	}
	if end < len(all) {
		next := encodeCursor(end)
		resp.NextCursor = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns one bookmark.
// GET /api/v1/bookmarks/{id}
func (h *bookmarksAPIHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.store.Bookmark(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookmarkResponse(b))
}

// Put creates or replaces a bookmark.
// PUT /api/v1/bookmarks/{id}
func (h *bookmarksAPIHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req BookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "invalid_request")
		return
	}

	b := store.Bookmark{
		Identifier: chi.URLParam(r, "id"),
		Title:      req.Title,
		URL:        req.URL,
		Tags:       req.Tags,
		ToRead:     req.ToRead,
		Shared:     req.Shared,
		Notes:      req.Notes,
	}
	if req.Date != nil {
		b.Date = *req.Date
	} else {
		b.Date = h.now()
	}

	stored, err := h.updater.Update(r.Context(), b)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookmarkResponse(stored[0]))
}

// Delete removes a bookmark.
// DELETE /api/v1/bookmarks/{id}
func (h *bookmarksAPIHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.updater.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Thumbnail returns the bookmark's preview image.
// GET /api/v1/bookmarks/{id}/thumbnail
func (h *bookmarksAPIHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	b, err := h.store.Bookmark(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	data, err := h.thumbnails.Thumbnail(r.Context(), b)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
