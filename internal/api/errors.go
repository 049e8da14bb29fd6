package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/joestump/bookmarks/internal/download"
	"github.com/joestump/bookmarks/internal/store"
	"github.com/joestump/bookmarks/internal/thumbnail"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError writes a JSON error response with the given HTTP status code.
func writeError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Error: message, Code: code})
}

// writeJSON writes a JSON response with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeStoreError maps store and download errors onto HTTP responses.
func writeStoreError(w http.ResponseWriter, err error) {
	var jobErr *download.JobError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "bookmark not found", "not_found")
	case errors.Is(err, store.ErrInvalidBookmark):
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_bookmark")
	case errors.Is(err, store.ErrInvalidTag):
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_tag")
	case errors.Is(err, thumbnail.ErrNoImage), errors.As(err, &jobErr):
		writeError(w, http.StatusBadGateway, "thumbnail unavailable", "thumbnail_unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error", "internal_error")
	}
}
