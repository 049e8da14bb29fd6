package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joestump/bookmarks/internal/updater"
)

type syncAPIHandler struct {
	updater *updater.Updater
}

func registerSyncRoutes(r chi.Router, deps Deps) {
	h := &syncAPIHandler{updater: deps.Updater}
	r.Post("/sync", h.Sync)
}

// Sync reconciles the store with the remote right away.
// POST /api/v1/sync?force=true
func (h *syncAPIHandler) Sync(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	res, err := h.updater.Refresh(r.Context(), force)
	if err != nil {
		writeError(w, http.StatusBadGateway, "sync failed: "+err.Error(), "sync_failed")
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{
		Skipped:  res.Skipped,
		Upserted: res.Upserted,
		Deleted:  res.Deleted,
		Invalid:  res.Invalid,
		Updated:  res.Updated,
	})
}
