// Package api exposes the bookmark store over a JSON HTTP API.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joestump/bookmarks/internal/build"
	"github.com/joestump/bookmarks/internal/logger"
	"github.com/joestump/bookmarks/internal/store"
	"github.com/joestump/bookmarks/internal/thumbnail"
	"github.com/joestump/bookmarks/internal/updater"
)

// Deps holds all dependencies required to build the router.
type Deps struct {
	Store      *store.BookmarkStore
	Updater    *updater.Updater
	Thumbnails *thumbnail.Manager
	Log        logger.Logger
}

// NewRouter returns the service's root handler: health and metrics
// endpoints plus the API mounted at /api/v1.
func NewRouter(deps Deps) http.Handler {
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(deps.Log.Named("http")))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": build.Version,
			"commit":  build.Commit,
		})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/api/v1", NewAPIRouter(deps))

	return r
}

// NewAPIRouter creates a chi sub-router for /api/v1.
func NewAPIRouter(deps Deps) chi.Router {
	r := chi.NewRouter()
	registerBookmarkRoutes(r, deps)
	registerTagRoutes(r, deps)
	registerSyncRoutes(r, deps)
	return r
}
