package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/joestump/bookmarks/internal/config"
	"github.com/joestump/bookmarks/internal/db"
	"github.com/joestump/bookmarks/internal/download"
	"github.com/joestump/bookmarks/internal/imagecache"
	"github.com/joestump/bookmarks/internal/logger"
	"github.com/joestump/bookmarks/internal/store"
	"github.com/joestump/bookmarks/internal/thumbnail"
	"github.com/joestump/bookmarks/internal/updater"
)

// app holds the components every command builds from the config.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	store   *store.BookmarkStore
	updater *updater.Updater
	feed    *updater.FeedService
}

// openApp loads config, opens and migrates the database and wires the store
// and updater. The returned close function releases everything.
func openApp(configPath string) (*app, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}

	database, err := db.New(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(database, cfg.DB.Driver); err != nil {
		_ = database.Close()
		return nil, nil, err
	}

	s := store.NewBookmarkStore(database, store.WithLogger(log))
	feed := updater.NewFeedService(cfg.Sync.Feed, cfg.Sync.Outbox)
	a := &app{
		cfg:     cfg,
		log:     log,
		store:   s,
		feed:    feed,
		updater: updater.New(s, feed, log),
	}
	closeFn := func() {
		_ = s.Close()
		_ = log.Sync()
	}
	return a, closeFn, nil
}

// newCache builds the thumbnail cache selected by cache.kind.
func (a *app) newCache(ctx context.Context) (imagecache.Cache, error) {
	switch a.cfg.Cache.Kind {
	case "file":
		return imagecache.NewFile(a.cfg.Cache.Dir)
	case "redis":
		client, err := imagecache.Connect(ctx, imagecache.ConnectOptions{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		}, a.log.Named("redis"))
		if err != nil {
			return nil, err
		}
		return imagecache.NewRedis(client, a.cfg.Cache.TTL), nil
	default:
		return imagecache.NewMemory(), nil
	}
}

// newThumbnails builds the download scheduler and thumbnail manager. The
// returned close function stops the scheduler and releases the cache; it
// must be called once the manager is no longer used.
func (a *app) newThumbnails(ctx context.Context) (*thumbnail.Manager, func(context.Context) error, error) {
	cache, err := a.newCache(ctx)
	if err != nil {
		return nil, nil, err
	}
	fetcher := thumbnail.NewHTTPFetcher(&http.Client{Timeout: 30 * time.Second}, a.log)
	scheduler := download.New(a.cfg.Download.Limit, fetcher, download.WithLogger(a.log))

	closeFn := func(ctx context.Context) error {
		err := scheduler.Close(ctx)
		if c, ok := cache.(io.Closer); ok {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		return err
	}
	return thumbnail.NewManager(cache, scheduler, a.log), closeFn, nil
}
