// Package thumbnail serves bookmark preview images from a cache, fetching
// missing ones through the download scheduler.
package thumbnail

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/joestump/bookmarks/internal/download"
	"github.com/joestump/bookmarks/internal/imagecache"
	"github.com/joestump/bookmarks/internal/logger"
	"github.com/joestump/bookmarks/internal/metrics"
	"github.com/joestump/bookmarks/internal/store"
)

// errAbandoned reports a fetch withdrawn because every caller waiting on it
// gave up before it was admitted.
var errAbandoned = errors.New("thumbnail fetch abandoned")

// flight tracks the callers waiting on one URL.
type flight struct {
	waiters int
	abandon chan struct{}
}

// Manager resolves thumbnails for bookmarks. Concurrent requests for the
// same URL share a single scheduled download.
type Manager struct {
	cache     imagecache.Cache
	scheduler *download.Scheduler
	log       logger.Logger

	group   singleflight.Group
	mu      sync.Mutex
	flights map[string]*flight
}

func NewManager(cache imagecache.Cache, scheduler *download.Scheduler, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{
		cache:     cache,
		scheduler: scheduler,
		log:       log.Named("thumbnail"),
		flights:   make(map[string]*flight),
	}
}

// Thumbnail returns b's preview image. A cached image is returned directly;
// otherwise the image is downloaded, cached under b.Identifier and returned.
// If ctx ends first, ctx's error is returned and a download nobody else is
// waiting for is withdrawn from the scheduler.
func (m *Manager) Thumbnail(ctx context.Context, b *store.Bookmark) ([]byte, error) {
	data, err := m.cache.Get(ctx, b.Identifier)
	if err == nil {
		metrics.ThumbnailCacheTotal.WithLabelValues("hit").Inc()
		return data, nil
	}
	if !errors.Is(err, imagecache.ErrNotFound) {
		m.log.Warn("thumbnail cache read failed", logger.String("id", b.Identifier), logger.Error(err))
	}
	metrics.ThumbnailCacheTotal.WithLabelValues("miss").Inc()

	for {
		data, err = m.wait(ctx, b.URL)
		if errors.Is(err, errAbandoned) && ctx.Err() == nil {
			// Joined a flight another caller just withdrew; start over.
			continue
		}
		break
	}
	if err != nil {
		return nil, err
	}

	if err := m.cache.Set(ctx, b.Identifier, data); err != nil {
		m.log.Warn("thumbnail cache write failed", logger.String("id", b.Identifier), logger.Error(err))
	}
	return data, nil
}

func (m *Manager) wait(ctx context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	f, ok := m.flights[url]
	if !ok {
		f = &flight{abandon: make(chan struct{})}
		m.flights[url] = f
	}
	f.waiters++
	m.mu.Unlock()

	ch := m.group.DoChan(url, func() (interface{}, error) {
		return m.download(url, f.abandon)
	})

	select {
	case r := <-ch:
		m.leave(url, f, false)
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]byte), nil
	case <-ctx.Done():
		m.leave(url, f, true)
		return nil, ctx.Err()
	}
}

func (m *Manager) leave(url string, f *flight, abandoned bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	if m.flights[url] == f {
		delete(m.flights, url)
	}
	if abandoned {
		close(f.abandon)
	}
}

// download schedules url and blocks until it completes, abandon is closed
// while the job is still pending, or the scheduler drops the job on Close.
func (m *Manager) download(url string, abandon <-chan struct{}) ([]byte, error) {
	results := make(chan download.Result, 1)
	job := m.scheduler.Schedule(url, func(r download.Result) { results <- r })

	for {
		select {
		case r := <-results:
			return r.Data, r.Err
		case <-job.Done():
			if job.State() == download.StateCancelled {
				return nil, &download.JobError{URL: url, Err: download.ErrClosed}
			}
			r := <-results
			return r.Data, r.Err
		case <-abandon:
			if job.Cancel() {
				m.log.Debug("withdrew thumbnail fetch", logger.String("url", url))
				return nil, errAbandoned
			}
			// Already admitted; wait for it to finish.
			abandon = nil
		}
	}
}

// Clear empties the thumbnail cache.
func (m *Manager) Clear(ctx context.Context) error {
	return m.cache.Clear(ctx)
}
