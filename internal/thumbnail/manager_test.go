package thumbnail_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joestump/bookmarks/internal/download"
	"github.com/joestump/bookmarks/internal/imagecache"
	"github.com/joestump/bookmarks/internal/store"
	"github.com/joestump/bookmarks/internal/thumbnail"
)

type testEnv struct {
	cache     *imagecache.Memory
	scheduler *download.Scheduler
	manager   *thumbnail.Manager
	fetches   int32
}

func newTestEnv(t *testing.T, limit int, fetch func(ctx context.Context, url string) ([]byte, error)) *testEnv {
	t.Helper()
	env := &testEnv{cache: imagecache.NewMemory()}
	env.scheduler = download.New(limit, download.FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		atomic.AddInt32(&env.fetches, 1)
		return fetch(ctx, url)
	}))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = env.scheduler.Close(ctx)
	})
	env.manager = thumbnail.NewManager(env.cache, env.scheduler, nil)
	return env
}

func TestManager_CachesAfterFetch(t *testing.T) {
	env := newTestEnv(t, 2, func(ctx context.Context, url string) ([]byte, error) {
		return []byte("img:" + url), nil
	})
	ctx := context.Background()
	b := &store.Bookmark{Identifier: "a", URL: "https://example.com/a"}

	for i := 0; i < 3; i++ {
		data, err := env.manager.Thumbnail(ctx, b)
		if err != nil {
			t.Fatalf("Thumbnail: %v", err)
		}
		if string(data) != "img:https://example.com/a" {
			t.Errorf("data = %q", data)
		}
	}
	if n := atomic.LoadInt32(&env.fetches); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
	if cached, err := env.cache.Get(ctx, "a"); err != nil || string(cached) != "img:https://example.com/a" {
		t.Errorf("cache = %q, %v", cached, err)
	}
}

func TestManager_FailureNotCached(t *testing.T) {
	errDown := errors.New("server down")
	env := newTestEnv(t, 1, func(ctx context.Context, url string) ([]byte, error) {
		return nil, errDown
	})
	ctx := context.Background()
	b := &store.Bookmark{Identifier: "a", URL: "https://example.com/a"}

	_, err := env.manager.Thumbnail(ctx, b)
	if !errors.Is(err, errDown) {
		t.Fatalf("Thumbnail error = %v, want %v", err, errDown)
	}
	var jobErr *download.JobError
	if !errors.As(err, &jobErr) {
		t.Errorf("expected *download.JobError, got %T", err)
	}
	if env.cache.Len() != 0 {
		t.Errorf("failed fetch was cached")
	}
}

func TestManager_SharesConcurrentFetches(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	env := newTestEnv(t, 4, func(ctx context.Context, url string) ([]byte, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return []byte("shared"), nil
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := &store.Bookmark{Identifier: string(rune('a' + i)), URL: "https://example.com/same"}
			data, err := env.manager.Thumbnail(ctx, b)
			if err == nil && string(data) != "shared" {
				err = errors.New("unexpected data " + string(data))
			}
			errs <- err
		}(i)
	}

	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Thumbnail: %v", err)
		}
	}
	if n := atomic.LoadInt32(&env.fetches); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
	if env.cache.Len() != 5 {
		t.Errorf("cached %d thumbnails, want one per bookmark", env.cache.Len())
	}
}

func TestManager_ContextWithdrawsPendingJob(t *testing.T) {
	release := make(chan struct{})
	env := newTestEnv(t, 1, func(ctx context.Context, url string) ([]byte, error) {
		if url == "https://example.com/blocker" {
			<-release
		}
		return []byte(url), nil
	})
	defer close(release)

	blocker := env.scheduler.Schedule("https://example.com/blocker", nil)
	if blocker.State() != download.StateActive {
		t.Fatalf("blocker state = %v", blocker.State())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := env.manager.Thumbnail(ctx, &store.Bookmark{Identifier: "x", URL: "https://example.com/x"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Thumbnail error = %v, want deadline exceeded", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if pending, _ := env.scheduler.Stats(); pending == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("abandoned job is still pending")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestManager_SchedulerCloseReleasesWaiters(t *testing.T) {
	env := newTestEnv(t, 1, func(ctx context.Context, url string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	blocker := env.scheduler.Schedule("https://example.com/blocker", nil)
	if blocker.State() != download.StateActive {
		t.Fatalf("blocker state = %v", blocker.State())
	}

	errs := make(chan error, 1)
	go func() {
		_, err := env.manager.Thumbnail(context.Background(), &store.Bookmark{Identifier: "x", URL: "https://example.com/x"})
		errs <- err
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if pending, _ := env.scheduler.Stats(); pending == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("thumbnail fetch never queued")
		}
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_ = env.scheduler.Close(ctx)

	select {
	case err := <-errs:
		if !errors.Is(err, download.ErrClosed) {
			t.Errorf("Thumbnail error = %v, want ErrClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Thumbnail still blocked after the scheduler dropped its job")
	}
	if _, err := env.cache.Get(context.Background(), "x"); !errors.Is(err, imagecache.ErrNotFound) {
		t.Errorf("failed fetch was cached: %v", err)
	}
}
