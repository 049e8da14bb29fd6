package imagecache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/joestump/bookmarks/internal/imagecache"
	"github.com/joestump/bookmarks/internal/logger"
)

func newTestRedis(t *testing.T, ttl time.Duration) (*imagecache.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := imagecache.NewRedis(client, ttl)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedis(t *testing.T) {
	c, _ := newTestRedis(t, 0)
	exerciseCache(t, c)
}

func TestRedis_StoresUnderPrefix(t *testing.T) {
	c, mr := newTestRedis(t, 0)
	if err := c.Set(context.Background(), "abc", []byte("img")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := mr.Get("bookmarks:thumbnail:abc")
	if err != nil {
		t.Fatalf("key not written under prefix: %v", err)
	}
	if got != "img" {
		t.Errorf("stored value = %q, want img", got)
	}
	if ttl := mr.TTL("bookmarks:thumbnail:abc"); ttl != 0 {
		t.Errorf("TTL = %v, want none", ttl)
	}
}

func TestRedis_TTL(t *testing.T) {
	c, mr := newTestRedis(t, time.Hour)
	ctx := context.Background()
	if err := c.Set(ctx, "abc", []byte("img")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl := mr.TTL("bookmarks:thumbnail:abc"); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := c.Get(ctx, "abc"); !errors.Is(err, imagecache.ErrNotFound) {
		t.Errorf("Get after expiry = %v, want ErrNotFound", err)
	}
}

func TestRedis_ClearKeepsForeignKeys(t *testing.T) {
	c, mr := newTestRedis(t, 0)
	ctx := context.Background()

	if err := mr.Set("session:42", "keep"); err != nil {
		t.Fatalf("seed foreign key: %v", err)
	}
	for _, key := range []string{"a", "b", "c"} {
		if err := c.Set(ctx, key, []byte(key)); err != nil {
			t.Fatalf("Set(%s): %v", key, err)
		}
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	for _, key := range []string{"a", "b", "c"} {
		if mr.Exists(imagecache.ImageKey(key)) {
			t.Errorf("%s survived Clear", key)
		}
	}
	if !mr.Exists("session:42") {
		t.Error("Clear removed a key outside the cache prefix")
	}
}

func TestRedis_GetError(t *testing.T) {
	c, mr := newTestRedis(t, 0)
	mr.SetError("ERR injected failure")

	_, err := c.Get(context.Background(), "abc")
	if err == nil || errors.Is(err, imagecache.ErrNotFound) {
		t.Errorf("Get with a failing server = %v, want a non-miss error", err)
	}
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := imagecache.Connect(context.Background(), imagecache.ConnectOptions{Addr: mr.Addr()}, logger.NewNop())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestConnect_GivesUp(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := imagecache.Connect(context.Background(), imagecache.ConnectOptions{
		Addr:          addr,
		Timeout:       100 * time.Millisecond,
		RetryInterval: 10 * time.Millisecond,
		MaxWait:       20 * time.Millisecond,
	}, logger.NewNop())
	if err == nil {
		t.Fatal("Connect to a closed server succeeded")
	}
}
