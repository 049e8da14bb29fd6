package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joestump/bookmarks/internal/api"
	"github.com/joestump/bookmarks/internal/download"
	"github.com/joestump/bookmarks/internal/imagecache"
	"github.com/joestump/bookmarks/internal/store"
	"github.com/joestump/bookmarks/internal/testutil"
	"github.com/joestump/bookmarks/internal/thumbnail"
	"github.com/joestump/bookmarks/internal/updater"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	store   *store.BookmarkStore
	feed    *updater.FeedService
	feedDir string
	router  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s := store.NewBookmarkStore(testutil.NewTestDB(t))
	dir := t.TempDir()
	feed := updater.NewFeedService(filepath.Join(dir, "feed.yaml"), filepath.Join(dir, "outbox.yaml"))

	scheduler := download.New(2, download.FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		if strings.Contains(url, "broken") {
			return nil, errors.New("connection refused")
		}
		return []byte("\x89PNG\r\n\x1a\n" + url), nil
	}))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = scheduler.Close(ctx)
	})

	router := api.NewRouter(api.Deps{
		Store:      s,
		Updater:    updater.New(s, feed, nil),
		Thumbnails: thumbnail.NewManager(imagecache.NewMemory(), scheduler, nil),
	})
	return &testEnv{store: s, feed: feed, feedDir: dir, router: router}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) seed(t *testing.T, bs ...store.Bookmark) {
	t.Helper()
	if err := e.store.InsertOrUpdateMany(context.Background(), bs); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := decode[map[string]string](t, rr); got["status"] != "ok" {
		t.Errorf("status = %q", got["status"])
	}
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, store.Bookmark{Identifier: "a", URL: "https://a.example", Date: t0})

	rr := env.do(t, http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "bookmarks_bookmarks_total") {
		t.Error("store metrics missing from /metrics")
	}
}

func TestPutAndGetBookmark(t *testing.T) {
	env := newTestEnv(t)

	date := t0
	rr := env.do(t, http.MethodPut, "/api/v1/bookmarks/a", api.BookmarkRequest{
		Title: "Go",
		URL:   "https://go.dev",
		Tags:  []string{"lang", "go", "go"},
		Date:  &date,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	put := decode[api.BookmarkResponse](t, rr)
	if put.ID != "a" || strings.Join(put.Tags, ",") != "go,lang" {
		t.Errorf("PUT response = %+v", put)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/bookmarks/a", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET: expected 200, got %d", rr.Code)
	}
	got := decode[api.BookmarkResponse](t, rr)
	if got.URL != "https://go.dev" || !got.Date.Equal(t0) {
		t.Errorf("GET response = %+v", got)
	}

	changes, err := env.feed.Outbox()
	if err != nil {
		t.Fatalf("Outbox: %v", err)
	}
	if len(changes) != 1 || changes[0].Kind != updater.ChangeUpdate {
		t.Errorf("outbox = %+v, want one update", changes)
	}
}

func TestPutBookmark_Invalid(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPut, "/api/v1/bookmarks/a", api.BookmarkRequest{URL: "not a url"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if got := decode[map[string]string](t, rr); got["code"] != "invalid_bookmark" {
		t.Errorf("code = %q", got["code"])
	}

	req := httptest.NewRequest(http.MethodPut, "/api/v1/bookmarks/a", strings.NewReader("{"))
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON: expected 400, got %d", rr.Code)
	}
}

func TestGetBookmark_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/v1/bookmarks/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestDeleteBookmark(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, store.Bookmark{Identifier: "a", URL: "https://a.example", Date: t0, Tags: []string{"only"}})

	rr := env.do(t, http.MethodDelete, "/api/v1/bookmarks/a", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/v1/bookmarks/a", nil); rr.Code != http.StatusNotFound {
		t.Errorf("after delete: expected 404, got %d", rr.Code)
	}
	tags := decode[api.TagListResponse](t, env.do(t, http.MethodGet, "/api/v1/tags", nil))
	if len(tags.Tags) != 0 {
		t.Errorf("orphan tags left: %+v", tags.Tags)
	}
}

func TestListBookmarks_FilterAndPaginate(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t,
		store.Bookmark{Identifier: "a", Title: "Go blog", URL: "https://go.dev/blog", Date: t0, Tags: []string{"go"}},
		store.Bookmark{Identifier: "b", Title: "Go reference", URL: "https://go.dev/ref", Date: t0.Add(-time.Hour), Tags: []string{"go"}, ToRead: true},
		store.Bookmark{Identifier: "c", Title: "Rust", URL: "https://rust-lang.org", Date: t0.Add(-2 * time.Hour), Tags: []string{"rust"}},
	)

	rr := env.do(t, http.MethodGet, "/api/v1/bookmarks?filter=tag:go&limit=1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	page := decode[api.BookmarkListResponse](t, rr)
	if page.Total != 2 || len(page.Bookmarks) != 1 || page.Bookmarks[0].ID != "a" {
		t.Fatalf("first page = %+v", page)
	}
	if page.NextCursor == nil {
		t.Fatal("expected a next cursor")
	}

	rr = env.do(t, http.MethodGet, "/api/v1/bookmarks?filter=tag:go&limit=1&cursor="+*page.NextCursor, nil)
	page = decode[api.BookmarkListResponse](t, rr)
	if len(page.Bookmarks) != 1 || page.Bookmarks[0].ID != "b" || page.NextCursor != nil {
		t.Errorf("second page = %+v", page)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/bookmarks?filter=status:unread", nil)
	page = decode[api.BookmarkListResponse](t, rr)
	if page.Total != 1 || page.Bookmarks[0].ID != "b" {
		t.Errorf("unread = %+v", page)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/bookmarks", nil)
	page = decode[api.BookmarkListResponse](t, rr)
	if page.Total != 3 {
		t.Errorf("unfiltered total = %d, want 3", page.Total)
	}
}

func TestTags_ListDeleteRename(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t,
		store.Bookmark{Identifier: "a", URL: "https://a.example", Date: t0, Tags: []string{"golang", "web"}},
		store.Bookmark{Identifier: "b", URL: "https://b.example", Date: t0, Tags: []string{"golang"}},
	)

	tags := decode[api.TagListResponse](t, env.do(t, http.MethodGet, "/api/v1/tags", nil))
	want := []api.TagResponse{{Name: "golang", BookmarkCount: 2}, {Name: "web", BookmarkCount: 1}}
	if len(tags.Tags) != 2 || tags.Tags[0] != want[0] || tags.Tags[1] != want[1] {
		t.Fatalf("tags = %+v, want %+v", tags.Tags, want)
	}

	rr := env.do(t, http.MethodPost, "/api/v1/tags/golang/rename", api.RenameTagRequest{To: "go"})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("rename: expected 204, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = env.do(t, http.MethodDelete, "/api/v1/tags/web", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rr.Code)
	}

	tags = decode[api.TagListResponse](t, env.do(t, http.MethodGet, "/api/v1/tags", nil))
	if len(tags.Tags) != 1 || tags.Tags[0] != (api.TagResponse{Name: "go", BookmarkCount: 2}) {
		t.Errorf("tags after rename/delete = %+v", tags.Tags)
	}

	rr = env.do(t, http.MethodPost, "/api/v1/tags/go/rename", api.RenameTagRequest{To: " "})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("blank rename: expected 400, got %d", rr.Code)
	}
}

func TestThumbnail(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t,
		store.Bookmark{Identifier: "ok", URL: "https://ok.example/", Date: t0},
		store.Bookmark{Identifier: "bad", URL: "https://broken.example/", Date: t0},
	)

	rr := env.do(t, http.MethodGet, "/api/v1/bookmarks/ok/thumbnail", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/bookmarks/bad/thumbnail", nil)
	if rr.Code != http.StatusBadGateway {
		t.Errorf("failed fetch: expected 502, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/v1/bookmarks/missing/thumbnail", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown bookmark: expected 404, got %d", rr.Code)
	}
}

func TestSync(t *testing.T) {
	env := newTestEnv(t)
	err := updater.WriteFeed(filepath.Join(env.feedDir, "feed.yaml"), updater.Feed{
		Updated: t0,
		Posts: []updater.Record{
			{Hash: "r1", Href: "https://one.example", Description: "One", Tags: []string{"a", "b"}, Time: t0},
			{Hash: "r2", Href: "https://two.example", Description: "Two", Time: t0},
		},
	})
	if err != nil {
		t.Fatalf("WriteFeed: %v", err)
	}

	rr := env.do(t, http.MethodPost, "/api/v1/sync", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	res := decode[api.SyncResponse](t, rr)
	if res.Skipped || res.Upserted != 2 {
		t.Errorf("sync = %+v", res)
	}

	res = decode[api.SyncResponse](t, env.do(t, http.MethodPost, "/api/v1/sync", nil))
	if !res.Skipped {
		t.Errorf("second sync was not skipped: %+v", res)
	}
	res = decode[api.SyncResponse](t, env.do(t, http.MethodPost, "/api/v1/sync?force=true", nil))
	if res.Skipped {
		t.Errorf("forced sync was skipped: %+v", res)
	}
}

func TestSync_RemoteFailure(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/api/v1/sync", nil)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
}
