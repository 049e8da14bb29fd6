package imagecache_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/joestump/bookmarks/internal/imagecache"
)

func exerciseCache(t *testing.T, c imagecache.Cache) {
	t.Helper()
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, imagecache.ErrNotFound) {
		t.Fatalf("Get(missing) = %v, want ErrNotFound", err)
	}

	png := []byte("\x89PNG\r\n\x1a\nfake")
	if err := c.Set(ctx, "bookmark/1", png); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, "bookmark/1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, png) {
		t.Errorf("Get = %q, want %q", got, png)
	}

	if err := c.Set(ctx, "bookmark/1", []byte("replaced")); err != nil {
		t.Fatalf("Set replace: %v", err)
	}
	if got, _ := c.Get(ctx, "bookmark/1"); string(got) != "replaced" {
		t.Errorf("Get after replace = %q", got)
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := c.Get(ctx, "bookmark/1"); !errors.Is(err, imagecache.ErrNotFound) {
		t.Errorf("Get after Clear = %v, want ErrNotFound", err)
	}
}

func TestMemory(t *testing.T) {
	m := imagecache.NewMemory()
	exerciseCache(t, m)
	if m.Len() != 0 {
		t.Errorf("Len = %d after Clear", m.Len())
	}
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	f, err := imagecache.NewFile(filepath.Join(dir, "thumbs"))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	exerciseCache(t, f)
}

func TestFile_PathIsHashed(t *testing.T) {
	dir := t.TempDir()
	f, err := imagecache.NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	p := f.Path("../../etc/passwd")
	if filepath.Dir(p) != dir {
		t.Errorf("path %q escapes cache dir %q", p, dir)
	}
}

func TestFile_ClearKeepsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	f, err := imagecache.NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	foreign := filepath.Join(dir, "README")
	if err := os.WriteFile(foreign, []byte("keep"), 0o600); err != nil {
		t.Fatalf("write foreign file: %v", err)
	}
	if err := f.Set(context.Background(), "a", []byte("x")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := f.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Errorf("foreign file removed: %v", err)
	}
}

func TestNewFile_RequiresDir(t *testing.T) {
	if _, err := imagecache.NewFile(""); err == nil {
		t.Error("expected error for empty dir")
	}
}

func TestImageKey(t *testing.T) {
	if got, want := imagecache.ImageKey("abc"), "bookmarks:thumbnail:abc"; got != want {
		t.Errorf("ImageKey = %q, want %q", got, want)
	}
}
