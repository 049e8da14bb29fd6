package store_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/joestump/bookmarks/internal/query"
	"github.com/joestump/bookmarks/internal/store"
)

func TestTagStore_Tags_Order(t *testing.T) {
	s := newTestEnv(t)

	mustInsert(t, s, bookmark("A", 1, "zeta", "Alpha", "beta"))
	mustInsert(t, s, bookmark("B", 2, "alpha", "Beta"))

	want := []string{"Alpha", "alpha", "Beta", "beta", "zeta"}
	if got := mustTags(t, s); !reflect.DeepEqual(got, want) {
		t.Errorf("tags = %v, want %v", got, want)
	}
}

func TestTagStore_Tags_ReturnsCopy(t *testing.T) {
	s := newTestEnv(t)
	mustInsert(t, s, bookmark("A", 1, "one"))

	tags := mustTags(t, s)
	tags[0] = "mutated"
	if got := mustTags(t, s); got[0] != "one" {
		t.Errorf("tag index was mutated through the returned slice: %v", got)
	}
}

func TestTagStore_TagCounts(t *testing.T) {
	s := newTestEnv(t)

	mustInsert(t, s, bookmark("A", 1, "go", "web"))
	mustInsert(t, s, bookmark("B", 2, "go"))
	mustInsert(t, s, bookmark("C", 3))

	got, err := s.TagCounts(context.Background())
	if err != nil {
		t.Fatalf("TagCounts: %v", err)
	}
	want := []store.TagCount{{Name: "go", Count: 2}, {Name: "web", Count: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("counts = %+v, want %+v", got, want)
	}
}

func TestTagStore_DeleteTag(t *testing.T) {
	s := newTestEnv(t)
	ctx := context.Background()

	mustInsert(t, s, bookmark("A", 1, "cheese", "website"))
	mustInsert(t, s, bookmark("B", 2, "cheese"))

	if err := s.DeleteTag(ctx, "cheese"); err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}
	if got, want := mustTags(t, s), []string{"website"}; !reflect.DeepEqual(got, want) {
		t.Errorf("tags = %v, want %v", got, want)
	}

	a, err := s.Bookmark(ctx, "A")
	if err != nil {
		t.Fatalf("Bookmark A: %v", err)
	}
	if want := []string{"website"}; !reflect.DeepEqual(a.Tags, want) {
		t.Errorf("A tags = %v, want %v", a.Tags, want)
	}

	untagged, err := s.Bookmarks(ctx, query.Untagged{})
	if err != nil {
		t.Fatalf("Bookmarks: %v", err)
	}
	if ids, want := identifiers(untagged), []string{"B"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("untagged = %v, want %v", ids, want)
	}

	// Deleting again is a no-op.
	if err := s.DeleteTag(ctx, "cheese"); err != nil {
		t.Errorf("second DeleteTag: %v", err)
	}
}

func TestTagStore_RenameTag(t *testing.T) {
	s := newTestEnv(t)
	ctx := context.Background()

	mustInsert(t, s, bookmark("A", 1, "golang"))
	mustInsert(t, s, bookmark("B", 2, "golang", "go"))
	mustInsert(t, s, bookmark("C", 3, "other"))

	if err := s.RenameTag(ctx, "golang", "go"); err != nil {
		t.Fatalf("RenameTag: %v", err)
	}
	if got, want := mustTags(t, s), []string{"go", "other"}; !reflect.DeepEqual(got, want) {
		t.Errorf("tags = %v, want %v", got, want)
	}

	got, err := s.Bookmarks(ctx, query.Tag{Name: "go"})
	if err != nil {
		t.Fatalf("Bookmarks: %v", err)
	}
	if ids, want := identifiers(got), []string{"A", "B"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("Tag(go) = %v, want %v", ids, want)
	}
	for _, b := range got {
		if want := []string{"go"}; !reflect.DeepEqual(b.Tags, want) {
			t.Errorf("%s tags = %v, want %v", b.Identifier, b.Tags, want)
		}
	}
}

func TestTagStore_RenameTag_Unused(t *testing.T) {
	s := newTestEnv(t)
	mustInsert(t, s, bookmark("A", 1, "kept"))

	if err := s.RenameTag(context.Background(), "missing", "new"); err != nil {
		t.Fatalf("RenameTag: %v", err)
	}
	if got, want := mustTags(t, s), []string{"kept"}; !reflect.DeepEqual(got, want) {
		t.Errorf("tags = %v, want %v", got, want)
	}
}

func TestTagStore_RenameTag_Invalid(t *testing.T) {
	s := newTestEnv(t)
	mustInsert(t, s, bookmark("A", 1, "kept"))

	err := s.RenameTag(context.Background(), "kept", "   ")
	if !errors.Is(err, store.ErrInvalidTag) {
		t.Fatalf("expected ErrInvalidTag, got %v", err)
	}
}

func TestNormalizeTags(t *testing.T) {
	got := store.NormalizeTags([]string{" b ", "a", "", "b", "A"})
	want := []string{"A", "a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeTags = %v, want %v", got, want)
	}
}

func TestValidateBookmark(t *testing.T) {
	tests := []struct {
		name    string
		b       store.Bookmark
		wantErr bool
	}{
		{"valid https", store.Bookmark{Identifier: "a", URL: "https://example.com"}, false},
		{"valid mailto", store.Bookmark{Identifier: "a", URL: "mailto:me@example.com"}, false},
		{"no identifier", store.Bookmark{URL: "https://example.com"}, true},
		{"relative", store.Bookmark{Identifier: "a", URL: "example.com"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := store.ValidateBookmark(&tc.b)
			if tc.wantErr && !errors.Is(err, store.ErrInvalidBookmark) {
				t.Errorf("expected ErrInvalidBookmark, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
