package api

import (
	"time"

	"github.com/joestump/bookmarks/internal/store"
)

// --- Bookmark types ---

// BookmarkRequest is the request body for PUT /api/v1/bookmarks/{id}. The
// identifier comes from the path. A missing date means now.
type BookmarkRequest struct {
	Title  string     `json:"title"`
	URL    string     `json:"url"`
	Tags   []string   `json:"tags,omitempty"`
	Date   *time.Time `json:"date,omitempty"`
	ToRead bool       `json:"to_read"`
	Shared bool       `json:"shared"`
	Notes  string     `json:"notes,omitempty"`
}

// BookmarkResponse is the JSON representation of a single bookmark.
type BookmarkResponse struct {
	ID     string    `json:"id"`
	Title  string    `json:"title"`
	URL    string    `json:"url"`
	Tags   []string  `json:"tags"`
	Date   time.Time `json:"date"`
	ToRead bool      `json:"to_read"`
	Shared bool      `json:"shared"`
	Notes  string    `json:"notes"`
}

// BookmarkListResponse is the paginated response for GET /api/v1/bookmarks.
type BookmarkListResponse struct {
	Bookmarks  []BookmarkResponse `json:"bookmarks"`
	Total      int                `json:"total"`
	NextCursor *string            `json:"next_cursor"`
}

func toBookmarkResponse(b *store.Bookmark) BookmarkResponse {
	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}
	return BookmarkResponse{
		ID:     b.Identifier,
		Title:  b.Title,
		URL:    b.URL,
		Tags:   tags,
		Date:   b.Date,
		ToRead: b.ToRead,
		Shared: b.Shared,
		Notes:  b.Notes,
	}
}

// --- Tag types ---

// TagResponse is the JSON representation of a tag.
type TagResponse struct {
	Name          string `json:"name"`
	BookmarkCount int    `json:"bookmark_count"`
}

// TagListResponse is the response for GET /api/v1/tags.
type TagListResponse struct {
	Tags []TagResponse `json:"tags"`
}

// RenameTagRequest is the request body for POST /api/v1/tags/{name}/rename.
type RenameTagRequest struct {
	To string `json:"to"`
}

// --- Sync types ---

// SyncResponse is the response for POST /api/v1/sync.
type SyncResponse struct {
	Skipped  bool      `json:"skipped"`
	Upserted int       `json:"upserted"`
	Deleted  int       `json:"deleted"`
	Invalid  int       `json:"invalid"`
	Updated  time.Time `json:"updated"`
}
