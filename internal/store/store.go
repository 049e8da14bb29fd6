package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/joestump/bookmarks/internal/query"
)

var (
	// ErrNotFound is returned when a requested bookmark does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidBookmark is returned when a bookmark has an empty identifier
	// or a URL that is not absolute. Nothing is written.
	ErrInvalidBookmark = errors.New("invalid bookmark")

	// ErrInvalidTag is returned when a tag name is empty after trimming.
	ErrInvalidTag = errors.New("invalid tag name")

	// ErrStorage matches every *StorageError via errors.Is.
	ErrStorage = errors.New("storage error")
)

// StorageError reports a failed read or write against the database. The
// transaction that produced it has been rolled back.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// BookmarkStoreIface exposes all bookmark data operations.
// No handler or command may query the DB directly; all access goes through
// this interface.
type BookmarkStoreIface interface {
	InsertOrUpdate(ctx context.Context, b Bookmark) (*Bookmark, error)
	InsertOrUpdateMany(ctx context.Context, bs []Bookmark) error
	Bookmark(ctx context.Context, identifier string) (*Bookmark, error)
	BookmarkByURL(ctx context.Context, url string) (*Bookmark, error)
	Bookmarks(ctx context.Context, p query.Predicate) ([]*Bookmark, error)
	Count(ctx context.Context, p query.Predicate) (int, error)
	Identifiers(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, identifier string) error
	Clear(ctx context.Context) error
}

// TagStoreIface exposes tag operations. Tags only exist while some bookmark
// references them, so there is no way to create one directly.
type TagStoreIface interface {
	Tags(ctx context.Context) ([]string, error)
	TagCounts(ctx context.Context) ([]TagCount, error)
	DeleteTag(ctx context.Context, name string) error
	RenameTag(ctx context.Context, from, to string) error
}

var (
	_ BookmarkStoreIface = (*BookmarkStore)(nil)
	_ TagStoreIface      = (*BookmarkStore)(nil)
)
