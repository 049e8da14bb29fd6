package updater

import (
	"context"
	"time"

	"github.com/joestump/bookmarks/internal/store"
)

// Service is the remote bookmarking service the local store mirrors.
type Service interface {
	// LastUpdated returns the time of the most recent remote change.
	LastUpdated(ctx context.Context) (time.Time, error)
	// Records returns every remote bookmark.
	Records(ctx context.Context) ([]Record, error)
	// Push reports one local change to the remote.
	Push(ctx context.Context, c Change) error
}

// Record is a bookmark as the remote service describes it.
type Record struct {
	Hash        string    `yaml:"hash"`
	Href        string    `yaml:"href"`
	Description string    `yaml:"description"`
	Extended    string    `yaml:"extended,omitempty"`
	Tags        []string  `yaml:"tags,omitempty,flow"`
	Time        time.Time `yaml:"time"`
	ToRead      bool      `yaml:"toread,omitempty"`
	Shared      bool      `yaml:"shared,omitempty"`
}

// Bookmark converts r to the local form.
func (r Record) Bookmark() store.Bookmark {
	return store.Bookmark{
		Identifier: r.Hash,
		Title:      r.Description,
		URL:        r.Href,
		Tags:       r.Tags,
		Date:       r.Time,
		ToRead:     r.ToRead,
		Shared:     r.Shared,
		Notes:      r.Extended,
	}
}

// RecordFromBookmark converts a local bookmark to the remote form.
func RecordFromBookmark(b store.Bookmark) Record {
	return Record{
		Hash:        b.Identifier,
		Href:        b.URL,
		Description: b.Title,
		Extended:    b.Notes,
		Tags:        b.Tags,
		Time:        b.Date,
		ToRead:      b.ToRead,
		Shared:      b.Shared,
	}
}

// ChangeKind names a local change reported to the remote.
type ChangeKind string

const (
	ChangeUpdate    ChangeKind = "update"
	ChangeDelete    ChangeKind = "delete"
	ChangeDeleteTag ChangeKind = "delete_tag"
	ChangeRenameTag ChangeKind = "rename_tag"
)

// Change is one local modification. Which fields are set depends on Kind:
// update carries Record, delete carries URL, delete_tag carries Tag and
// rename_tag carries Tag and NewTag.
type Change struct {
	Kind   ChangeKind `yaml:"kind"`
	Record *Record    `yaml:"record,omitempty"`
	URL    string     `yaml:"url,omitempty"`
	Tag    string     `yaml:"tag,omitempty"`
	NewTag string     `yaml:"new_tag,omitempty"`
	At     time.Time  `yaml:"at"`
}
