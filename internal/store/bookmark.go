package store

import (
	"time"
)

// Bookmark represents a row in the bookmarks table together with its tags.
// Tags are loaded from bookmark_tags and are always sorted and unique.
type Bookmark struct {
	Identifier string    `db:"identifier"`
	Title      string    `db:"title"`
	URL        string    `db:"url"`
	Tags       []string  `db:"-"`
	Date       time.Time `db:"date"`
	ToRead     bool      `db:"to_read"`
	Shared     bool      `db:"shared"`
	Notes      string    `db:"notes"`
}

// TagCount pairs a tag name with the number of bookmarks carrying it.
type TagCount struct {
	Name  string `db:"name"`
	Count int    `db:"count"`
}

// normalized returns a copy of b with sorted unique tags and a UTC date, the
// form in which bookmarks are stored and returned.
func (b Bookmark) normalized() Bookmark {
	b.Tags = NormalizeTags(b.Tags)
	b.Date = b.Date.UTC()
	return b
}

// Equal reports whether b and o describe the same bookmark. Dates are
// compared as instants and tags as sets.
func (b *Bookmark) Equal(o *Bookmark) bool {
	if b == nil || o == nil {
		return b == o
	}
	if b.Identifier != o.Identifier || b.Title != o.Title || b.URL != o.URL ||
		b.ToRead != o.ToRead || b.Shared != o.Shared || b.Notes != o.Notes {
		return false
	}
	if !b.Date.Equal(o.Date) {
		return false
	}
	bt, ot := NormalizeTags(b.Tags), NormalizeTags(o.Tags)
	if len(bt) != len(ot) {
		return false
	}
	for i := range bt {
		if bt[i] != ot[i] {
			return false
		}
	}
	return true
}

// HasTag reports whether b carries name exactly.
func (b *Bookmark) HasTag(name string) bool {
	for _, t := range b.Tags {
		if t == name {
			return true
		}
	}
	return false
}
