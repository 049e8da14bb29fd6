// Package query defines the read-time filter language used to select
// bookmarks. Predicates are plain values; the store compiles them to SQL.
package query

import "strings"

// Predicate is a filter over bookmarks. The set of implementations is closed:
// True, Search, Tag, Untagged, Unread, Shared, Today and And.
type Predicate interface {
	// String renders the predicate in the filter syntax accepted by Parse.
	String() string
	predicate()
}

// True matches every bookmark.
type True struct{}

// Search matches bookmarks where every whitespace-separated token of Text is a
// case-insensitive substring of the title, the URL or one of the tags. An
// empty Text matches everything.
type Search struct {
	Text string
}

// Tag matches bookmarks carrying exactly Name (case-sensitive).
type Tag struct {
	Name string
}

// Untagged matches bookmarks with no tags.
type Untagged struct{}

// Unread matches bookmarks marked to read.
type Unread struct{}

// Shared matches bookmarks whose shared flag equals Value.
type Shared struct {
	Value bool
}

// Today matches bookmarks dated within the last 24 hours.
type Today struct{}

// And matches bookmarks matched by both Left and Right.
type And struct {
	Left  Predicate
	Right Predicate
}

func (True) predicate()     {}
func (Search) predicate()   {}
func (Tag) predicate()      {}
func (Untagged) predicate() {}
func (Unread) predicate()   {}
func (Shared) predicate()   {}
func (Today) predicate()    {}
func (And) predicate()      {}

func (True) String() string       { return "" }
func (s Search) String() string   { return strings.Join(Tokens(s.Text), " ") }
func (t Tag) String() string      { return tagPrefix + t.Name }
func (Untagged) String() string   { return untaggedToken }
func (Unread) String() string     { return unreadToken }
func (Today) String() string      { return todayToken }
func (s Shared) String() string {
	if s.Value {
		return sharedTrueToken
	}
	return sharedFalseToken
}

func (a And) String() string {
	parts := make([]string, 0, 2)
	for _, p := range []Predicate{a.Left, a.Right} {
		if p == nil {
			continue
		}
		if s := p.String(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// AndAll folds predicates left to right into nested And values. Nil entries
// are skipped and an empty list yields True.
func AndAll(predicates ...Predicate) Predicate {
	var result Predicate
	for _, p := range predicates {
		if p == nil {
			continue
		}
		if result == nil {
			result = p
			continue
		}
		result = And{Left: result, Right: p}
	}
	if result == nil {
		return True{}
	}
	return result
}

// Tokens splits text on any run of whitespace, dropping empty tokens.
func Tokens(text string) []string {
	return strings.Fields(text)
}
