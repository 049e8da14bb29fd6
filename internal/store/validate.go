package store

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ValidateBookmark checks that b has a non-empty identifier and an absolute
// URL. It does NOT touch the database.
func ValidateBookmark(b *Bookmark) error {
	if strings.TrimSpace(b.Identifier) == "" {
		return fmt.Errorf("%w: empty identifier", ErrInvalidBookmark)
	}
	u, err := url.Parse(b.URL)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidBookmark, b.URL, err)
	}
	if !u.IsAbs() {
		return fmt.Errorf("%w: %q is not an absolute URL", ErrInvalidBookmark, b.URL)
	}
	return nil
}

// ValidateTagName trims name and rejects it when nothing is left.
func ValidateTagName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidTag
	}
	return name, nil
}

// NormalizeTags trims every name, drops empty ones and duplicates, and sorts
// the result byte-wise. Tag names are case-sensitive, so "Go" and "go" are
// both kept.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// diffTags returns the names present in next but not prev, and in prev but
// not next.
func diffTags(prev, next []string) (added, removed []string) {
	inPrev := make(map[string]bool, len(prev))
	for _, t := range prev {
		inPrev[t] = true
	}
	inNext := make(map[string]bool, len(next))
	for _, t := range next {
		inNext[t] = true
		if !inPrev[t] {
			added = append(added, t)
		}
	}
	for _, t := range prev {
		if !inNext[t] {
			removed = append(removed, t)
		}
	}
	return added, removed
}
