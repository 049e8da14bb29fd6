package store

import (
	"context"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/joestump/bookmarks/internal/logger"
	"github.com/joestump/bookmarks/internal/metrics"
)

// ensureTagTx inserts a tags row for name if none exists.
func (s *BookmarkStore) ensureTagTx(ctx context.Context, tx *sqlx.Tx, name string) error {
	var n int
	if err := tx.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM tags WHERE name = ?`), name); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, s.q(`INSERT INTO tags (name) VALUES (?)`), name)
	return err
}

// pruneTagsTx deletes each named tag that no bookmark references anymore.
func (s *BookmarkStore) pruneTagsTx(ctx context.Context, tx *sqlx.Tx, names []string) error {
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, s.q(`
			DELETE FROM tags WHERE name = ?
			AND NOT EXISTS (SELECT 1 FROM bookmark_tags WHERE tag_name = ?)
		`), name, name); err != nil {
			return err
		}
	}
	return nil
}

// refreshIndexLocked reloads the tag index and the size gauges after a
// commit. On failure the index is dropped and rebuilt by the next Tags call.
// Callers must hold s.mu.
func (s *BookmarkStore) refreshIndexLocked(ctx context.Context) {
	tags, err := s.loadTags(ctx)
	if err != nil {
		s.indexLive = false
		s.log.Warn("refresh tag index", logger.Error(err))
		return
	}
	s.tagIndex = tags
	s.indexLive = true
	metrics.TagsTotal.Set(float64(len(tags)))

	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM bookmarks`); err == nil {
		metrics.BookmarksTotal.Set(float64(n))
	}
}

func (s *BookmarkStore) loadTags(ctx context.Context) ([]string, error) {
	var tags []string
	if err := s.db.SelectContext(ctx, &tags, `SELECT name FROM tags`); err != nil {
		return nil, err
	}
	sortTags(tags)
	return tags, nil
}

// sortTags orders names case-insensitively, breaking ties by exact name so
// the order is total.
func sortTags(tags []string) {
	sort.Slice(tags, func(i, j int) bool {
		li, lj := strings.ToLower(tags[i]), strings.ToLower(tags[j])
		if li != lj {
			return li < lj
		}
		return tags[i] < tags[j]
	})
}

// Tags returns every tag referenced by at least one bookmark, in ascending
// case-insensitive order.
func (s *BookmarkStore) Tags(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.indexLive {
		tags, err := s.loadTags(ctx)
		if err != nil {
			return nil, s.fail("tags", err)
		}
		s.tagIndex = tags
		s.indexLive = true
	}
	out := make([]string, len(s.tagIndex))
	copy(out, s.tagIndex)
	return out, nil
}

// TagCounts returns every tag with the number of bookmarks carrying it, in
// the same order as Tags.
func (s *BookmarkStore) TagCounts(ctx context.Context) ([]TagCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counts []TagCount
	err := s.db.SelectContext(ctx, &counts, `
		SELECT t.name AS name, COUNT(bt.bookmark_id) AS count
		FROM tags t
		JOIN bookmark_tags bt ON bt.tag_name = t.name
		GROUP BY t.name
	`)
	if err != nil {
		return nil, s.fail("tag_counts", err)
	}
	sort.Slice(counts, func(i, j int) bool {
		li, lj := strings.ToLower(counts[i].Name), strings.ToLower(counts[j].Name)
		if li != lj {
			return li < lj
		}
		return counts[i].Name < counts[j].Name
	})
	if counts == nil {
		counts = []TagCount{}
	}
	return counts, nil
}

// DeleteTag removes name from every bookmark and deletes the tag. Deleting a
// tag that does not exist is not an error.
func (s *BookmarkStore) DeleteTag(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return s.fail("delete_tag", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM bookmark_tags WHERE tag_name = ?`), name)
	if err != nil {
		return s.fail("delete_tag", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM tags WHERE name = ?`), name); err != nil {
		return s.fail("delete_tag", err)
	}
	if err := tx.Commit(); err != nil {
		return s.fail("delete_tag", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		s.log.Debug("tag deleted", logger.String("tag", name), logger.Int("bookmarks", int(n)))
	}
	metrics.StoreWritesTotal.WithLabelValues("delete_tag").Inc()
	s.refreshIndexLocked(ctx)
	return nil
}

// RenameTag moves every association of from to to, merging into to when it
// already exists, and removes from. Renaming an unused tag does nothing.
func (s *BookmarkStore) RenameTag(ctx context.Context, from, to string) error {
	to, err := ValidateTagName(to)
	if err != nil {
		return err
	}
	if from == to {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return s.fail("rename_tag", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var ids []string
	if err := tx.SelectContext(ctx, &ids, s.q(
		`SELECT bookmark_id FROM bookmark_tags WHERE tag_name = ?`,
	), from); err != nil {
		return s.fail("rename_tag", err)
	}
	if len(ids) == 0 {
		return nil
	}

	if err := s.ensureTagTx(ctx, tx, to); err != nil {
		return s.fail("rename_tag", err)
	}
	for _, id := range ids {
		var n int
		if err := tx.GetContext(ctx, &n, s.q(
			`SELECT COUNT(*) FROM bookmark_tags WHERE bookmark_id = ? AND tag_name = ?`,
		), id, to); err != nil {
			return s.fail("rename_tag", err)
		}
		if n > 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, s.q(
			`INSERT INTO bookmark_tags (bookmark_id, tag_name) VALUES (?, ?)`,
		), id, to); err != nil {
			return s.fail("rename_tag", err)
		}
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM bookmark_tags WHERE tag_name = ?`), from); err != nil {
		return s.fail("rename_tag", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM tags WHERE name = ?`), from); err != nil {
		return s.fail("rename_tag", err)
	}
	if err := tx.Commit(); err != nil {
		return s.fail("rename_tag", err)
	}
	metrics.StoreWritesTotal.WithLabelValues("rename_tag").Inc()
	s.log.Info("tag renamed", logger.String("from", from), logger.String("to", to), logger.Int("bookmarks", len(ids)))
	s.refreshIndexLocked(ctx)
	return nil
}
